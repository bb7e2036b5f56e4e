package claimstage

import (
	"claimdesk/internal/claimstage/handler"
	"claimdesk/internal/claimstage/service"
)

// Service tracks per-claim stage progression.
type Service = service.Service

// Handler wires HTTP endpoints to the tracking service.
type Handler = handler.Handler

// NewService constructs the tracking service.
func NewService(store service.Store, catalog service.StageCatalog, opts ...service.Option) *Service {
	return service.New(store, catalog, opts...)
}

// NewHandler constructs the HTTP handler for tracking routes.
func NewHandler(s *Service) *Handler {
	return handler.New(s)
}
