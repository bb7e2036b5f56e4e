package workflow

import (
	"claimdesk/internal/workflow/handler"
	"claimdesk/internal/workflow/service"
)

// Service exposes the workflow catalog and default resolution.
type Service = service.Service

// Handler wires HTTP endpoints to the workflow service.
type Handler = handler.Handler

// NewService constructs the workflow service.
func NewService(store service.Store, opts ...service.Option) *Service {
	return service.New(store, opts...)
}

// NewHandler constructs the HTTP handler for catalog routes.
func NewHandler(s *Service) *Handler {
	return handler.New(s)
}
