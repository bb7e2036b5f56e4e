package narrative

import (
	"claimdesk/internal/narrative/handler"
	"claimdesk/internal/narrative/service"
)

// Service owns claim description version history.
type Service = service.Service

// Handler wires HTTP endpoints to the narrative service.
type Handler = handler.Handler

// NewService constructs the narrative service.
func NewService(store service.Store, opts ...service.Option) *Service {
	return service.New(store, opts...)
}

// NewHandler constructs the HTTP handler for version routes.
func NewHandler(s *Service) *Handler {
	return handler.New(s)
}
