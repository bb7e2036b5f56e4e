package claim

import (
	"claimdesk/internal/claim/handler"
	"claimdesk/internal/claim/service"
	"claimdesk/internal/platform/metrics"
)

// Service orchestrates the claim lifecycle.
type Service = service.Service

// Handler wires HTTP endpoints to the claim service.
type Handler = handler.Handler

// CodeGenerator allocates claim tracking codes.
type CodeGenerator = service.CodeGenerator

// NewService constructs the claim service.
func NewService(store service.Store, resolver service.WorkflowResolver, codegen *CodeGenerator, opts ...service.Option) *Service {
	return service.New(store, resolver, codegen, opts...)
}

// NewCodeGenerator constructs the code generator.
func NewCodeGenerator(counters service.CounterStore, index service.CodeIndex, m *metrics.Metrics) *CodeGenerator {
	return service.NewCodeGenerator(counters, index, m)
}

// NewHandler constructs the HTTP handler for claim routes.
func NewHandler(s *Service) *Handler {
	return handler.New(s)
}
