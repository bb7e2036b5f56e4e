package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"claimdesk/internal/audit"
	"claimdesk/internal/platform/metrics"
	"claimdesk/internal/workflow/models"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/requestcontext"
)

// Store is the persistence surface the catalog needs. Implementations return
// sentinel errors; the service translates them to coded domain errors.
type Store interface {
	CreateWorkflow(ctx context.Context, w *models.Workflow) error
	UpdateWorkflow(ctx context.Context, w *models.Workflow) error
	FindWorkflow(ctx context.Context, workflowID id.WorkflowID) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, companyID id.CompanyID, areaID *id.AreaID, activeOnly bool) ([]*models.Workflow, error)
	// FindDefault returns the selectable default workflow for exactly the
	// given scope, without falling back to the company-general scope.
	FindDefault(ctx context.Context, scope models.Scope) (*models.Workflow, error)
	// ClearDefault unsets the default flag on every selectable workflow in
	// the scope except the one identified by keep.
	ClearDefault(ctx context.Context, scope models.Scope, keep id.WorkflowID) error

	CreateStage(ctx context.Context, st *models.Stage) error
	UpdateStage(ctx context.Context, st *models.Stage) error
	FindStage(ctx context.Context, stageID id.StageID) (*models.Stage, error)
	ListStages(ctx context.Context, workflowID id.WorkflowID, activeOnly bool) ([]*models.Stage, error)
}

// ResolverCache caches default-workflow resolutions. A miss or cache failure
// is never fatal; the resolver falls through to the store.
type ResolverCache interface {
	Get(ctx context.Context, key string) (*models.Workflow, bool)
	Set(ctx context.Context, key string, w *models.Workflow)
	InvalidateCompany(ctx context.Context, companyID id.CompanyID)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service owns the workflow catalog and default resolution.
type Service struct {
	store          Store
	tx             Tx
	cache          ResolverCache
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(c ResolverCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithTx overrides the transaction boundary. The default is a scope-sharded
// in-process boundary suited to the memory store; database-backed stores
// supply a SQL transaction adapter instead.
func WithTx(tx Tx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(store)
	}
	return s
}

// CreateWorkflow registers a workflow in the catalog. When the request marks
// it as the scope default, every other default in the same scope is cleared
// in the same transaction.
func (s *Service) CreateWorkflow(ctx context.Context, req models.CreateWorkflowRequest) (*models.Workflow, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	w, err := models.NewWorkflow(id.WorkflowID(uuid.New()), req.CompanyID, req.AreaID,
		req.Name, req.Description, req.ActiveOrDefault(), req.IsDefault, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	scope := w.Scope()
	ctx = WithTxScope(ctx, scope.Key())
	err = s.tx.RunInTx(ctx, func(store Store) error {
		if w.IsDefault {
			if err := store.ClearDefault(ctx, scope, w.ID); err != nil {
				return err
			}
		}
		return store.CreateWorkflow(ctx, w)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "workflow already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create workflow")
	}

	s.invalidateResolver(ctx, w.CompanyID)
	s.logAudit(ctx, audit.ActionWorkflowCreated, audit.EntityWorkflow, w.ID.String(),
		"workflow_id", w.ID, "company_id", w.CompanyID, "is_default", w.IsDefault)
	if w.IsDefault {
		s.incrementDefaultSwaps()
	}
	return w, nil
}

// UpdateWorkflow applies a patch. Setting is_default to true demotes any
// other default in the workflow's scope atomically; setting it to false never
// promotes a replacement.
func (s *Service) UpdateWorkflow(ctx context.Context, workflowID id.WorkflowID, req models.UpdateWorkflowRequest) (*models.Workflow, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	current, err := s.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	scope := current.Scope()
	ctx = WithTxScope(ctx, scope.Key())
	var updated *models.Workflow
	err = s.tx.RunInTx(ctx, func(store Store) error {
		w, err := store.FindWorkflow(ctx, workflowID)
		if err != nil {
			return err
		}
		if w.IsDeleted() {
			return sentinel.ErrNotFound
		}
		if req.Name != nil {
			w.Name = *req.Name
		}
		if req.Description != nil {
			w.Description = *req.Description
		}
		if req.Active != nil {
			w.Active = *req.Active
		}
		if req.IsDefault != nil {
			w.IsDefault = *req.IsDefault
		}
		w.UpdatedAt = requestcontext.Now(ctx)
		if w.IsDefault {
			if err := store.ClearDefault(ctx, scope, w.ID); err != nil {
				return err
			}
		}
		if err := store.UpdateWorkflow(ctx, w); err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "workflow not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update workflow")
	}

	s.invalidateResolver(ctx, updated.CompanyID)
	s.logAudit(ctx, audit.ActionWorkflowUpdated, audit.EntityWorkflow, updated.ID.String(),
		"workflow_id", updated.ID, "is_default", updated.IsDefault)
	return updated, nil
}

// DeleteWorkflow soft-deletes a workflow. Stage definitions and historical
// claim data referencing it are preserved.
func (s *Service) DeleteWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	w, err := s.loadWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}

	ctx = WithTxScope(ctx, w.Scope().Key())
	err = s.tx.RunInTx(ctx, func(store Store) error {
		w, err := store.FindWorkflow(ctx, workflowID)
		if err != nil {
			return err
		}
		if w.IsDeleted() {
			return sentinel.ErrNotFound
		}
		if err := w.SoftDelete(requestcontext.Now(ctx)); err != nil {
			return err
		}
		return store.UpdateWorkflow(ctx, w)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "workflow not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete workflow")
	}

	s.invalidateResolver(ctx, w.CompanyID)
	s.logAudit(ctx, audit.ActionWorkflowDeleted, audit.EntityWorkflow, workflowID.String(),
		"workflow_id", workflowID)
	return nil
}

// GetWorkflow returns a workflow together with its stages ordered by stage
// order. Deleted workflows are not found.
func (s *Service) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*models.WorkflowDetails, error) {
	w, err := s.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	stages, err := s.store.ListStages(ctx, workflowID, false)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stages")
	}
	return &models.WorkflowDetails{Workflow: w, Stages: stages}, nil
}

// ListWorkflows lists catalog entries for a company, optionally filtered by
// area and active state. Soft-deleted entries are always excluded.
func (s *Service) ListWorkflows(ctx context.Context, companyID id.CompanyID, areaID *id.AreaID, activeOnly bool) ([]*models.Workflow, error) {
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "company_id is required")
	}
	ws, err := s.store.ListWorkflows(ctx, companyID, areaID, activeOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list workflows")
	}
	return ws, nil
}

// SetDefault promotes a workflow to the default of its scope, demoting any
// previous default atomically.
func (s *Service) SetDefault(ctx context.Context, workflowID id.WorkflowID) (*models.Workflow, error) {
	t := true
	w, err := s.UpdateWorkflow(ctx, workflowID, models.UpdateWorkflowRequest{IsDefault: &t})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.ActionWorkflowDefaultSet, audit.EntityWorkflow, w.ID.String(),
		"workflow_id", w.ID, "company_id", w.CompanyID)
	s.incrementDefaultSwaps()
	return w, nil
}

// ResolveDefault finds the workflow a new claim in the given scope should
// follow: the area-specific default when one exists, otherwise the
// company-general default. No default at either level is a hard error.
func (s *Service) ResolveDefault(ctx context.Context, companyID id.CompanyID, areaID *id.AreaID) (*models.Workflow, error) {
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "company_id is required")
	}

	scope := models.Scope{CompanyID: companyID, AreaID: areaID}
	if s.cache != nil {
		if w, ok := s.cache.Get(ctx, resolverCacheKey(scope)); ok {
			s.incrementCacheHit()
			return w, nil
		}
		s.incrementCacheMiss()
	}

	w, err := s.resolveFromStore(ctx, scope)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, resolverCacheKey(scope), w)
	}
	return w, nil
}

func (s *Service) resolveFromStore(ctx context.Context, scope models.Scope) (*models.Workflow, error) {
	w, err := s.store.FindDefault(ctx, scope)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve default workflow")
	}
	if scope.AreaID != nil {
		w, err = s.store.FindDefault(ctx, scope.General())
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve default workflow")
		}
	}
	return nil, dErrors.New(dErrors.CodeUnresolvable, "no default workflow configured for company")
}

// CreateStage adds a stage definition to a workflow.
func (s *Service) CreateStage(ctx context.Context, req models.CreateStageRequest) (*models.Stage, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	parent, err := s.loadWorkflow(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	st, err := models.NewStage(id.StageID(uuid.New()), req.WorkflowID, req.Name, req.Description,
		req.Order, req.Mandatory, req.AllowSkip, req.BlocksNext, req.RequiredDocTypeID,
		req.ActiveOrDefault(), now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.CreateStage(ctx, st); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "stage already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create stage")
	}

	s.logAudit(ctx, audit.ActionStageCreated, audit.EntityStage, st.ID.String(),
		"stage_id", st.ID, "workflow_id", parent.ID, "order", st.Order)
	return st, nil
}

// UpdateStage applies a patch to a stage definition.
func (s *Service) UpdateStage(ctx context.Context, stageID id.StageID, req models.UpdateStageRequest) (*models.Stage, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	st, err := s.loadStage(ctx, stageID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		st.Name = *req.Name
	}
	if req.Description != nil {
		st.Description = *req.Description
	}
	if req.Order != nil {
		st.Order = *req.Order
	}
	if req.Mandatory != nil {
		st.Mandatory = *req.Mandatory
	}
	if req.AllowSkip != nil {
		st.AllowSkip = *req.AllowSkip
	}
	if req.BlocksNext != nil {
		st.BlocksNext = *req.BlocksNext
	}
	if req.ClearRequiredDocType {
		st.RequiredDocTypeID = nil
	} else if req.RequiredDocTypeID != nil {
		st.RequiredDocTypeID = req.RequiredDocTypeID
	}
	if req.Active != nil {
		st.Active = *req.Active
	}
	st.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.UpdateStage(ctx, st); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "stage not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update stage")
	}

	s.logAudit(ctx, audit.ActionStageUpdated, audit.EntityStage, st.ID.String(),
		"stage_id", st.ID, "workflow_id", st.WorkflowID)
	return st, nil
}

// DeleteStage soft-deletes a stage definition. Claim stage rows created from
// it remain intact.
func (s *Service) DeleteStage(ctx context.Context, stageID id.StageID) error {
	st, err := s.loadStage(ctx, stageID)
	if err != nil {
		return err
	}

	if err := st.SoftDelete(requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.store.UpdateStage(ctx, st); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "stage not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete stage")
	}

	s.logAudit(ctx, audit.ActionStageDeleted, audit.EntityStage, stageID.String(),
		"stage_id", stageID, "workflow_id", st.WorkflowID)
	return nil
}

// GetStage returns a single stage definition. Deleted stages are not found.
func (s *Service) GetStage(ctx context.Context, stageID id.StageID) (*models.Stage, error) {
	return s.loadStage(ctx, stageID)
}

// ListStages lists a workflow's stage definitions ordered by stage order.
func (s *Service) ListStages(ctx context.Context, workflowID id.WorkflowID, activeOnly bool) ([]*models.Stage, error) {
	if _, err := s.loadWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}
	stages, err := s.store.ListStages(ctx, workflowID, activeOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stages")
	}
	return stages, nil
}

func (s *Service) loadWorkflow(ctx context.Context, workflowID id.WorkflowID) (*models.Workflow, error) {
	if workflowID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "workflow_id is required")
	}
	w, err := s.store.FindWorkflow(ctx, workflowID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "workflow not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow")
	}
	if w.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "workflow not found")
	}
	return w, nil
}

func (s *Service) loadStage(ctx context.Context, stageID id.StageID) (*models.Stage, error) {
	if stageID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "stage_id is required")
	}
	st, err := s.store.FindStage(ctx, stageID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "stage not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stage")
	}
	if st.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "stage not found")
	}
	return st, nil
}

func (s *Service) invalidateResolver(ctx context.Context, companyID id.CompanyID) {
	if s.cache == nil {
		return
	}
	// Area scopes fall back to the company-general default, so any catalog
	// change can alter resolutions across the whole company.
	s.cache.InvalidateCompany(ctx, companyID)
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, entity string, entityID string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(action), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		Actor:     requestcontext.ActorID(ctx),
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func (s *Service) incrementDefaultSwaps() {
	if s.metrics != nil {
		s.metrics.DefaultWorkflowSwaps.Inc()
	}
}

func (s *Service) incrementCacheHit() {
	if s.metrics != nil {
		s.metrics.ResolverCacheHits.Inc()
	}
}

func (s *Service) incrementCacheMiss() {
	if s.metrics != nil {
		s.metrics.ResolverCacheMisses.Inc()
	}
}

func resolverCacheKey(scope models.Scope) string {
	return "workflow:default:" + scope.Key()
}
