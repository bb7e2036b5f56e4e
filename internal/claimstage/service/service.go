package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"claimdesk/internal/audit"
	"claimdesk/internal/claimstage/models"
	"claimdesk/internal/platform/metrics"
	wfmodels "claimdesk/internal/workflow/models"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/requestcontext"
)

// Store persists claim stage rows. Implementations return sentinel errors.
type Store interface {
	// CreateBatch inserts all rows or none. A row for any (claim, stage)
	// pair that already exists fails the whole batch with ErrConflict.
	CreateBatch(ctx context.Context, rows []*models.ClaimStage) error
	Update(ctx context.Context, row *models.ClaimStage) error
	Find(ctx context.Context, claimStageID id.ClaimStageID) (*models.ClaimStage, error)
	FindByClaimAndStage(ctx context.Context, claimID id.ClaimID, stageID id.StageID) (*models.ClaimStage, error)
	ListByClaim(ctx context.Context, claimID id.ClaimID) ([]*models.ClaimStage, error)
}

// StageCatalog is the slice of the workflow service the tracker needs.
type StageCatalog interface {
	ListStages(ctx context.Context, workflowID id.WorkflowID, activeOnly bool) ([]*wfmodels.Stage, error)
	GetStage(ctx context.Context, stageID id.StageID) (*wfmodels.Stage, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service tracks per-claim stage progression.
type Service struct {
	store          Store
	catalog        StageCatalog
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

// New constructs a Service.
func New(store Store, catalog StageCatalog, opts ...Option) *Service {
	s := &Service{store: store, catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize creates one pending row per active stage of the workflow.
// Initializing a claim twice is a conflict; the first materialized
// progression is authoritative.
func (s *Service) Initialize(ctx context.Context, claimID id.ClaimID, workflowID id.WorkflowID) ([]*models.ClaimStage, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	if workflowID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "workflow_id is required")
	}

	existing, err := s.store.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check claim stages")
	}
	if len(existing) > 0 {
		return nil, dErrors.New(dErrors.CodeConflict, "claim stages are already initialized")
	}

	stages, err := s.catalog.ListStages(ctx, workflowID, true)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidState, "workflow has no active stages")
	}

	now := requestcontext.Now(ctx)
	rows := make([]*models.ClaimStage, 0, len(stages))
	for _, st := range stages {
		row, err := models.NewClaimStage(id.ClaimStageID(uuid.New()), claimID, workflowID, st.ID, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	if err := s.store.CreateBatch(ctx, rows); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "claim stages are already initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize claim stages")
	}

	s.logAudit(ctx, audit.ActionStagesInitialized, audit.EntityClaim, claimID.String(),
		"claim_id", claimID, "workflow_id", workflowID, "stage_count", len(rows))
	s.addInitialized(len(rows))
	return rows, nil
}

// List returns the claim's progression joined with stage definitions, ordered
// by stage order.
func (s *Service) List(ctx context.Context, claimID id.ClaimID) ([]*models.StageProgress, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	return s.progression(ctx, claimID)
}

// Advance reports where the progression stands: the earliest open stage,
// whether it is actionable or held back by an open blocking stage, or done
// when every stage is settled. It never mutates state.
func (s *Service) Advance(ctx context.Context, claimID id.ClaimID) (*models.Advance, error) {
	ordered, err := s.List(ctx, claimID)
	if err != nil {
		return nil, err
	}
	adv := models.Progression(ordered)
	if adv.Blocked() && s.metrics != nil {
		s.metrics.AdvanceBlocked.Inc()
	}
	return &adv, nil
}

// Start moves a pending stage into progress. A stage past an open
// blocks_next stage cannot be started until that blocker is settled; the
// blocker itself can always be started.
func (s *Service) Start(ctx context.Context, claimID id.ClaimID, stageID id.StageID) (*models.ClaimStage, error) {
	target, ordered, err := s.loadTarget(ctx, claimID, stageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUnblocked(ctx, ordered, target); err != nil {
		return nil, err
	}
	if err := target.ClaimStage.Start(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, target.ClaimStage); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim stage")
	}
	return target.ClaimStage, nil
}

// Complete finishes a stage and records the evidence document when one is
// supplied. Completion is not gated on earlier blocking stages; those only
// hold back the Advance determination. Completing a stage does not itself
// advance the claim.
func (s *Service) Complete(ctx context.Context, claimID id.ClaimID, stageID id.StageID, evidence *id.DocumentID, note string) (*models.ClaimStage, error) {
	target, _, err := s.loadTarget(ctx, claimID, stageID)
	if err != nil {
		return nil, err
	}

	actor := requestcontext.ActorID(ctx)
	if err := target.ClaimStage.Complete(actor, evidence, note, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, target.ClaimStage); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim stage")
	}

	s.logAudit(ctx, audit.ActionStageCompleted, audit.EntityClaim, claimID.String(),
		"claim_id", claimID, "stage_id", stageID)
	if s.metrics != nil {
		s.metrics.StagesCompleted.Inc()
	}
	return target.ClaimStage, nil
}

// Skip marks a pending stage as skipped when its definition allows it. Skips
// bypass the blocking gate; skipping is how an open blocking stage gets out
// of the way without being completed.
func (s *Service) Skip(ctx context.Context, claimID id.ClaimID, stageID id.StageID, note string) (*models.ClaimStage, error) {
	target, _, err := s.loadTarget(ctx, claimID, stageID)
	if err != nil {
		return nil, err
	}

	actor := requestcontext.ActorID(ctx)
	if err := target.ClaimStage.Skip(actor, note, target.Stage.AllowSkip, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, target.ClaimStage); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim stage")
	}

	s.logAudit(ctx, audit.ActionStageSkipped, audit.EntityClaim, claimID.String(),
		"claim_id", claimID, "stage_id", stageID)
	if s.metrics != nil {
		s.metrics.StagesSkipped.Inc()
	}
	return target.ClaimStage, nil
}

func (s *Service) progression(ctx context.Context, claimID id.ClaimID) ([]*models.StageProgress, error) {
	rows, err := s.store.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim stages")
	}
	if len(rows) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "claim has no initialized stages")
	}

	defs, err := s.catalog.ListStages(ctx, rows[0].WorkflowID, false)
	if err != nil {
		return nil, err
	}
	byID := make(map[id.StageID]*wfmodels.Stage, len(defs))
	for _, st := range defs {
		byID[st.ID] = st
	}

	out := make([]*models.StageProgress, 0, len(rows))
	for _, row := range rows {
		def, ok := byID[row.StageID]
		if !ok {
			// The definition was soft-deleted after initialization.
			// The row stays persisted but drops out of the rendered
			// progression.
			def, err = s.catalog.GetStage(ctx, row.StageID)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeNotFound) {
					continue
				}
				return nil, err
			}
		}
		out = append(out, &models.StageProgress{ClaimStage: row, Stage: def})
	}
	sortByOrder(out)
	return out, nil
}

func (s *Service) loadTarget(ctx context.Context, claimID id.ClaimID, stageID id.StageID) (*models.StageProgress, []*models.StageProgress, error) {
	if claimID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	if stageID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "stage_id is required")
	}
	ordered, err := s.progression(ctx, claimID)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range ordered {
		if p.ClaimStage.StageID == stageID {
			return p, ordered, nil
		}
	}
	return nil, nil, dErrors.New(dErrors.CodeNotFound, "stage is not part of the claim's progression")
}

func (s *Service) requireUnblocked(ctx context.Context, ordered []*models.StageProgress, target *models.StageProgress) error {
	blocker := models.BlockerFor(ordered, target)
	if blocker == nil {
		return nil
	}
	if s.metrics != nil {
		s.metrics.AdvanceBlocked.Inc()
	}
	return dErrors.Newf(dErrors.CodeInvalidState, "stage %q is blocked by incomplete stage %q",
		target.Stage.Name, blocker.Stage.Name)
}

func sortByOrder(ps []*models.StageProgress) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Stage.Order != ps[j].Stage.Order {
			return ps[i].Stage.Order < ps[j].Stage.Order
		}
		return ps[i].Stage.ID.String() < ps[j].Stage.ID.String()
	})
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

func (s *Service) addInitialized(n int) {
	if s.metrics != nil {
		s.metrics.StagesInitialized.Add(float64(n))
	}
}
