package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"claimdesk/internal/audit"
	"claimdesk/internal/claim/models"
	csmodels "claimdesk/internal/claimstage/models"
	"claimdesk/internal/platform/metrics"
	wfmodels "claimdesk/internal/workflow/models"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/requestcontext"
)

// Store persists claims. Implementations return sentinel errors and enforce
// per-company number uniqueness.
type Store interface {
	Create(ctx context.Context, c *models.Claim) error
	Update(ctx context.Context, c *models.Claim) error
	Find(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	FindByNumber(ctx context.Context, companyID id.CompanyID, number string) (*models.Claim, error)
	List(ctx context.Context, companyID id.CompanyID) ([]*models.Claim, error)
	CodeExists(ctx context.Context, code string) (bool, error)
}

// ProvenanceStore resolves provenance catalog entries.
type ProvenanceStore interface {
	Find(ctx context.Context, provenanceID id.ProvenanceID) (*models.Provenance, error)
}

// WorkflowResolver picks the default workflow a new claim follows.
type WorkflowResolver interface {
	ResolveDefault(ctx context.Context, companyID id.CompanyID, areaID *id.AreaID) (*wfmodels.Workflow, error)
}

// StageInitializer materializes the claim's stage progression.
type StageInitializer interface {
	Initialize(ctx context.Context, claimID id.ClaimID, workflowID id.WorkflowID) ([]*csmodels.ClaimStage, error)
}

// NarrativeSeeder writes the claim's initial description version.
type NarrativeSeeder interface {
	SeedInitial(ctx context.Context, claimID id.ClaimID, text string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service orchestrates the claim lifecycle.
type Service struct {
	store          Store
	provenances    ProvenanceStore
	resolver       WorkflowResolver
	codegen        *CodeGenerator
	initializer    StageInitializer
	seeder         NarrativeSeeder
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

func WithProvenances(p ProvenanceStore) Option {
	return func(s *Service) {
		s.provenances = p
	}
}

func WithStageInitializer(init StageInitializer) Option {
	return func(s *Service) {
		s.initializer = init
	}
}

func WithNarrativeSeeder(seeder NarrativeSeeder) Option {
	return func(s *Service) {
		s.seeder = seeder
	}
}

// New constructs a Service.
func New(store Store, resolver WorkflowResolver, codegen *CodeGenerator, opts ...Option) *Service {
	s := &Service{store: store, resolver: resolver, codegen: codegen}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a claim. The workflow is resolved from the company/area
// defaults; no resolvable default fails the whole creation. Code allocation,
// stage initialization and the initial description version are best effort
// and get retried through later operations when they fail here.
func (s *Service) Create(ctx context.Context, req models.CreateClaimRequest) (*models.Claim, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	workflow, err := s.resolver.ResolveDefault(ctx, req.CompanyID, req.AreaID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindByNumber(ctx, req.CompanyID, req.Number); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "claim number must be unique")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check claim number")
	}

	now := requestcontext.Now(ctx)
	c, err := models.NewClaim(id.ClaimID(uuid.New()), req.CompanyID, req.AreaID, workflow.ID, req.Number, req.Title, req.ClaimDate, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	c.Description = req.Description
	c.ProvenanceID = req.ProvenanceID
	if actor := requestcontext.ActorID(ctx); !actor.IsNil() {
		c.CreatedBy = &actor
	}

	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "claim number must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create claim")
	}

	s.assignCode(ctx, c)

	if s.initializer != nil {
		if _, err := s.initializer.Initialize(ctx, c.ID, workflow.ID); err != nil {
			s.warn(ctx, "stage initialization failed, claim created without progression",
				"claim_id", c.ID, "error", err)
		}
	}
	if s.seeder != nil && c.Description != "" {
		if err := s.seeder.SeedInitial(ctx, c.ID, c.Description); err != nil {
			s.warn(ctx, "initial description version failed",
				"claim_id", c.ID, "error", err)
		}
	}

	s.logAudit(ctx, audit.ActionClaimCreated, audit.EntityClaim, c.ID.String(),
		"claim_id", c.ID, "company_id", c.CompanyID, "number", c.Number, "workflow_id", c.WorkflowID)
	if s.metrics != nil {
		s.metrics.ClaimsCreated.Inc()
	}
	return c, nil
}

// Get returns a claim. Deleted claims are not found.
func (s *Service) Get(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	return s.load(ctx, claimID)
}

// List returns a company's claims, excluding deleted ones.
func (s *Service) List(ctx context.Context, companyID id.CompanyID) ([]*models.Claim, error) {
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "company_id is required")
	}
	claims, err := s.store.List(ctx, companyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

// Update patches a claim. A claim still missing its code gets a fresh
// allocation attempt.
func (s *Service) Update(ctx context.Context, claimID id.ClaimID, req models.UpdateClaimRequest) (*models.Claim, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.load(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.ClaimDate != nil {
		c.ClaimDate = *req.ClaimDate
	}
	if req.ProvenanceID != nil {
		c.ProvenanceID = req.ProvenanceID
	}
	c.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim")
	}

	if c.Code == "" {
		s.assignCode(ctx, c)
	}

	s.logAudit(ctx, audit.ActionClaimUpdated, audit.EntityClaim, c.ID.String(),
		"claim_id", c.ID)
	return c, nil
}

// Delete soft-deletes a claim.
func (s *Service) Delete(ctx context.Context, claimID id.ClaimID) error {
	c, err := s.load(ctx, claimID)
	if err != nil {
		return err
	}
	if err := c.SoftDelete(requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.store.Update(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete claim")
	}
	return nil
}

// assignCode allocates and persists the claim code. A claim with no
// provenance party keeps its code unset until one is assigned. Failures are
// logged and left for the next update to retry.
func (s *Service) assignCode(ctx context.Context, c *models.Claim) {
	if s.codegen == nil || c.Code != "" || c.ProvenanceID == nil || s.provenances == nil {
		return
	}

	prov, err := s.provenances.Find(ctx, *c.ProvenanceID)
	if err != nil {
		s.warn(ctx, "provenance lookup failed, claim kept without code",
			"claim_id", c.ID, "provenance_id", *c.ProvenanceID, "error", err)
		return
	}

	code, err := s.codegen.Generate(ctx, c, prov)
	if err != nil {
		s.warn(ctx, "claim code allocation failed, claim kept without code",
			"claim_id", c.ID, "error", err)
		return
	}
	c.Code = code
	c.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, c); err != nil {
		c.Code = ""
		s.warn(ctx, "persisting claim code failed", "claim_id", c.ID, "error", err)
		return
	}
	s.logAudit(ctx, audit.ActionClaimCodeAssigned, audit.EntityClaim, c.ID.String(),
		"claim_id", c.ID, "code", code)
}

func (s *Service) load(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	c, err := s.store.Find(ctx, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	if c.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
	}
	return c, nil
}

func (s *Service) warn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
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
