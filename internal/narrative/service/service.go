package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"claimdesk/internal/audit"
	"claimdesk/internal/narrative/models"
	"claimdesk/internal/platform/metrics"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/requestcontext"
)

// Store persists description versions. Implementations return sentinel
// errors.
type Store interface {
	Create(ctx context.Context, v *models.DescriptionVersion) error
	Update(ctx context.Context, v *models.DescriptionVersion) error
	Find(ctx context.Context, versionID id.VersionID) (*models.DescriptionVersion, error)
	FindCurrent(ctx context.Context, claimID id.ClaimID) (*models.DescriptionVersion, error)
	// ListByClaim returns non-deleted versions, newest first.
	ListByClaim(ctx context.Context, claimID id.ClaimID) ([]*models.DescriptionVersion, error)
	// MaxVersion returns the highest version number ever used for the
	// claim, counting deleted versions, or 0 when none exist.
	MaxVersion(ctx context.Context, claimID id.ClaimID) (int, error)
	// ClearCurrent unsets IsCurrent on every version of the claim except
	// keep.
	ClearCurrent(ctx context.Context, claimID id.ClaimID, keep id.VersionID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service owns the claim description version history.
type Service struct {
	store          Store
	tx             Tx
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

// WithTx overrides the transaction boundary, for database-backed stores.
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

// Create appends a new version and makes it current. The version number is
// one past the highest ever used for the claim.
func (s *Service) Create(ctx context.Context, claimID id.ClaimID, text, note string) (*models.DescriptionVersion, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "text is required")
	}

	v, err := s.appendVersion(ctx, claimID, text, note)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.ActionVersionCreated, audit.EntityVersion, v.ID.String(),
		"claim_id", claimID, "version", v.Version)
	if s.metrics != nil {
		s.metrics.VersionsCreated.Inc()
	}
	return v, nil
}

// SeedInitial writes version 1 from the claim's creation description. It is
// a no-op when the claim already has history, so claim-creation retries stay
// idempotent.
func (s *Service) SeedInitial(ctx context.Context, claimID id.ClaimID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	err := s.tx.RunInTx(ctx, claimID, func(store Store) error {
		max, err := store.MaxVersion(ctx, claimID)
		if err != nil {
			return err
		}
		if max > 0 {
			return nil
		}
		v, err := models.NewDescriptionVersion(id.VersionID(uuid.New()), claimID, 1, text, "", requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if actor := requestcontext.ActorID(ctx); !actor.IsNil() {
			v.CreatedBy = &actor
		}
		return store.Create(ctx, v)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed initial version")
	}
	return nil
}

// GetCurrent returns the claim's current version.
func (s *Service) GetCurrent(ctx context.Context, claimID id.ClaimID) (*models.DescriptionVersion, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	v, err := s.store.FindCurrent(ctx, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim has no description versions")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load current version")
	}
	return v, nil
}

// List returns the claim's version history, newest first.
func (s *Service) List(ctx context.Context, claimID id.ClaimID) ([]*models.DescriptionVersion, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	versions, err := s.store.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list versions")
	}
	return versions, nil
}

// Get returns a single version. Deleted versions are not found.
func (s *Service) Get(ctx context.Context, versionID id.VersionID) (*models.DescriptionVersion, error) {
	return s.load(ctx, versionID)
}

// UpdateNote changes a version's annotation. The text itself is immutable.
func (s *Service) UpdateNote(ctx context.Context, versionID id.VersionID, note string) (*models.DescriptionVersion, error) {
	v, err := s.load(ctx, versionID)
	if err != nil {
		return nil, err
	}
	v.Note = note
	v.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update version")
	}
	return v, nil
}

// Restore copies a version's text into a fresh head version. History is
// never rewritten; restoring version N yields a new highest version carrying
// N's text, even when N is already current.
func (s *Service) Restore(ctx context.Context, versionID id.VersionID) (*models.DescriptionVersion, error) {
	source, err := s.load(ctx, versionID)
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("restored from version %d", source.Version)
	v, err := s.appendVersion(ctx, source.ClaimID, source.Text, note)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.ActionVersionRestored, audit.EntityVersion, v.ID.String(),
		"claim_id", source.ClaimID, "restored_from", source.Version, "version", v.Version)
	if s.metrics != nil {
		s.metrics.VersionsRestored.Inc()
	}
	return v, nil
}

// Delete tombstones a non-current version.
func (s *Service) Delete(ctx context.Context, versionID id.VersionID) error {
	v, err := s.load(ctx, versionID)
	if err != nil {
		return err
	}
	err = s.tx.RunInTx(ctx, v.ClaimID, func(store Store) error {
		v, err := store.Find(ctx, versionID)
		if err != nil {
			return err
		}
		if v.IsDeleted() {
			return sentinel.ErrNotFound
		}
		if err := v.SoftDelete(requestcontext.Now(ctx)); err != nil {
			return err
		}
		return store.Update(ctx, v)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "version not found")
		}
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete version")
	}

	s.logAudit(ctx, audit.ActionVersionDeleted, audit.EntityVersion, versionID.String(),
		"claim_id", v.ClaimID, "version", v.Version)
	return nil
}

// maxAppendAttempts bounds retries when concurrent appends race on the same
// version number.
const maxAppendAttempts = 3

// appendVersion allocates the next version number and swaps the current
// head in one transaction. When two appends race, the losing transaction
// trips the (claim, version) uniqueness constraint and is retried with a
// fresh number.
func (s *Service) appendVersion(ctx context.Context, claimID id.ClaimID, text, note string) (*models.DescriptionVersion, error) {
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		created, err := s.tryAppend(ctx, claimID, text, note)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create version")
		}
	}
	return nil, dErrors.New(dErrors.CodeConflict, "concurrent version writes exhausted retries")
}

func (s *Service) tryAppend(ctx context.Context, claimID id.ClaimID, text, note string) (*models.DescriptionVersion, error) {
	var created *models.DescriptionVersion
	err := s.tx.RunInTx(ctx, claimID, func(store Store) error {
		max, err := store.MaxVersion(ctx, claimID)
		if err != nil {
			return err
		}
		v, err := models.NewDescriptionVersion(id.VersionID(uuid.New()), claimID, max+1, text, note, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if actor := requestcontext.ActorID(ctx); !actor.IsNil() {
			v.CreatedBy = &actor
		}
		if err := store.ClearCurrent(ctx, claimID, v.ID); err != nil {
			return err
		}
		if err := store.Create(ctx, v); err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) load(ctx context.Context, versionID id.VersionID) (*models.DescriptionVersion, error) {
	if versionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "version_id is required")
	}
	v, err := s.store.Find(ctx, versionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "version not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load version")
	}
	if v.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "version not found")
	}
	return v, nil
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
