package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"claimdesk/internal/claimstage/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Postgres persists claim stage rows.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const claimStageColumns = `id, claim_id, workflow_id, stage_id, state, note, evidence_doc_id, due_at, completed_by, completed_at, created_at, updated_at`

// CreateBatch inserts every row in one transaction so a concurrent
// initializer can never interleave a partial progression. The unique index on
// (claim_id, stage_id) turns the race into ErrConflict.
func (p *Postgres) CreateBatch(ctx context.Context, rows []*models.ClaimStage) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin claim stage batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO claim_stages (id, claim_id, workflow_id, stage_id, state, note, evidence_doc_id, due_at, completed_by, completed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			uuid.UUID(row.ID), uuid.UUID(row.ClaimID), uuid.UUID(row.WorkflowID), uuid.UUID(row.StageID),
			string(row.State), row.Note, docParam(row.EvidenceDocID), row.DueAt,
			userParam(row.CompletedBy), row.CompletedAt, row.CreatedAt, row.UpdatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert claim stage: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit claim stage batch: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, row *models.ClaimStage) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE claim_stages
		SET state = $2, note = $3, evidence_doc_id = $4, due_at = $5, completed_by = $6, completed_at = $7, updated_at = $8
		WHERE id = $1`,
		uuid.UUID(row.ID), string(row.State), row.Note, docParam(row.EvidenceDocID),
		row.DueAt, userParam(row.CompletedBy), row.CompletedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update claim stage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (p *Postgres) Find(ctx context.Context, claimStageID id.ClaimStageID) (*models.ClaimStage, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+claimStageColumns+`
		FROM claim_stages
		WHERE id = $1`,
		uuid.UUID(claimStageID),
	)
	return scanClaimStage(row)
}

func (p *Postgres) FindByClaimAndStage(ctx context.Context, claimID id.ClaimID, stageID id.StageID) (*models.ClaimStage, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+claimStageColumns+`
		FROM claim_stages
		WHERE claim_id = $1 AND stage_id = $2`,
		uuid.UUID(claimID), uuid.UUID(stageID),
	)
	return scanClaimStage(row)
}

func (p *Postgres) ListByClaim(ctx context.Context, claimID id.ClaimID) ([]*models.ClaimStage, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+claimStageColumns+`
		FROM claim_stages
		WHERE claim_id = $1
		ORDER BY created_at, id`,
		uuid.UUID(claimID),
	)
	if err != nil {
		return nil, fmt.Errorf("list claim stages: %w", err)
	}
	defer rows.Close()

	var out []*models.ClaimStage
	for rows.Next() {
		cs, err := scanClaimStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaimStage(row rowScanner) (*models.ClaimStage, error) {
	var (
		cs                  models.ClaimStage
		rowID, cid, wid, st uuid.UUID
		state               string
		evidenceDoc         uuid.NullUUID
		dueAt               sql.NullTime
		completedBy         uuid.NullUUID
		completedAt         sql.NullTime
	)
	err := row.Scan(&rowID, &cid, &wid, &st, &state, &cs.Note, &evidenceDoc, &dueAt,
		&completedBy, &completedAt, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan claim stage: %w", err)
	}
	cs.ID = id.ClaimStageID(rowID)
	cs.ClaimID = id.ClaimID(cid)
	cs.WorkflowID = id.WorkflowID(wid)
	cs.StageID = id.StageID(st)
	cs.State = models.State(state)
	if evidenceDoc.Valid {
		doc := id.DocumentID(evidenceDoc.UUID)
		cs.EvidenceDocID = &doc
	}
	if dueAt.Valid {
		cs.DueAt = &dueAt.Time
	}
	if completedBy.Valid {
		by := id.UserID(completedBy.UUID)
		cs.CompletedBy = &by
	}
	if completedAt.Valid {
		cs.CompletedAt = &completedAt.Time
	}
	return &cs, nil
}

func docParam(d *id.DocumentID) any {
	if d == nil {
		return nil
	}
	return uuid.UUID(*d)
}

func userParam(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}
