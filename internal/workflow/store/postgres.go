package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"claimdesk/internal/workflow/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same store code
// serves direct calls and transactional adapters.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres persists the workflow catalog.
type Postgres struct {
	q querier
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{q: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *Postgres {
	return &Postgres{q: tx}
}

const workflowColumns = `id, company_id, area_id, name, description, active, is_default, created_at, updated_at, deleted_at`

func (p *Postgres) CreateWorkflow(ctx context.Context, w *models.Workflow) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO workflows (id, company_id, area_id, name, description, active, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(w.ID), uuid.UUID(w.CompanyID), areaParam(w.AreaID),
		w.Name, w.Description, w.Active, w.IsDefault, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateWorkflow(ctx context.Context, w *models.Workflow) error {
	res, err := p.q.ExecContext(ctx, `
		UPDATE workflows
		SET name = $2, description = $3, active = $4, is_default = $5, updated_at = $6, deleted_at = $7
		WHERE id = $1`,
		uuid.UUID(w.ID), w.Name, w.Description, w.Active, w.IsDefault, w.UpdatedAt, w.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) FindWorkflow(ctx context.Context, workflowID id.WorkflowID) (*models.Workflow, error) {
	row := p.q.QueryRowContext(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE id = $1`,
		uuid.UUID(workflowID),
	)
	return scanWorkflow(row)
}

func (p *Postgres) ListWorkflows(ctx context.Context, companyID id.CompanyID, areaID *id.AreaID, activeOnly bool) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE company_id = $1 AND deleted_at IS NULL`
	args := []any{uuid.UUID(companyID)}
	if areaID != nil {
		args = append(args, uuid.UUID(*areaID))
		query += fmt.Sprintf(" AND area_id = $%d", len(args))
	}
	if activeOnly {
		query += " AND active"
	}
	query += " ORDER BY created_at, id"

	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []*models.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *Postgres) FindDefault(ctx context.Context, scope models.Scope) (*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE company_id = $1 AND is_default AND active AND deleted_at IS NULL`
	args := []any{uuid.UUID(scope.CompanyID)}
	if scope.AreaID != nil {
		args = append(args, uuid.UUID(*scope.AreaID))
		query += " AND area_id = $2"
	} else {
		query += " AND area_id IS NULL"
	}

	return scanWorkflow(p.q.QueryRowContext(ctx, query, args...))
}

func (p *Postgres) ClearDefault(ctx context.Context, scope models.Scope, keep id.WorkflowID) error {
	query := `
		UPDATE workflows
		SET is_default = FALSE, updated_at = $1
		WHERE company_id = $2 AND id <> $3 AND is_default AND deleted_at IS NULL`
	args := []any{time.Now().UTC(), uuid.UUID(scope.CompanyID), uuid.UUID(keep)}
	if scope.AreaID != nil {
		args = append(args, uuid.UUID(*scope.AreaID))
		query += " AND area_id = $4"
	} else {
		query += " AND area_id IS NULL"
	}
	if _, err := p.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear default workflows: %w", err)
	}
	return nil
}

const stageColumns = `id, workflow_id, name, description, stage_order, mandatory, allow_skip, blocks_next, required_doc_type_id, active, created_at, updated_at, deleted_at`

func (p *Postgres) CreateStage(ctx context.Context, st *models.Stage) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO workflow_stages (id, workflow_id, name, description, stage_order, mandatory, allow_skip, blocks_next, required_doc_type_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(st.ID), uuid.UUID(st.WorkflowID), st.Name, st.Description, st.Order,
		st.Mandatory, st.AllowSkip, st.BlocksNext, docTypeParam(st.RequiredDocTypeID),
		st.Active, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateStage(ctx context.Context, st *models.Stage) error {
	res, err := p.q.ExecContext(ctx, `
		UPDATE workflow_stages
		SET name = $2, description = $3, stage_order = $4, mandatory = $5, allow_skip = $6,
			blocks_next = $7, required_doc_type_id = $8, active = $9, updated_at = $10, deleted_at = $11
		WHERE id = $1`,
		uuid.UUID(st.ID), st.Name, st.Description, st.Order, st.Mandatory, st.AllowSkip,
		st.BlocksNext, docTypeParam(st.RequiredDocTypeID), st.Active, st.UpdatedAt, st.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) FindStage(ctx context.Context, stageID id.StageID) (*models.Stage, error) {
	row := p.q.QueryRowContext(ctx, `
		SELECT `+stageColumns+`
		FROM workflow_stages
		WHERE id = $1`,
		uuid.UUID(stageID),
	)
	return scanStage(row)
}

func (p *Postgres) ListStages(ctx context.Context, workflowID id.WorkflowID, activeOnly bool) ([]*models.Stage, error) {
	query := `
		SELECT ` + stageColumns + `
		FROM workflow_stages
		WHERE workflow_id = $1 AND deleted_at IS NULL`
	if activeOnly {
		query += " AND active"
	}
	query += " ORDER BY stage_order, id"

	rows, err := p.q.QueryContext(ctx, query, uuid.UUID(workflowID))
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []*models.Stage
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		w         models.Workflow
		wid, cid  uuid.UUID
		areaID    uuid.NullUUID
		deletedAt sql.NullTime
	)
	err := row.Scan(&wid, &cid, &areaID, &w.Name, &w.Description, &w.Active, &w.IsDefault,
		&w.CreatedAt, &w.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan workflow: %w", err)
	}
	w.ID = id.WorkflowID(wid)
	w.CompanyID = id.CompanyID(cid)
	if areaID.Valid {
		area := id.AreaID(areaID.UUID)
		w.AreaID = &area
	}
	if deletedAt.Valid {
		w.DeletedAt = &deletedAt.Time
	}
	return &w, nil
}

func scanStage(row rowScanner) (*models.Stage, error) {
	var (
		st        models.Stage
		sid, wid  uuid.UUID
		docTypeID uuid.NullUUID
		deletedAt sql.NullTime
	)
	err := row.Scan(&sid, &wid, &st.Name, &st.Description, &st.Order, &st.Mandatory,
		&st.AllowSkip, &st.BlocksNext, &docTypeID, &st.Active,
		&st.CreatedAt, &st.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan stage: %w", err)
	}
	st.ID = id.StageID(sid)
	st.WorkflowID = id.WorkflowID(wid)
	if docTypeID.Valid {
		dt := id.DocTypeID(docTypeID.UUID)
		st.RequiredDocTypeID = &dt
	}
	if deletedAt.Valid {
		st.DeletedAt = &deletedAt.Time
	}
	return &st, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func areaParam(areaID *id.AreaID) any {
	if areaID == nil {
		return nil
	}
	return uuid.UUID(*areaID)
}

func docTypeParam(dt *id.DocTypeID) any {
	if dt == nil {
		return nil
	}
	return uuid.UUID(*dt)
}
