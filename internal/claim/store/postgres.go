package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"claimdesk/internal/claim/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Postgres persists claims.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const claimColumns = `id, company_id, area_id, workflow_id, provenance_id, number, code, title, claim_date, description, created_by, created_at, updated_at, deleted_at`

func (p *Postgres) Create(ctx context.Context, c *models.Claim) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO claims (id, company_id, area_id, workflow_id, provenance_id, number, code, title, claim_date, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(c.ID), uuid.UUID(c.CompanyID), nullableUUID(areaUUID(c.AreaID)),
		uuid.UUID(c.WorkflowID), nullableUUID(provUUID(c.ProvenanceID)),
		c.Number, c.Code, c.Title, c.ClaimDate, c.Description,
		nullableUUID(userUUID(c.CreatedBy)), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, c *models.Claim) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE claims
		SET code = $2, title = $3, claim_date = $4, description = $5, provenance_id = $6, updated_at = $7, deleted_at = $8
		WHERE id = $1`,
		uuid.UUID(c.ID), c.Code, c.Title, c.ClaimDate, c.Description,
		nullableUUID(provUUID(c.ProvenanceID)), c.UpdatedAt, c.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
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

func (p *Postgres) Find(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE id = $1`,
		uuid.UUID(claimID),
	)
	return scanClaim(row)
}

func (p *Postgres) FindByNumber(ctx context.Context, companyID id.CompanyID, number string) (*models.Claim, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE company_id = $1 AND lower(number) = lower($2) AND deleted_at IS NULL`,
		uuid.UUID(companyID), number,
	)
	return scanClaim(row)
}

func (p *Postgres) List(ctx context.Context, companyID id.CompanyID) ([]*models.Claim, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE company_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id`,
		uuid.UUID(companyID),
	)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var out []*models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CodeExists checks codes across every claim, tombstoned ones included, so
// a deleted claim never frees its code.
func (p *Postgres) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM claims WHERE code = $1)`,
		code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check claim code: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var (
		c           models.Claim
		cid, comp   uuid.UUID
		area        uuid.NullUUID
		wf          uuid.UUID
		prov        uuid.NullUUID
		code        sql.NullString
		createdBy   uuid.NullUUID
		deletedAt   sql.NullTime
	)
	err := row.Scan(&cid, &comp, &area, &wf, &prov, &c.Number, &code, &c.Title,
		&c.ClaimDate, &c.Description, &createdBy, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	c.ID = id.ClaimID(cid)
	c.CompanyID = id.CompanyID(comp)
	c.WorkflowID = id.WorkflowID(wf)
	if area.Valid {
		a := id.AreaID(area.UUID)
		c.AreaID = &a
	}
	if prov.Valid {
		pv := id.ProvenanceID(prov.UUID)
		c.ProvenanceID = &pv
	}
	if code.Valid {
		c.Code = code.String
	}
	if createdBy.Valid {
		by := id.UserID(createdBy.UUID)
		c.CreatedBy = &by
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return &c, nil
}

// PostgresCounters allocates claim code sequences atomically via upsert.
type PostgresCounters struct {
	db *sql.DB
}

func NewPostgresCounters(db *sql.DB) *PostgresCounters {
	return &PostgresCounters{db: db}
}

func (p *PostgresCounters) Next(ctx context.Context, key string) (int, error) {
	var value int
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO claim_code_counters (counter_key, value)
		VALUES ($1, 1)
		ON CONFLICT (counter_key)
		DO UPDATE SET value = claim_code_counters.value + 1
		RETURNING value`,
		key,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("advance counter %q: %w", key, err)
	}
	return value, nil
}

// PostgresProvenances reads the provenance catalog.
type PostgresProvenances struct {
	db *sql.DB
}

func NewPostgresProvenances(db *sql.DB) *PostgresProvenances {
	return &PostgresProvenances{db: db}
}

func (p *PostgresProvenances) Find(ctx context.Context, provenanceID id.ProvenanceID) (*models.Provenance, error) {
	var (
		prov models.Provenance
		pid  uuid.UUID
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, code, name FROM provenances WHERE id = $1`,
		uuid.UUID(provenanceID),
	).Scan(&pid, &prov.Code, &prov.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find provenance: %w", err)
	}
	prov.ID = id.ProvenanceID(pid)
	return &prov, nil
}

func nullableUUID(u *uuid.UUID) any {
	if u == nil {
		return nil
	}
	return *u
}

func areaUUID(a *id.AreaID) *uuid.UUID {
	if a == nil {
		return nil
	}
	u := uuid.UUID(*a)
	return &u
}

func provUUID(p *id.ProvenanceID) *uuid.UUID {
	if p == nil {
		return nil
	}
	u := uuid.UUID(*p)
	return &u
}

func userUUID(u *id.UserID) *uuid.UUID {
	if u == nil {
		return nil
	}
	v := uuid.UUID(*u)
	return &v
}
