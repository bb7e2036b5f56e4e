package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"claimdesk/internal/narrative/models"
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

// Postgres persists description versions.
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

const versionColumns = `id, claim_id, version, text, note, is_current, created_by, created_at, updated_at, deleted_at`

func (p *Postgres) Create(ctx context.Context, v *models.DescriptionVersion) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO description_versions (id, claim_id, version, text, note, is_current, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(v.ID), uuid.UUID(v.ClaimID), v.Version, v.Text, v.Note,
		v.IsCurrent, userParam(v.CreatedBy), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert description version: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, v *models.DescriptionVersion) error {
	res, err := p.q.ExecContext(ctx, `
		UPDATE description_versions
		SET note = $2, is_current = $3, updated_at = $4, deleted_at = $5
		WHERE id = $1`,
		uuid.UUID(v.ID), v.Note, v.IsCurrent, v.UpdatedAt, v.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update description version: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) Find(ctx context.Context, versionID id.VersionID) (*models.DescriptionVersion, error) {
	row := p.q.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM description_versions
		WHERE id = $1`,
		uuid.UUID(versionID),
	)
	return scanVersion(row)
}

func (p *Postgres) FindCurrent(ctx context.Context, claimID id.ClaimID) (*models.DescriptionVersion, error) {
	row := p.q.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM description_versions
		WHERE claim_id = $1 AND is_current AND deleted_at IS NULL`,
		uuid.UUID(claimID),
	)
	return scanVersion(row)
}

func (p *Postgres) ListByClaim(ctx context.Context, claimID id.ClaimID) ([]*models.DescriptionVersion, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT `+versionColumns+`
		FROM description_versions
		WHERE claim_id = $1 AND deleted_at IS NULL
		ORDER BY version DESC`,
		uuid.UUID(claimID),
	)
	if err != nil {
		return nil, fmt.Errorf("list description versions: %w", err)
	}
	defer rows.Close()

	versions := make([]*models.DescriptionVersion, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (p *Postgres) MaxVersion(ctx context.Context, claimID id.ClaimID) (int, error) {
	var max int
	err := p.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM description_versions
		WHERE claim_id = $1`,
		uuid.UUID(claimID),
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max description version: %w", err)
	}
	return max, nil
}

func (p *Postgres) ClearCurrent(ctx context.Context, claimID id.ClaimID, keep id.VersionID) error {
	_, err := p.q.ExecContext(ctx, `
		UPDATE description_versions
		SET is_current = FALSE
		WHERE claim_id = $1 AND id <> $2 AND is_current`,
		uuid.UUID(claimID), uuid.UUID(keep),
	)
	if err != nil {
		return fmt.Errorf("clear current version: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*models.DescriptionVersion, error) {
	var (
		v         models.DescriptionVersion
		versionID uuid.UUID
		claimID   uuid.UUID
		createdBy uuid.NullUUID
		deletedAt sql.NullTime
	)
	err := row.Scan(&versionID, &claimID, &v.Version, &v.Text, &v.Note,
		&v.IsCurrent, &createdBy, &v.CreatedAt, &v.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan description version: %w", err)
	}
	v.ID = id.VersionID(versionID)
	v.ClaimID = id.ClaimID(claimID)
	if createdBy.Valid {
		by := id.UserID(createdBy.UUID)
		v.CreatedBy = &by
	}
	if deletedAt.Valid {
		v.DeletedAt = &deletedAt.Time
	}
	return &v, nil
}

func userParam(userID *id.UserID) uuid.NullUUID {
	if userID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*userID), Valid: true}
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
