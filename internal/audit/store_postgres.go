package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "claimdesk/pkg/domain"
)

// PostgresStore persists activity-log events. Rows are append-only; nothing
// in the service ever updates or deletes them.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, actor_id, action, entity, entity_id, detail, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var actor any
	if !event.Actor.IsNil() {
		actor = uuid.UUID(event.Actor)
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		actor,
		string(event.Action),
		event.Entity,
		event.EntityID,
		event.Detail,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error) {
	query := `
		SELECT actor_id, action, entity, entity_id, detail, request_id, created_at
		FROM audit_events
		WHERE entity = $1 AND entity_id = $2
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, entity, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var actor uuid.NullUUID
		if err := rows.Scan(&actor, &event.Action, &event.Entity, &event.EntityID, &event.Detail, &event.RequestID, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if actor.Valid {
			event.Actor = id.UserID(actor.UUID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
