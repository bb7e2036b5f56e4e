package audit

import (
	"context"
	"errors"
	"time"
)

// ErrInboxFull reports a dropped event; callers only ever log it.
var ErrInboxFull = errors.New("audit inbox full")

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	return p.store.Append(ctx, base)
}

// List returns the activity trail for one entity, oldest first.
func (p *Publisher) List(ctx context.Context, entity, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, entity, entityID)
}

// ChannelPublisher hands events to an in-process inbox drained by a Worker,
// keeping request handling off the persistence path. A full inbox drops the
// event; the trail is best-effort and must never stall a business operation.
type ChannelPublisher struct {
	inbox chan<- Event
}

func NewChannelPublisher(inbox chan<- Event) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox}
}

func (p *ChannelPublisher) Emit(_ context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	select {
	case p.inbox <- base:
		return nil
	default:
		return ErrInboxFull
	}
}
