package main

import (
	"context"
	"database/sql"
	"time"

	narrservice "claimdesk/internal/narrative/service"
	narrstore "claimdesk/internal/narrative/store"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

const defaultNarrativeTxTimeout = 5 * time.Second

// narrativePostgresTx scopes a version append to one database transaction.
// Concurrent appends for the same claim are resolved by the (claim, version)
// uniqueness constraint and the service's retry, not by locking.
type narrativePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newNarrativePostgresTx(db *sql.DB) *narrativePostgresTx {
	return &narrativePostgresTx{db: db}
}

func (t *narrativePostgresTx) RunInTx(ctx context.Context, _ id.ClaimID, fn func(store narrservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultNarrativeTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(narrstore.NewPostgresTx(tx)); err != nil {
		return err
	}

	return tx.Commit()
}
