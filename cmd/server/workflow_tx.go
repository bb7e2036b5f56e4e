package main

import (
	"context"
	"database/sql"
	"time"

	wfservice "claimdesk/internal/workflow/service"
	wfstore "claimdesk/internal/workflow/store"
	dErrors "claimdesk/pkg/domain-errors"
)

const defaultWorkflowTxTimeout = 5 * time.Second

// workflowPostgresTx runs catalog mutations inside a database transaction so
// default-flag swaps stay atomic under concurrent writers.
type workflowPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newWorkflowPostgresTx(db *sql.DB) *workflowPostgresTx {
	return &workflowPostgresTx{db: db}
}

func (t *workflowPostgresTx) RunInTx(ctx context.Context, fn func(store wfservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultWorkflowTxTimeout
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

	if err := fn(wfstore.NewPostgresTx(tx)); err != nil {
		return err
	}

	return tx.Commit()
}
