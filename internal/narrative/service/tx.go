package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// Tx serializes version-head mutations per claim so the max-version read and
// the current-flag swap act as one unit.
type Tx interface {
	RunInTx(ctx context.Context, claimID id.ClaimID, fn func(store Store) error) error
}

// numClaimShards spreads claim locks over independent mutexes.
const numClaimShards = 128

// defaultTxTimeout bounds a version transaction.
const defaultTxTimeout = 5 * time.Second

// NewShardedTx wraps an in-memory store with claim-sharded locking.
func NewShardedTx(store Store) Tx {
	return &shardedClaimTx{store: store}
}

type shardedClaimTx struct {
	shards  [numClaimShards]sync.Mutex
	store   Store
	timeout time.Duration
}

func (t *shardedClaimTx) RunInTx(ctx context.Context, claimID id.ClaimID, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(claimID.String()))
	shard := int(h.Sum32() % numClaimShards)

	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}
