package service

import (
	"context"
	"sync"
	"time"

	dErrors "claimdesk/pkg/domain-errors"
)

// Tx provides a transactional boundary for catalog mutations that touch the
// per-(company, area) default flag. Implementations may wrap a database
// transaction or, in-memory, a lock sharded by scope key so unrelated scopes
// never serialize behind each other.
type Tx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// numScopeShards spreads scope locks across independent mutexes. Contention
// only matters within one (company, area) scope, so a modest shard count is
// plenty.
const numScopeShards = 64

// defaultTxTimeout bounds a catalog transaction.
const defaultTxTimeout = 5 * time.Second

// NewShardedTx wraps an in-memory store with scope-sharded locking.
func NewShardedTx(store Store) Tx {
	return &shardedScopeTx{store: store}
}

type shardedScopeTx struct {
	shards  [numScopeShards]sync.Mutex
	store   Store
	timeout time.Duration
}

func (t *shardedScopeTx) RunInTx(ctx context.Context, fn func(store Store) error) error {
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

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}

func (t *shardedScopeTx) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(txScopeKeyCtx).(string); ok && key != "" {
		return int(hashScopeKey(key) % numScopeShards)
	}
	return 0
}

// hashScopeKey uses FNV-1a for even shard distribution.
func hashScopeKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type txScopeKey struct{}

var txScopeKeyCtx = txScopeKey{}

// WithTxScope tags the context with the contended scope key so the sharded
// tx locks only that scope's shard.
func WithTxScope(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, txScopeKeyCtx, key)
}
