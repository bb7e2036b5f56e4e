package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	platformredis "claimdesk/internal/platform/redis"
	"claimdesk/internal/workflow/models"
	id "claimdesk/pkg/domain"
)

// Redis caches default-workflow resolutions. Every failure is treated as a
// miss; the resolver always has the store as the source of truth.
type Redis struct {
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

const defaultTTL = 5 * time.Minute

func NewRedis(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) (*models.Workflow, bool) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var w models.Workflow
	if err := json.Unmarshal(payload, &w); err != nil {
		r.logger.WarnContext(ctx, "resolver cache entry corrupt, dropping", "key", key, "error", err)
		_ = r.client.Del(ctx, key).Err()
		return nil, false
	}
	return &w, true
}

func (r *Redis) Set(ctx context.Context, key string, w *models.Workflow) {
	payload, err := json.Marshal(w)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "resolver cache write failed", "key", key, "error", err)
	}
}

// InvalidateCompany drops every cached resolution for the company. Area
// scopes fall back to the company-general default, so partial invalidation
// would leave stale fallbacks behind.
func (r *Redis) InvalidateCompany(ctx context.Context, companyID id.CompanyID) {
	pattern := "workflow:default:" + companyID.String() + ":*"
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			r.logger.WarnContext(ctx, "resolver cache invalidation failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.WarnContext(ctx, "resolver cache scan failed", "pattern", pattern, "error", err)
	}
}
