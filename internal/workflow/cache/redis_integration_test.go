//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimdesk/internal/platform/config"
	platformredis "claimdesk/internal/platform/redis"
	"claimdesk/internal/workflow/cache"
	"claimdesk/internal/workflow/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/testutil/containers"
)

func newRedisCache(t *testing.T) (*cache.Redis, *containers.RedisContainer) {
	t.Helper()
	rc := containers.NewRedisContainer(t)
	client, err := platformredis.New(config.RedisConfig{URL: rc.Addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedis(client, time.Minute, nil), rc
}

func cacheKey(scope models.Scope) string {
	return "workflow:default:" + scope.Key()
}

func newCachedWorkflow(t *testing.T, companyID id.CompanyID) *models.Workflow {
	t.Helper()
	w, err := models.NewWorkflow(id.WorkflowID(uuid.New()), companyID, nil,
		"auto claims", "", true, true, time.Now().UTC())
	require.NoError(t, err)
	return w
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()
	companyID := id.CompanyID(uuid.New())
	w := newCachedWorkflow(t, companyID)
	key := cacheKey(models.Scope{CompanyID: companyID})

	_, ok := c.Get(ctx, key)
	assert.False(t, ok, "empty cache must miss")

	c.Set(ctx, key, w)

	cached, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, w.ID, cached.ID)
	assert.Equal(t, w.Name, cached.Name)
}

func TestRedisCacheDropsCorruptEntries(t *testing.T) {
	c, rc := newRedisCache(t)
	ctx := context.Background()
	key := cacheKey(models.Scope{CompanyID: id.CompanyID(uuid.New())})

	require.NoError(t, rc.Client.Set(ctx, key, "not json", time.Minute).Err())

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	// The corrupt entry is gone, not just skipped.
	err := rc.Client.Get(ctx, key).Err()
	assert.Error(t, err)
}

func TestRedisCacheInvalidateCompany(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()
	companyID := id.CompanyID(uuid.New())
	otherCompany := id.CompanyID(uuid.New())
	areaID := id.AreaID(uuid.New())

	general := cacheKey(models.Scope{CompanyID: companyID})
	scoped := cacheKey(models.Scope{CompanyID: companyID, AreaID: &areaID})
	foreign := cacheKey(models.Scope{CompanyID: otherCompany})

	c.Set(ctx, general, newCachedWorkflow(t, companyID))
	c.Set(ctx, scoped, newCachedWorkflow(t, companyID))
	c.Set(ctx, foreign, newCachedWorkflow(t, otherCompany))

	c.InvalidateCompany(ctx, companyID)

	_, ok := c.Get(ctx, general)
	assert.False(t, ok, "company-general entry must be invalidated")
	_, ok = c.Get(ctx, scoped)
	assert.False(t, ok, "area-scoped entry must be invalidated")
	_, ok = c.Get(ctx, foreign)
	assert.True(t, ok, "other companies keep their entries")
}
