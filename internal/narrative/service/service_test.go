package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"claimdesk/internal/narrative/models"
	"claimdesk/internal/narrative/service"
	"claimdesk/internal/narrative/store"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/requestcontext"
)

func newService() *service.Service {
	return service.New(store.NewMemory())
}

func TestCreateAssignsSequentialVersions(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	first, err := svc.Create(ctx, claimID, "rear-end collision on I-95", "")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.True(t, first.IsCurrent)

	second, err := svc.Create(ctx, claimID, "rear-end collision, both vehicles towed", "adjuster notes")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.True(t, second.IsCurrent)

	// The previous head loses currency.
	reloaded, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsCurrent)

	current, err := svc.GetCurrent(ctx, claimID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Create(ctx, id.ClaimID{}, "text", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Create(ctx, id.ClaimID(uuid.New()), "   ", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCreateRecordsActor(t *testing.T) {
	svc := newService()
	claimID := id.ClaimID(uuid.New())
	actor := id.UserID(uuid.New())
	ctx := requestcontext.WithActorID(context.Background(), actor)

	v, err := svc.Create(ctx, claimID, "initial description", "")
	require.NoError(t, err)
	require.NotNil(t, v.CreatedBy)
	assert.Equal(t, actor, *v.CreatedBy)
}

func TestSeedInitialIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	require.NoError(t, svc.SeedInitial(ctx, claimID, "water damage in basement"))
	require.NoError(t, svc.SeedInitial(ctx, claimID, "a retried different text"))

	versions, err := svc.List(ctx, claimID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "water damage in basement", versions[0].Text)
	assert.Equal(t, 1, versions[0].Version)
}

func TestSeedInitialSkipsHistory(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	_, err := svc.Create(ctx, claimID, "manually created first", "")
	require.NoError(t, err)

	require.NoError(t, svc.SeedInitial(ctx, claimID, "late seed"))

	versions, err := svc.List(ctx, claimID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "manually created first", versions[0].Text)
}

func TestSeedInitialIgnoresEmptyText(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	require.NoError(t, svc.SeedInitial(ctx, claimID, "  "))

	_, err := svc.GetCurrent(ctx, claimID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestUpdateNoteKeepsTextImmutable(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	v, err := svc.Create(ctx, claimID, "kitchen fire, smoke damage", "")
	require.NoError(t, err)

	updated, err := svc.UpdateNote(ctx, v.ID, "reviewed by senior adjuster")
	require.NoError(t, err)
	assert.Equal(t, "reviewed by senior adjuster", updated.Note)
	assert.Equal(t, "kitchen fire, smoke damage", updated.Text)
	assert.Equal(t, v.Version, updated.Version)
}

func TestRestoreCreatesNewHead(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	first, err := svc.Create(ctx, claimID, "original account", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, claimID, "revised account", "")
	require.NoError(t, err)

	restored, err := svc.Restore(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Version)
	assert.Equal(t, "original account", restored.Text)
	assert.Equal(t, "restored from version 1", restored.Note)
	assert.True(t, restored.IsCurrent)

	// Restoring never rewrites history; the source stays untouched.
	source, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, source.IsCurrent)

	versions, err := svc.List(ctx, claimID)
	require.NoError(t, err)
	assert.Len(t, versions, 3)
}

func TestRestoreCurrentAppendsNewHead(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	v, err := svc.Create(ctx, claimID, "only version", "")
	require.NoError(t, err)

	restored, err := svc.Restore(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Version)
	assert.Equal(t, "only version", restored.Text)
	assert.Equal(t, "restored from version 1", restored.Note)

	current, err := svc.GetCurrent(ctx, claimID)
	require.NoError(t, err)
	assert.Equal(t, restored.ID, current.ID)
}

func TestDeleteCurrentConflicts(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	v, err := svc.Create(ctx, claimID, "current head", "")
	require.NoError(t, err)

	err = svc.Delete(ctx, v.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestDeletedVersionNumberIsNeverReused(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	first, err := svc.Create(ctx, claimID, "v1", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, claimID, "v2", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, first.ID))

	_, err = svc.Get(ctx, first.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	versions, err := svc.List(ctx, claimID)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	// The next append still lands past the deleted number.
	third, err := svc.Create(ctx, claimID, "v3", "")
	require.NoError(t, err)
	assert.Equal(t, 3, third.Version)
}

func TestDeleteUnknownVersion(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	err := svc.Delete(ctx, id.VersionID(uuid.New()))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

// flakyStore rejects a fixed number of creates with ErrConflict, as a
// database would when two appends race on the same version number.
type flakyStore struct {
	service.Store
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) Create(ctx context.Context, v *models.DescriptionVersion) error {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return sentinel.ErrConflict
	}
	return f.Store.Create(ctx, v)
}

func TestCreateRetriesLostVersionRace(t *testing.T) {
	ctx := context.Background()
	claimID := id.ClaimID(uuid.New())

	t.Run("a lost race is retried", func(t *testing.T) {
		svc := service.New(&flakyStore{Store: store.NewMemory(), failures: 1})
		v, err := svc.Create(ctx, claimID, "contested write", "")
		require.NoError(t, err)
		assert.Equal(t, 1, v.Version)
	})

	t.Run("persistent conflicts surface after bounded retries", func(t *testing.T) {
		svc := service.New(&flakyStore{Store: store.NewMemory(), failures: 10})
		_, err := svc.Create(ctx, claimID, "contested write", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	claimID := id.ClaimID(uuid.New())

	const writers = 16
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.Create(ctx, claimID, fmt.Sprintf("revision %d", i), "")
			return err
		})
	}
	require.NoError(t, g.Wait())

	versions, err := svc.List(ctx, claimID)
	require.NoError(t, err)
	require.Len(t, versions, writers)

	seen := make(map[int]bool, writers)
	currents := 0
	for _, v := range versions {
		assert.False(t, seen[v.Version], "version %d assigned twice", v.Version)
		seen[v.Version] = true
		if v.IsCurrent {
			currents++
		}
	}
	assert.Equal(t, 1, currents, "exactly one current version survives")

	current, err := svc.GetCurrent(ctx, claimID)
	require.NoError(t, err)
	assert.Equal(t, writers, current.Version)
}
