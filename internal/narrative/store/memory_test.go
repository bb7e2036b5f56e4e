package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"claimdesk/internal/narrative/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

type VersionStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
}

func (s *VersionStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func TestVersionStoreSuite(t *testing.T) {
	suite.Run(t, new(VersionStoreSuite))
}

func (s *VersionStoreSuite) newVersion(claimID id.ClaimID, number int) *models.DescriptionVersion {
	v, err := models.NewDescriptionVersion(id.VersionID(uuid.New()), claimID, number,
		fmt.Sprintf("revision %d", number), "", time.Now().UTC())
	s.Require().NoError(err)
	return v
}

func (s *VersionStoreSuite) TestCreateAndFind() {
	claimID := id.ClaimID(uuid.New())
	v := s.newVersion(claimID, 1)
	s.Require().NoError(s.store.Create(s.ctx, v))

	found, err := s.store.Find(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.Text, found.Text)

	_, err = s.store.Find(s.ctx, id.VersionID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *VersionStoreSuite) TestDuplicateVersionNumberConflicts() {
	claimID := id.ClaimID(uuid.New())
	s.Require().NoError(s.store.Create(s.ctx, s.newVersion(claimID, 1)))

	dup := s.newVersion(claimID, 1)
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)

	// The same number on a different claim is fine.
	s.NoError(s.store.Create(s.ctx, s.newVersion(id.ClaimID(uuid.New()), 1)))
}

func (s *VersionStoreSuite) TestCopyOnRead() {
	claimID := id.ClaimID(uuid.New())
	v := s.newVersion(claimID, 1)
	s.Require().NoError(s.store.Create(s.ctx, v))

	found, err := s.store.Find(s.ctx, v.ID)
	s.Require().NoError(err)
	found.Note = "mutated by caller"

	again, err := s.store.Find(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Empty(again.Note)
}

func (s *VersionStoreSuite) TestListOrdersByVersion() {
	claimID := id.ClaimID(uuid.New())
	s.Require().NoError(s.store.Create(s.ctx, s.newVersion(claimID, 3)))
	s.Require().NoError(s.store.Create(s.ctx, s.newVersion(claimID, 1)))
	s.Require().NoError(s.store.Create(s.ctx, s.newVersion(claimID, 2)))

	listed, err := s.store.ListByClaim(s.ctx, claimID)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal(3, listed[0].Version)
	s.Equal(2, listed[1].Version)
	s.Equal(1, listed[2].Version)
}

func (s *VersionStoreSuite) TestListExcludesDeletedButMaxCountsThem() {
	claimID := id.ClaimID(uuid.New())
	first := s.newVersion(claimID, 1)
	second := s.newVersion(claimID, 2)
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))

	second.IsCurrent = false
	s.Require().NoError(second.SoftDelete(time.Now().UTC()))
	s.Require().NoError(s.store.Update(s.ctx, second))

	listed, err := s.store.ListByClaim(s.ctx, claimID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(1, listed[0].Version)

	max, err := s.store.MaxVersion(s.ctx, claimID)
	s.Require().NoError(err)
	s.Equal(2, max)
}

func (s *VersionStoreSuite) TestClearCurrentKeepsExcepted() {
	claimID := id.ClaimID(uuid.New())
	first := s.newVersion(claimID, 1)
	second := s.newVersion(claimID, 2)
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))

	s.Require().NoError(s.store.ClearCurrent(s.ctx, claimID, second.ID))

	current, err := s.store.FindCurrent(s.ctx, claimID)
	s.Require().NoError(err)
	s.Equal(second.ID, current.ID)

	demoted, err := s.store.Find(s.ctx, first.ID)
	s.Require().NoError(err)
	s.False(demoted.IsCurrent)
}

func (s *VersionStoreSuite) TestFindCurrentSkipsDeleted() {
	claimID := id.ClaimID(uuid.New())
	v := s.newVersion(claimID, 1)
	s.Require().NoError(s.store.Create(s.ctx, v))

	v.IsCurrent = false
	s.Require().NoError(v.SoftDelete(time.Now().UTC()))
	s.Require().NoError(s.store.Update(s.ctx, v))

	_, err := s.store.FindCurrent(s.ctx, claimID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
