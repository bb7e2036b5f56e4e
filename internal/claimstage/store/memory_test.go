package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"claimdesk/internal/claimstage/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

type ClaimStageStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
}

func (s *ClaimStageStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func TestClaimStageStoreSuite(t *testing.T) {
	suite.Run(t, new(ClaimStageStoreSuite))
}

func (s *ClaimStageStoreSuite) newRow(claimID id.ClaimID, createdAt time.Time) *models.ClaimStage {
	row, err := models.NewClaimStage(id.ClaimStageID(uuid.New()), claimID,
		id.WorkflowID(uuid.New()), id.StageID(uuid.New()), createdAt)
	s.Require().NoError(err)
	return row
}

func (s *ClaimStageStoreSuite) TestBatchCreateAndList() {
	claimID := id.ClaimID(uuid.New())
	now := time.Now().UTC()
	rows := []*models.ClaimStage{
		s.newRow(claimID, now),
		s.newRow(claimID, now.Add(time.Millisecond)),
		s.newRow(claimID, now.Add(2*time.Millisecond)),
	}
	s.Require().NoError(s.store.CreateBatch(s.ctx, rows))

	listed, err := s.store.ListByClaim(s.ctx, claimID)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal(rows[0].ID, listed[0].ID)

	other, err := s.store.ListByClaim(s.ctx, id.ClaimID(uuid.New()))
	s.Require().NoError(err)
	s.Empty(other)
}

func (s *ClaimStageStoreSuite) TestBatchIsAtomic() {
	claimID := id.ClaimID(uuid.New())
	now := time.Now().UTC()
	first := s.newRow(claimID, now)
	s.Require().NoError(s.store.CreateBatch(s.ctx, []*models.ClaimStage{first}))

	// Batch contains a duplicate (claim, stage) pair; nothing must land.
	dup, err := models.NewClaimStage(id.ClaimStageID(uuid.New()), claimID,
		first.WorkflowID, first.StageID, now)
	s.Require().NoError(err)
	fresh := s.newRow(claimID, now)

	s.Require().ErrorIs(s.store.CreateBatch(s.ctx, []*models.ClaimStage{fresh, dup}), sentinel.ErrConflict)

	listed, err := s.store.ListByClaim(s.ctx, claimID)
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *ClaimStageStoreSuite) TestLookupsAndUpdate() {
	claimID := id.ClaimID(uuid.New())
	row := s.newRow(claimID, time.Now().UTC())
	s.Require().NoError(s.store.CreateBatch(s.ctx, []*models.ClaimStage{row}))

	s.Run("find by ID", func() {
		found, err := s.store.Find(s.ctx, row.ID)
		s.Require().NoError(err)
		s.Equal(models.StatePending, found.State)
	})

	s.Run("find by claim and stage", func() {
		found, err := s.store.FindByClaimAndStage(s.ctx, claimID, row.StageID)
		s.Require().NoError(err)
		s.Equal(row.ID, found.ID)
	})

	s.Run("update persists state", func() {
		actor := id.UserID(uuid.New())
		s.Require().NoError(row.Complete(actor, nil, "done", time.Now().UTC()))
		s.Require().NoError(s.store.Update(s.ctx, row))

		found, err := s.store.Find(s.ctx, row.ID)
		s.Require().NoError(err)
		s.Equal(models.StateCompleted, found.State)
		s.Require().NotNil(found.CompletedBy)
		s.Equal(actor, *found.CompletedBy)
	})

	s.Run("update of unknown row is not found", func() {
		ghost := s.newRow(id.ClaimID(uuid.New()), time.Now().UTC())
		s.Require().ErrorIs(s.store.Update(s.ctx, ghost), sentinel.ErrNotFound)
	})

	s.Run("unknown lookups are not found", func() {
		_, err := s.store.Find(s.ctx, id.ClaimStageID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByClaimAndStage(s.ctx, claimID, id.StageID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
