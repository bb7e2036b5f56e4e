package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"claimdesk/internal/workflow/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

type WorkflowStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
}

func (s *WorkflowStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func TestWorkflowStoreSuite(t *testing.T) {
	suite.Run(t, new(WorkflowStoreSuite))
}

func (s *WorkflowStoreSuite) newWorkflow(company id.CompanyID, area *id.AreaID) *models.Workflow {
	now := time.Now().UTC()
	return &models.Workflow{
		ID:        id.WorkflowID(uuid.New()),
		CompanyID: company,
		AreaID:    area,
		Name:      "standard intake",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *WorkflowStoreSuite) newStage(workflowID id.WorkflowID, order int) *models.Stage {
	now := time.Now().UTC()
	return &models.Stage{
		ID:         id.StageID(uuid.New()),
		WorkflowID: workflowID,
		Name:       "review",
		Order:      order,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *WorkflowStoreSuite) TestWorkflowCreationAndLookups() {
	s.Run("creates and finds workflow by ID", func() {
		w := s.newWorkflow(id.CompanyID(uuid.New()), nil)
		s.Require().NoError(s.store.CreateWorkflow(s.ctx, w))

		found, err := s.store.FindWorkflow(s.ctx, w.ID)
		s.Require().NoError(err)
		s.Equal(w.Name, found.Name)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindWorkflow(s.ctx, id.WorkflowID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate ID", func() {
		w := s.newWorkflow(id.CompanyID(uuid.New()), nil)
		s.Require().NoError(s.store.CreateWorkflow(s.ctx, w))
		s.Require().ErrorIs(s.store.CreateWorkflow(s.ctx, w), sentinel.ErrConflict)
	})

	s.Run("reads hand out copies", func() {
		w := s.newWorkflow(id.CompanyID(uuid.New()), nil)
		s.Require().NoError(s.store.CreateWorkflow(s.ctx, w))

		found, err := s.store.FindWorkflow(s.ctx, w.ID)
		s.Require().NoError(err)
		found.Name = "mutated"

		again, err := s.store.FindWorkflow(s.ctx, w.ID)
		s.Require().NoError(err)
		s.Equal("standard intake", again.Name)
	})
}

func (s *WorkflowStoreSuite) TestListWorkflows() {
	company := id.CompanyID(uuid.New())
	area := id.AreaID(uuid.New())

	general := s.newWorkflow(company, nil)
	scoped := s.newWorkflow(company, &area)
	scoped.CreatedAt = general.CreatedAt.Add(time.Second)
	inactive := s.newWorkflow(company, nil)
	inactive.Active = false
	inactive.CreatedAt = general.CreatedAt.Add(2 * time.Second)
	other := s.newWorkflow(id.CompanyID(uuid.New()), nil)

	for _, w := range []*models.Workflow{general, scoped, inactive, other} {
		s.Require().NoError(s.store.CreateWorkflow(s.ctx, w))
	}

	s.Run("filters by company", func() {
		ws, err := s.store.ListWorkflows(s.ctx, company, nil, false)
		s.Require().NoError(err)
		s.Len(ws, 3)
	})

	s.Run("filters by area", func() {
		ws, err := s.store.ListWorkflows(s.ctx, company, &area, false)
		s.Require().NoError(err)
		s.Require().Len(ws, 1)
		s.Equal(scoped.ID, ws[0].ID)
	})

	s.Run("filters active only", func() {
		ws, err := s.store.ListWorkflows(s.ctx, company, nil, true)
		s.Require().NoError(err)
		s.Len(ws, 2)
	})

	s.Run("excludes soft-deleted", func() {
		deletedAt := time.Now().UTC()
		general2, err := s.store.FindWorkflow(s.ctx, general.ID)
		s.Require().NoError(err)
		s.Require().NoError(general2.SoftDelete(deletedAt))
		s.Require().NoError(s.store.UpdateWorkflow(s.ctx, general2))

		ws, err := s.store.ListWorkflows(s.ctx, company, nil, false)
		s.Require().NoError(err)
		s.Len(ws, 2)
	})
}

func (s *WorkflowStoreSuite) TestDefaultScoping() {
	company := id.CompanyID(uuid.New())
	area := id.AreaID(uuid.New())

	general := s.newWorkflow(company, nil)
	general.IsDefault = true
	scoped := s.newWorkflow(company, &area)
	scoped.IsDefault = true
	s.Require().NoError(s.store.CreateWorkflow(s.ctx, general))
	s.Require().NoError(s.store.CreateWorkflow(s.ctx, scoped))

	s.Run("finds default in exact scope only", func() {
		found, err := s.store.FindDefault(s.ctx, models.Scope{CompanyID: company, AreaID: &area})
		s.Require().NoError(err)
		s.Equal(scoped.ID, found.ID)

		found, err = s.store.FindDefault(s.ctx, models.Scope{CompanyID: company})
		s.Require().NoError(err)
		s.Equal(general.ID, found.ID)
	})

	s.Run("no fallback to general for unknown area", func() {
		otherArea := id.AreaID(uuid.New())
		_, err := s.store.FindDefault(s.ctx, models.Scope{CompanyID: company, AreaID: &otherArea})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("clearing one scope leaves the other intact", func() {
		s.Require().NoError(s.store.ClearDefault(s.ctx, models.Scope{CompanyID: company, AreaID: &area}, id.WorkflowID(uuid.New())))

		_, err := s.store.FindDefault(s.ctx, models.Scope{CompanyID: company, AreaID: &area})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		found, err := s.store.FindDefault(s.ctx, models.Scope{CompanyID: company})
		s.Require().NoError(err)
		s.Equal(general.ID, found.ID)
	})

	s.Run("clear keeps the excepted workflow", func() {
		s.Require().NoError(s.store.ClearDefault(s.ctx, models.Scope{CompanyID: company}, general.ID))
		found, err := s.store.FindDefault(s.ctx, models.Scope{CompanyID: company})
		s.Require().NoError(err)
		s.Equal(general.ID, found.ID)
	})

	s.Run("inactive default is not selectable", func() {
		w, err := s.store.FindWorkflow(s.ctx, general.ID)
		s.Require().NoError(err)
		w.Active = false
		s.Require().NoError(s.store.UpdateWorkflow(s.ctx, w))

		_, err = s.store.FindDefault(s.ctx, models.Scope{CompanyID: company})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *WorkflowStoreSuite) TestStageOrdering() {
	workflowID := id.WorkflowID(uuid.New())

	third := s.newStage(workflowID, 30)
	first := s.newStage(workflowID, 10)
	second := s.newStage(workflowID, 20)
	for _, st := range []*models.Stage{third, first, second} {
		s.Require().NoError(s.store.CreateStage(s.ctx, st))
	}

	stages, err := s.store.ListStages(s.ctx, workflowID, false)
	s.Require().NoError(err)
	s.Require().Len(stages, 3)
	s.Equal([]id.StageID{first.ID, second.ID, third.ID},
		[]id.StageID{stages[0].ID, stages[1].ID, stages[2].ID})
}

func (s *WorkflowStoreSuite) TestStageFilters() {
	workflowID := id.WorkflowID(uuid.New())
	active := s.newStage(workflowID, 10)
	inactive := s.newStage(workflowID, 20)
	inactive.Active = false
	deleted := s.newStage(workflowID, 30)
	s.Require().NoError(s.store.CreateStage(s.ctx, active))
	s.Require().NoError(s.store.CreateStage(s.ctx, inactive))
	s.Require().NoError(s.store.CreateStage(s.ctx, deleted))

	now := time.Now().UTC()
	s.Require().NoError(deleted.SoftDelete(now))
	s.Require().NoError(s.store.UpdateStage(s.ctx, deleted))

	all, err := s.store.ListStages(s.ctx, workflowID, false)
	s.Require().NoError(err)
	s.Len(all, 2)

	activeOnly, err := s.store.ListStages(s.ctx, workflowID, true)
	s.Require().NoError(err)
	s.Require().Len(activeOnly, 1)
	s.Equal(active.ID, activeOnly[0].ID)
}
