package store

import (
	"context"
	"sort"
	"sync"

	"claimdesk/internal/workflow/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Memory keeps the catalog in process. Reads hand out copies so callers can
// mutate results without racing the store.
type Memory struct {
	mu        sync.RWMutex
	workflows map[id.WorkflowID]models.Workflow
	stages    map[id.StageID]models.Stage
}

func NewMemory() *Memory {
	return &Memory{
		workflows: make(map[id.WorkflowID]models.Workflow),
		stages:    make(map[id.StageID]models.Stage),
	}
}

func (m *Memory) CreateWorkflow(_ context.Context, w *models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workflows[w.ID]; exists {
		return sentinel.ErrConflict
	}
	m.workflows[w.ID] = *w
	return nil
}

func (m *Memory) UpdateWorkflow(_ context.Context, w *models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workflows[w.ID]; !exists {
		return sentinel.ErrNotFound
	}
	m.workflows[w.ID] = *w
	return nil
}

func (m *Memory) FindWorkflow(_ context.Context, workflowID id.WorkflowID) (*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workflows[workflowID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneWorkflow(w), nil
}

func (m *Memory) ListWorkflows(_ context.Context, companyID id.CompanyID, areaID *id.AreaID, activeOnly bool) ([]*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Workflow, 0)
	for _, w := range m.workflows {
		if w.CompanyID != companyID || w.IsDeleted() {
			continue
		}
		if areaID != nil && (w.AreaID == nil || *w.AreaID != *areaID) {
			continue
		}
		if activeOnly && !w.Active {
			continue
		}
		out = append(out, cloneWorkflow(w))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) FindDefault(_ context.Context, scope models.Scope) (*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.workflows {
		if w.IsDefault && w.Selectable() && scope.Matches(&w) {
			return cloneWorkflow(w), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) ClearDefault(_ context.Context, scope models.Scope, keep id.WorkflowID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for wid, w := range m.workflows {
		if wid == keep || !w.IsDefault || w.IsDeleted() {
			continue
		}
		if scope.Matches(&w) {
			w.IsDefault = false
			m.workflows[wid] = w
		}
	}
	return nil
}

func (m *Memory) CreateStage(_ context.Context, st *models.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.stages[st.ID]; exists {
		return sentinel.ErrConflict
	}
	m.stages[st.ID] = *st
	return nil
}

func (m *Memory) UpdateStage(_ context.Context, st *models.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.stages[st.ID]; !exists {
		return sentinel.ErrNotFound
	}
	m.stages[st.ID] = *st
	return nil
}

func (m *Memory) FindStage(_ context.Context, stageID id.StageID) (*models.Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stages[stageID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneStage(st), nil
}

func (m *Memory) ListStages(_ context.Context, workflowID id.WorkflowID, activeOnly bool) ([]*models.Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Stage, 0)
	for _, st := range m.stages {
		if st.WorkflowID != workflowID || st.IsDeleted() {
			continue
		}
		if activeOnly && !st.Active {
			continue
		}
		out = append(out, cloneStage(st))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func cloneWorkflow(w models.Workflow) *models.Workflow {
	if w.AreaID != nil {
		area := *w.AreaID
		w.AreaID = &area
	}
	if w.DeletedAt != nil {
		t := *w.DeletedAt
		w.DeletedAt = &t
	}
	return &w
}

func cloneStage(st models.Stage) *models.Stage {
	if st.RequiredDocTypeID != nil {
		dt := *st.RequiredDocTypeID
		st.RequiredDocTypeID = &dt
	}
	if st.DeletedAt != nil {
		t := *st.DeletedAt
		st.DeletedAt = &t
	}
	return &st
}
