package store

import (
	"context"
	"sort"
	"sync"

	"claimdesk/internal/claimstage/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Memory keeps claim stage rows in process.
type Memory struct {
	mu   sync.RWMutex
	rows map[id.ClaimStageID]models.ClaimStage
	// pairs indexes (claim, stage) uniqueness.
	pairs map[pairKey]id.ClaimStageID
}

type pairKey struct {
	claim id.ClaimID
	stage id.StageID
}

func NewMemory() *Memory {
	return &Memory{
		rows:  make(map[id.ClaimStageID]models.ClaimStage),
		pairs: make(map[pairKey]id.ClaimStageID),
	}
}

func (m *Memory) CreateBatch(_ context.Context, rows []*models.ClaimStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		if _, exists := m.rows[row.ID]; exists {
			return sentinel.ErrConflict
		}
		if _, exists := m.pairs[pairKey{row.ClaimID, row.StageID}]; exists {
			return sentinel.ErrConflict
		}
	}
	for _, row := range rows {
		m.rows[row.ID] = *row
		m.pairs[pairKey{row.ClaimID, row.StageID}] = row.ID
	}
	return nil
}

func (m *Memory) Update(_ context.Context, row *models.ClaimStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[row.ID]; !exists {
		return sentinel.ErrNotFound
	}
	m.rows[row.ID] = *row
	return nil
}

func (m *Memory) Find(_ context.Context, claimStageID id.ClaimStageID) (*models.ClaimStage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[claimStageID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRow(row), nil
}

func (m *Memory) FindByClaimAndStage(_ context.Context, claimID id.ClaimID, stageID id.StageID) (*models.ClaimStage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rowID, ok := m.pairs[pairKey{claimID, stageID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	row := m.rows[rowID]
	return cloneRow(row), nil
}

func (m *Memory) ListByClaim(_ context.Context, claimID id.ClaimID) ([]*models.ClaimStage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.ClaimStage, 0)
	for _, row := range m.rows {
		if row.ClaimID == claimID {
			out = append(out, cloneRow(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func cloneRow(row models.ClaimStage) *models.ClaimStage {
	if row.EvidenceDocID != nil {
		doc := *row.EvidenceDocID
		row.EvidenceDocID = &doc
	}
	if row.DueAt != nil {
		due := *row.DueAt
		row.DueAt = &due
	}
	if row.CompletedBy != nil {
		by := *row.CompletedBy
		row.CompletedBy = &by
	}
	if row.CompletedAt != nil {
		at := *row.CompletedAt
		row.CompletedAt = &at
	}
	return &row
}
