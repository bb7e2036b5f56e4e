package store

import (
	"context"
	"sort"
	"sync"

	"claimdesk/internal/narrative/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Memory keeps description versions in process.
type Memory struct {
	mu       sync.RWMutex
	versions map[id.VersionID]models.DescriptionVersion
}

func NewMemory() *Memory {
	return &Memory{versions: make(map[id.VersionID]models.DescriptionVersion)}
}

func (m *Memory) Create(_ context.Context, v *models.DescriptionVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.versions[v.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range m.versions {
		if existing.ClaimID == v.ClaimID && existing.Version == v.Version {
			return sentinel.ErrConflict
		}
	}
	m.versions[v.ID] = *v
	return nil
}

func (m *Memory) Update(_ context.Context, v *models.DescriptionVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.versions[v.ID]; !exists {
		return sentinel.ErrNotFound
	}
	m.versions[v.ID] = *v
	return nil
}

func (m *Memory) Find(_ context.Context, versionID id.VersionID) (*models.DescriptionVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[versionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneVersion(v), nil
}

func (m *Memory) FindCurrent(_ context.Context, claimID id.ClaimID) (*models.DescriptionVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.versions {
		if v.ClaimID == claimID && v.IsCurrent && !v.IsDeleted() {
			return cloneVersion(v), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) ListByClaim(_ context.Context, claimID id.ClaimID) ([]*models.DescriptionVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.DescriptionVersion, 0)
	for _, v := range m.versions {
		if v.ClaimID == claimID && !v.IsDeleted() {
			out = append(out, cloneVersion(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Version > out[j].Version
	})
	return out, nil
}

func (m *Memory) MaxVersion(_ context.Context, claimID id.ClaimID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, v := range m.versions {
		if v.ClaimID == claimID && v.Version > max {
			max = v.Version
		}
	}
	return max, nil
}

func (m *Memory) ClearCurrent(_ context.Context, claimID id.ClaimID, keep id.VersionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for vid, v := range m.versions {
		if vid == keep || v.ClaimID != claimID || !v.IsCurrent {
			continue
		}
		v.IsCurrent = false
		m.versions[vid] = v
	}
	return nil
}

func cloneVersion(v models.DescriptionVersion) *models.DescriptionVersion {
	if v.CreatedBy != nil {
		by := *v.CreatedBy
		v.CreatedBy = &by
	}
	if v.DeletedAt != nil {
		t := *v.DeletedAt
		v.DeletedAt = &t
	}
	return &v
}
