package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"claimdesk/internal/claim/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Memory keeps claims in process.
type Memory struct {
	mu     sync.RWMutex
	claims map[id.ClaimID]models.Claim
	// numbers indexes company-scoped number uniqueness, keyed lowercase.
	numbers map[numberKey]id.ClaimID
}

type numberKey struct {
	company id.CompanyID
	number  string
}

func NewMemory() *Memory {
	return &Memory{
		claims:  make(map[id.ClaimID]models.Claim),
		numbers: make(map[numberKey]id.ClaimID),
	}
}

func (m *Memory) Create(_ context.Context, c *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.claims[c.ID]; exists {
		return sentinel.ErrConflict
	}
	key := numberKey{c.CompanyID, strings.ToLower(c.Number)}
	if existingID, exists := m.numbers[key]; exists {
		// A tombstoned claim releases its number.
		if existing, ok := m.claims[existingID]; ok && !existing.IsDeleted() {
			return sentinel.ErrConflict
		}
	}
	m.claims[c.ID] = *c
	m.numbers[key] = c.ID
	return nil
}

func (m *Memory) Update(_ context.Context, c *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.claims[c.ID]; !exists {
		return sentinel.ErrNotFound
	}
	m.claims[c.ID] = *c
	return nil
}

func (m *Memory) Find(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[claimID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneClaim(c), nil
}

func (m *Memory) FindByNumber(_ context.Context, companyID id.CompanyID, number string) (*models.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	claimID, ok := m.numbers[numberKey{companyID, strings.ToLower(number)}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := m.claims[claimID]
	if c.IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	return cloneClaim(c), nil
}

func (m *Memory) List(_ context.Context, companyID id.CompanyID) ([]*models.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Claim, 0)
	for _, c := range m.claims {
		if c.CompanyID == companyID && !c.IsDeleted() {
			out = append(out, cloneClaim(c))
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

// CodeExists checks codes across every claim, tombstoned ones included, so
// a freed claim never frees its code.
func (m *Memory) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.claims {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func cloneClaim(c models.Claim) *models.Claim {
	if c.AreaID != nil {
		area := *c.AreaID
		c.AreaID = &area
	}
	if c.ProvenanceID != nil {
		prov := *c.ProvenanceID
		c.ProvenanceID = &prov
	}
	if c.CreatedBy != nil {
		by := *c.CreatedBy
		c.CreatedBy = &by
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// MemoryCounters allocates sequences in process.
type MemoryCounters struct {
	mu     sync.Mutex
	values map[string]int
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{values: make(map[string]int)}
}

func (m *MemoryCounters) Next(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key]++
	return m.values[key], nil
}

// MemoryProvenances is a fixed in-process provenance catalog.
type MemoryProvenances struct {
	mu      sync.RWMutex
	entries map[id.ProvenanceID]models.Provenance
}

func NewMemoryProvenances(entries ...models.Provenance) *MemoryProvenances {
	m := &MemoryProvenances{entries: make(map[id.ProvenanceID]models.Provenance)}
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return m
}

func (m *MemoryProvenances) Add(p models.Provenance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[p.ID] = p
}

func (m *MemoryProvenances) Find(_ context.Context, provenanceID id.ProvenanceID) (*models.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.entries[provenanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}
