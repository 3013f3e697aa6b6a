package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/apihealth/internal/domain"
	"github.com/hamed0406/apihealth/internal/repo"
)

var _ repo.EndpointSource = (*Store)(nil)
var _ repo.StateStore = (*Store)(nil)

// Store keeps endpoints and records in process memory. Used by tests and STATE_BACKEND=memory.
type Store struct {
	mu        sync.RWMutex
	endpoints []domain.EndpointSpec
	records   map[string]domain.HealthRecord
}

func New(endpoints ...domain.EndpointSpec) *Store {
	return &Store{
		endpoints: endpoints,
		records:   make(map[string]domain.HealthRecord),
	}
}

// SetEndpoints replaces the snapshot returned by ListEndpoints.
func (m *Store) SetEndpoints(endpoints ...domain.EndpointSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints = endpoints
}

func (m *Store) ListEndpoints(ctx context.Context) ([]domain.EndpointSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.EndpointSpec, len(m.endpoints))
	copy(out, m.endpoints)
	return out, nil
}

func (m *Store) Get(ctx context.Context, endpointID string) (*domain.HealthRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[endpointID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Store) Put(ctx context.Context, rec *domain.HealthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.EndpointID] = *rec
	return nil
}

// Len reports how many records are stored.
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
