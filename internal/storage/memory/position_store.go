package memory

import (
	"context"
	"sort"
	"sync"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by instrument
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Upsert inserts or replaces the position for its instrument.
func (s *PositionStore) Upsert(_ context.Context, p *domain.Position) error {
	if p == nil || p.Instrument == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.data[p.Instrument] = &copy
	return nil
}

// Delete removes the position for an instrument. Returns ErrNotFound if absent.
func (s *PositionStore) Delete(_ context.Context, instrument string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[instrument]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, instrument)
	return nil
}

// GetByInstrument retrieves the position for an instrument. Returns ErrNotFound if absent.
func (s *PositionStore) GetByInstrument(_ context.Context, instrument string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[instrument]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

// List retrieves all positions, ordered by instrument ASC.
func (s *PositionStore) List(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Instrument < result[j].Instrument
	})

	return result, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
