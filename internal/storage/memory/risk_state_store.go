package memory

import (
	"context"
	"sync"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// RiskStateStore is an in-memory implementation of storage.RiskStateStore.
type RiskStateStore struct {
	mu    sync.RWMutex
	state *domain.RiskState
}

// NewRiskStateStore creates a new in-memory risk state store.
func NewRiskStateStore() *RiskStateStore {
	return &RiskStateStore{}
}

// Load returns the saved state. Returns ErrNotFound if nothing was saved.
func (s *RiskStateStore) Load(_ context.Context) (*domain.RiskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, storage.ErrNotFound
	}
	copy := *s.state
	return &copy, nil
}

// Save replaces the stored state.
func (s *RiskStateStore) Save(_ context.Context, st *domain.RiskState) error {
	if st == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *st
	s.state = &copy
	return nil
}

var _ storage.RiskStateStore = (*RiskStateStore)(nil)
