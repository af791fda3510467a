package file

import (
	"context"
	"path/filepath"
	"sync"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// RiskStateStore implements storage.RiskStateStore on a single JSON file.
type RiskStateStore struct {
	mu   sync.Mutex
	path string
}

// NewRiskStateStore creates a store under dir.
func NewRiskStateStore(dir string) *RiskStateStore {
	return &RiskStateStore{path: filepath.Join(dir, RiskStateFile)}
}

// Load reads the state file. Returns ErrNotFound if it does not exist.
func (s *RiskStateStore) Load(_ context.Context) (*domain.RiskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st domain.RiskState
	ok, err := readJSON(s.path, &st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &st, nil
}

// Save atomically replaces the state file.
func (s *RiskStateStore) Save(_ context.Context, st *domain.RiskState) error {
	if st == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeAtomic(s.path, st)
}

var _ storage.RiskStateStore = (*RiskStateStore)(nil)
