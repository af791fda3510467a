package memory

import (
	"context"
	"sync"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// IdempotencyStore is an in-memory implementation of storage.IdempotencyStore.
type IdempotencyStore struct {
	mu   sync.RWMutex
	data map[string]*domain.IdempotencyRecord // keyed by fingerprint
}

// NewIdempotencyStore creates a new in-memory idempotency store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		data: make(map[string]*domain.IdempotencyRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if the fingerprint exists.
func (s *IdempotencyStore) Insert(_ context.Context, r *domain.IdempotencyRecord) error {
	if r == nil || r.Fingerprint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Fingerprint]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.Fingerprint] = &copy
	return nil
}

// GetByFingerprint retrieves a record. Returns ErrNotFound if not exists.
func (s *IdempotencyStore) GetByFingerprint(_ context.Context, fingerprint string) (*domain.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[fingerprint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// Len returns the number of records.
func (s *IdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.IdempotencyStore = (*IdempotencyStore)(nil)
