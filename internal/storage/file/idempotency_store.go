package file

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// IdempotencyStore implements storage.IdempotencyStore on a JSON file.
// Insert returns only after the new ledger has been renamed into place.
type IdempotencyStore struct {
	mu   sync.RWMutex
	path string
	data map[string]*domain.IdempotencyRecord // keyed by fingerprint
}

// NewIdempotencyStore opens the ledger file under dir.
// Returns storage.ErrCorruptState if the file exists but cannot be decoded.
func NewIdempotencyStore(dir string) (*IdempotencyStore, error) {
	s := &IdempotencyStore{
		path: filepath.Join(dir, IdempotencyFile),
		data: make(map[string]*domain.IdempotencyRecord),
	}

	var list []*domain.IdempotencyRecord
	if _, err := readJSON(s.path, &list); err != nil {
		return nil, err
	}
	for _, r := range list {
		if r == nil || r.Fingerprint == "" {
			return nil, storage.ErrCorruptState
		}
		s.data[r.Fingerprint] = r
	}
	return s, nil
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

	if err := writeAtomic(s.path, s.sorted()); err != nil {
		delete(s.data, r.Fingerprint)
		return err
	}
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

// sorted orders records by submission time so the file reads as a log.
func (s *IdempotencyStore) sorted() []*domain.IdempotencyRecord {
	result := make([]*domain.IdempotencyRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SubmittedAt != result[j].SubmittedAt {
			return result[i].SubmittedAt < result[j].SubmittedAt
		}
		return result[i].Fingerprint < result[j].Fingerprint
	})
	return result
}

var _ storage.IdempotencyStore = (*IdempotencyStore)(nil)
