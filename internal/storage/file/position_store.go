package file

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// PositionStore implements storage.PositionStore on a JSON file holding the
// whole open set. The set is cached in memory and rewritten on every change.
type PositionStore struct {
	mu   sync.RWMutex
	path string
	data map[string]*domain.Position // keyed by instrument
}

// NewPositionStore opens the position file under dir.
// Returns storage.ErrCorruptState if the file exists but cannot be decoded.
func NewPositionStore(dir string) (*PositionStore, error) {
	s := &PositionStore{
		path: filepath.Join(dir, PositionsFile),
		data: make(map[string]*domain.Position),
	}

	var list []*domain.Position
	if _, err := readJSON(s.path, &list); err != nil {
		return nil, err
	}
	for _, p := range list {
		if p == nil || p.Instrument == "" {
			return nil, storage.ErrCorruptState
		}
		s.data[p.Instrument] = p
	}
	return s, nil
}

// Upsert inserts or replaces the position for its instrument.
func (s *PositionStore) Upsert(_ context.Context, p *domain.Position) error {
	if p == nil || p.Instrument == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[p.Instrument]
	copy := *p
	s.data[p.Instrument] = &copy

	if err := s.flush(); err != nil {
		if had {
			s.data[p.Instrument] = prev
		} else {
			delete(s.data, p.Instrument)
		}
		return err
	}
	return nil
}

// Delete removes the position for an instrument. Returns ErrNotFound if absent.
func (s *PositionStore) Delete(_ context.Context, instrument string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.data[instrument]
	if !exists {
		return storage.ErrNotFound
	}
	delete(s.data, instrument)

	if err := s.flush(); err != nil {
		s.data[instrument] = prev
		return err
	}
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

	return s.sorted(), nil
}

func (s *PositionStore) sorted() []*domain.Position {
	result := make([]*domain.Position, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Instrument < result[j].Instrument
	})
	return result
}

// flush must be called with mu held.
func (s *PositionStore) flush() error {
	return writeAtomic(s.path, s.sorted())
}

var _ storage.PositionStore = (*PositionStore)(nil)
