package feed

import (
	"context"
	"fmt"
	"sync"

	"tradegate/internal/domain"
)

// Memory is an in-process IndicatorSource for tests and replays.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[key]*domain.IndicatorSnapshot
	failures  map[key]error
}

// NewMemory creates an empty source.
func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[key]*domain.IndicatorSnapshot),
		failures:  make(map[key]error),
	}
}

// Compile-time interface check.
var _ IndicatorSource = (*Memory)(nil)

// Set stores a copy of s under its instrument and timeframe.
func (m *Memory) Set(s *domain.IndicatorSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	k := keyOf(s.Instrument, s.Timeframe)
	m.snapshots[k] = &cp
	delete(m.failures, k)
}

// Fail makes Fetch for the key return err until the next Set.
func (m *Memory) Fail(instrument string, tf domain.Timeframe, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[keyOf(instrument, tf)] = err
}

// Fetch returns a copy of the stored snapshot.
func (m *Memory) Fetch(ctx context.Context, instrument string, tf domain.Timeframe) (*domain.IndicatorSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	k := keyOf(instrument, tf)
	if err, ok := m.failures[k]; ok {
		return nil, err
	}
	s, ok := m.snapshots[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNoData, instrument, tf)
	}
	cp := *s
	return &cp, nil
}

// Mark returns the close of the newest snapshot of any timeframe.
func (m *Memory) Mark(instrument string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return markOf(m.snapshots, instrument)
}

func markOf(snapshots map[key]*domain.IndicatorSnapshot, instrument string) (float64, bool) {
	var newest *domain.IndicatorSnapshot
	for _, tf := range []domain.Timeframe{domain.Timeframe5m, domain.Timeframe15m, domain.Timeframe1h, domain.Timeframe1d} {
		s, ok := snapshots[keyOf(instrument, tf)]
		if !ok {
			continue
		}
		if newest == nil || s.Timestamp > newest.Timestamp {
			newest = s
		}
	}
	if newest == nil || newest.Close <= 0 {
		return 0, false
	}
	return newest.Close, true
}
