package memory

import (
	"context"
	"sort"
	"sync"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// DecisionJournal is an in-memory implementation of storage.DecisionJournal.
type DecisionJournal struct {
	mu      sync.RWMutex
	records []*domain.DecisionRecord
}

// NewDecisionJournal creates a new in-memory decision journal.
func NewDecisionJournal() *DecisionJournal {
	return &DecisionJournal{}
}

// Insert appends a decision record.
func (j *DecisionJournal) Insert(_ context.Context, r *domain.DecisionRecord) error {
	if r == nil || r.Instrument == "" {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	copy := *r
	j.records = append(j.records, &copy)
	return nil
}

// GetByTimeRange retrieves records within [start, end] (inclusive), ordered by RecordedAt ASC.
func (j *DecisionJournal) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.DecisionRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.DecisionRecord
	for _, r := range j.records {
		if r.RecordedAt >= start && r.RecordedAt <= end {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.SliceStable(result, func(i, k int) bool {
		return result[i].RecordedAt < result[k].RecordedAt
	})

	return result, nil
}

var _ storage.DecisionJournal = (*DecisionJournal)(nil)
