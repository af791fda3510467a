package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// DecisionJournal implements storage.DecisionJournal as a JSON-lines file.
type DecisionJournal struct {
	mu   sync.Mutex
	path string
}

// NewDecisionJournal creates a journal under dir.
func NewDecisionJournal(dir string) *DecisionJournal {
	return &DecisionJournal{path: filepath.Join(dir, JournalFile)}
}

// Insert appends one record and syncs the file.
func (j *DecisionJournal) Insert(_ context.Context, r *domain.DecisionRecord) error {
	if r == nil || r.Instrument == "" {
		return storage.ErrInvalidInput
	}

	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return f.Sync()
}

// GetByTimeRange scans the journal for records within [start, end].
// A torn trailing line from an interrupted append is skipped.
func (j *DecisionJournal) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.DecisionRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var result []*domain.DecisionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r domain.DecisionRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		if r.RecordedAt >= start && r.RecordedAt <= end {
			result = append(result, &r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	sort.SliceStable(result, func(a, b int) bool {
		return result[a].RecordedAt < result[b].RecordedAt
	})
	return result, nil
}

var _ storage.DecisionJournal = (*DecisionJournal)(nil)
