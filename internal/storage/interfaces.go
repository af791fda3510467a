package storage

import (
	"context"

	"tradegate/internal/domain"
)

// RiskStateStore persists the single risk state record.
type RiskStateStore interface {
	// Load returns the persisted state. Returns ErrNotFound if nothing was saved yet,
	// ErrCorruptState if the stored record cannot be decoded.
	Load(ctx context.Context) (*domain.RiskState, error)

	// Save atomically replaces the persisted state.
	Save(ctx context.Context, s *domain.RiskState) error
}

// PositionStore provides access to the open position set.
type PositionStore interface {
	// Upsert inserts or replaces the position for its instrument.
	Upsert(ctx context.Context, p *domain.Position) error

	// Delete removes the position for an instrument. Returns ErrNotFound if absent.
	Delete(ctx context.Context, instrument string) error

	// GetByInstrument retrieves the open position for an instrument. Returns ErrNotFound if absent.
	GetByInstrument(ctx context.Context, instrument string) (*domain.Position, error)

	// List retrieves all open positions, ordered by instrument ASC.
	List(ctx context.Context) ([]*domain.Position, error)
}

// IdempotencyStore provides access to the append-only order ledger.
type IdempotencyStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if the fingerprint exists.
	Insert(ctx context.Context, r *domain.IdempotencyRecord) error

	// GetByFingerprint retrieves a record. Returns ErrNotFound if not exists.
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.IdempotencyRecord, error)
}

// DecisionJournal provides access to the append-only decision log.
type DecisionJournal interface {
	// Insert appends a decision record.
	Insert(ctx context.Context, r *domain.DecisionRecord) error

	// GetByTimeRange retrieves records with RecordedAt within [start, end] (inclusive),
	// ordered by RecordedAt ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.DecisionRecord, error)
}
