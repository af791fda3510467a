package postgres

import (
	"context"
	"fmt"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// IdempotencyStore implements storage.IdempotencyStore using PostgreSQL.
type IdempotencyStore struct {
	pool *Pool
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(pool *Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IdempotencyStore = (*IdempotencyStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the fingerprint exists.
func (s *IdempotencyStore) Insert(ctx context.Context, r *domain.IdempotencyRecord) error {
	if r == nil || r.Fingerprint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO idempotency_ledger (
			fingerprint, instrument, side, quantity, bucket, broker_order_id, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Fingerprint, r.Instrument, string(r.Side), r.Quantity, r.Bucket, r.BrokerOrderID, r.SubmittedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// GetByFingerprint retrieves a record. Returns ErrNotFound if not exists.
func (s *IdempotencyStore) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.IdempotencyRecord, error) {
	query := `
		SELECT fingerprint, instrument, side, quantity, bucket, broker_order_id, submitted_at
		FROM idempotency_ledger
		WHERE fingerprint = $1
	`

	var r domain.IdempotencyRecord
	var side string
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&r.Fingerprint, &r.Instrument, &side, &r.Quantity, &r.Bucket, &r.BrokerOrderID, &r.SubmittedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	r.Side = domain.Side(side)
	return &r, nil
}
