package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	instrument, position_id, sector, entry_price, quantity, initial_quantity,
	stop_price, initial_stop, target_price, volatility, strategy, entry_order_id,
	opened_at, trailing_active, peak_price, partial_closed, review_flag
`

// Upsert inserts or replaces the position for its instrument.
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.Instrument == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (instrument) DO UPDATE SET
			position_id = EXCLUDED.position_id,
			sector = EXCLUDED.sector,
			entry_price = EXCLUDED.entry_price,
			quantity = EXCLUDED.quantity,
			initial_quantity = EXCLUDED.initial_quantity,
			stop_price = EXCLUDED.stop_price,
			initial_stop = EXCLUDED.initial_stop,
			target_price = EXCLUDED.target_price,
			volatility = EXCLUDED.volatility,
			strategy = EXCLUDED.strategy,
			entry_order_id = EXCLUDED.entry_order_id,
			opened_at = EXCLUDED.opened_at,
			trailing_active = EXCLUDED.trailing_active,
			peak_price = EXCLUDED.peak_price,
			partial_closed = EXCLUDED.partial_closed,
			review_flag = EXCLUDED.review_flag
	`

	_, err := s.pool.Exec(ctx, query,
		p.Instrument, p.ID, p.Sector, p.EntryPrice, p.Quantity, p.InitialQuantity,
		p.StopPrice, p.InitialStop, p.TargetPrice, p.Volatility, p.Strategy, p.EntryOrderID,
		p.OpenedAt, p.Trailing.Active, p.Trailing.PeakPrice, p.PartialClosed, p.ReviewFlag,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// Delete removes the position for an instrument. Returns ErrNotFound if absent.
func (s *PositionStore) Delete(ctx context.Context, instrument string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE instrument = $1`, instrument)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByInstrument retrieves the position for an instrument. Returns ErrNotFound if absent.
func (s *PositionStore) GetByInstrument(ctx context.Context, instrument string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE instrument = $1`

	p, err := scanPosition(s.pool.QueryRow(ctx, query, instrument))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// List retrieves all positions, ordered by instrument ASC.
func (s *PositionStore) List(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions ORDER BY instrument ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return result, nil
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.Instrument, &p.ID, &p.Sector, &p.EntryPrice, &p.Quantity, &p.InitialQuantity,
		&p.StopPrice, &p.InitialStop, &p.TargetPrice, &p.Volatility, &p.Strategy, &p.EntryOrderID,
		&p.OpenedAt, &p.Trailing.Active, &p.Trailing.PeakPrice, &p.PartialClosed, &p.ReviewFlag,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
