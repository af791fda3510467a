package postgres

import (
	"context"
	"fmt"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// RiskStateStore implements storage.RiskStateStore using PostgreSQL.
// The table holds a single row with id = 1.
type RiskStateStore struct {
	pool *Pool
}

// NewRiskStateStore creates a new RiskStateStore.
func NewRiskStateStore(pool *Pool) *RiskStateStore {
	return &RiskStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RiskStateStore = (*RiskStateStore)(nil)

// Load returns the persisted state. Returns ErrNotFound if no row exists.
func (s *RiskStateStore) Load(ctx context.Context) (*domain.RiskState, error) {
	query := `
		SELECT consecutive_wins, consecutive_losses, daily_pnl, daily_trade_count,
			breaker_tripped, breaker_tripped_at, base_risk_fraction, reference_equity,
			last_reset_date, updated_at
		FROM risk_state
		WHERE id = 1
	`

	var st domain.RiskState
	err := s.pool.QueryRow(ctx, query).Scan(
		&st.ConsecutiveWins, &st.ConsecutiveLosses, &st.DailyPnL, &st.DailyTradeCount,
		&st.BreakerTripped, &st.BreakerTrippedAt, &st.BaseRiskFraction, &st.ReferenceEquity,
		&st.LastResetDate, &st.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load risk state: %w", err)
	}
	return &st, nil
}

// Save replaces the row in a single statement.
func (s *RiskStateStore) Save(ctx context.Context, st *domain.RiskState) error {
	if st == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO risk_state (
			id, consecutive_wins, consecutive_losses, daily_pnl, daily_trade_count,
			breaker_tripped, breaker_tripped_at, base_risk_fraction, reference_equity,
			last_reset_date, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			consecutive_wins = EXCLUDED.consecutive_wins,
			consecutive_losses = EXCLUDED.consecutive_losses,
			daily_pnl = EXCLUDED.daily_pnl,
			daily_trade_count = EXCLUDED.daily_trade_count,
			breaker_tripped = EXCLUDED.breaker_tripped,
			breaker_tripped_at = EXCLUDED.breaker_tripped_at,
			base_risk_fraction = EXCLUDED.base_risk_fraction,
			reference_equity = EXCLUDED.reference_equity,
			last_reset_date = EXCLUDED.last_reset_date,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		st.ConsecutiveWins, st.ConsecutiveLosses, st.DailyPnL, st.DailyTradeCount,
		st.BreakerTripped, st.BreakerTrippedAt, st.BaseRiskFraction, st.ReferenceEquity,
		st.LastResetDate, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save risk state: %w", err)
	}
	return nil
}
