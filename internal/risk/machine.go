// Package risk owns the process-wide risk state: win/loss streaks, daily P&L,
// the daily circuit breaker, and the gate that turns blended signals into
// sized order intents.
package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// BreakerPolicy decides whether a tripped breaker survives day rollover.
type BreakerPolicy string

const (
	// BreakerManual keeps the breaker tripped until an operator resets it.
	BreakerManual BreakerPolicy = "manual"
	// BreakerRollover clears the breaker at the start of the next trading day.
	BreakerRollover BreakerPolicy = "rollover"
)

// Streak multipliers.
const (
	DefensiveMultiplier = 0.75 // exactly two consecutive losses
	LosingMultiplier    = 0.6  // three or more consecutive losses
	winStreakLength     = 3
	defensiveLosses     = 2
	losingLosses        = 3
)

// Params configures the risk machine.
type Params struct {
	BaseRiskFraction    float64
	MaxDailyLossPct     float64 // breaker trips at DailyPnL <= -MaxDailyLossPct * ReferenceEquity
	WinMultiplier       float64
	MaxStreakMultiplier float64
	BreakerPolicy       BreakerPolicy
	Location            *time.Location // trading day boundary
}

// DefaultParams returns the stock risk parameters.
func DefaultParams() Params {
	return Params{
		BaseRiskFraction:    0.10,
		MaxDailyLossPct:     0.05,
		WinMultiplier:       1.3,
		MaxStreakMultiplier: 1.3,
		BreakerPolicy:       BreakerManual,
		Location:            time.UTC,
	}
}

// Machine is the single owner of RiskState. Every mutation is persisted
// before it becomes visible; a failed save leaves the in-memory state unchanged.
type Machine struct {
	mu     sync.Mutex
	store  storage.RiskStateStore
	params Params
	state  domain.RiskState
	log    zerolog.Logger
}

// NewMachine creates a machine. Call Load before use.
func NewMachine(store storage.RiskStateStore, params Params, log zerolog.Logger) *Machine {
	if params.Location == nil {
		params.Location = time.UTC
	}
	if params.BreakerPolicy == "" {
		params.BreakerPolicy = BreakerManual
	}
	return &Machine{
		store:  store,
		params: params,
		state:  domain.RiskState{BaseRiskFraction: params.BaseRiskFraction},
		log:    log.With().Str("component", "risk").Logger(),
	}
}

// Load reconstructs state from the store. A missing record yields a fresh
// state seeded with the configured base risk. Corruption is returned as is
// and must stop the engine.
func (m *Machine) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		m.state = domain.RiskState{BaseRiskFraction: m.params.BaseRiskFraction}
		m.log.Info().Float64("base_risk", m.params.BaseRiskFraction).Msg("no persisted risk state, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load risk state: %w", err)
	}
	if st.BaseRiskFraction <= 0 {
		st.BaseRiskFraction = m.params.BaseRiskFraction
	}
	m.state = *st
	m.log.Info().
		Int("wins", st.ConsecutiveWins).
		Int("losses", st.ConsecutiveLosses).
		Float64("daily_pnl", st.DailyPnL).
		Bool("breaker", st.BreakerTripped).
		Str("last_reset", st.LastResetDate).
		Msg("risk state loaded")
	return nil
}

// State returns a copy of the current state.
func (m *Machine) State() domain.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Params returns the machine parameters.
func (m *Machine) Params() Params {
	return m.params
}

// Rollover starts a new trading day when the local date of now differs from
// LastResetDate. Counters and daily P&L reset and ReferenceEquity becomes
// equity. The breaker is kept unless the policy is BreakerRollover.
// Reports whether a rollover happened.
func (m *Machine) Rollover(ctx context.Context, now time.Time, equity float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := now.In(m.params.Location).Format(time.DateOnly)
	if m.state.LastResetDate == today {
		return false, nil
	}

	next := m.state
	next.ConsecutiveWins = 0
	next.ConsecutiveLosses = 0
	next.DailyPnL = 0
	next.DailyTradeCount = 0
	next.ReferenceEquity = equity
	next.LastResetDate = today
	if m.params.BreakerPolicy == BreakerRollover {
		next.BreakerTripped = false
		next.BreakerTrippedAt = 0
	}

	if err := m.commit(ctx, next, now); err != nil {
		return false, err
	}
	m.log.Info().
		Str("date", today).
		Float64("reference_equity", equity).
		Bool("breaker", next.BreakerTripped).
		Msg("trading day rollover")
	return true, nil
}

// OnClose folds a realized close into the streak counters and daily P&L and
// trips the breaker once the daily loss limit is reached.
func (m *Machine) OnClose(ctx context.Context, ev domain.CloseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state
	next.DailyPnL += ev.RealizedPnL
	if ev.RealizedPnL > 0 {
		next.ConsecutiveWins++
		next.ConsecutiveLosses = 0
	} else {
		next.ConsecutiveLosses++
		next.ConsecutiveWins = 0
	}

	now := time.UnixMilli(ev.ClosedAt)
	tripped := false
	if !next.BreakerTripped && next.ReferenceEquity > 0 &&
		next.DailyPnL <= -m.params.MaxDailyLossPct*next.ReferenceEquity {
		next.BreakerTripped = true
		next.BreakerTrippedAt = ev.ClosedAt
		tripped = true
	}

	if err := m.commit(ctx, next, now); err != nil {
		return err
	}
	if tripped {
		m.log.Warn().
			Float64("daily_pnl", next.DailyPnL).
			Float64("reference_equity", next.ReferenceEquity).
			Msg("daily loss limit reached, circuit breaker tripped")
	}
	return nil
}

// RecordTrade counts a submitted entry toward the daily trade cap.
func (m *Machine) RecordTrade(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state
	next.DailyTradeCount++
	return m.commit(ctx, next, now)
}

// ResetBreaker clears a tripped breaker. Operator action only.
func (m *Machine) ResetBreaker(ctx context.Context, operator string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.BreakerTripped {
		return nil
	}
	next := m.state
	next.BreakerTripped = false
	next.BreakerTrippedAt = 0
	if err := m.commit(ctx, next, now); err != nil {
		return err
	}
	m.log.Warn().Str("operator", operator).Msg("circuit breaker reset")
	return nil
}

// Mode derives the named state from the counters.
func (m *Machine) Mode() domain.RiskMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ModeOf(m.state)
}

// StreakMultiplier returns the sizing multiplier for the current streak.
func (m *Machine) StreakMultiplier() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streakMultiplier(m.state)
}

func (m *Machine) streakMultiplier(st domain.RiskState) float64 {
	switch {
	case st.ConsecutiveLosses >= losingLosses:
		return LosingMultiplier
	case st.ConsecutiveLosses == defensiveLosses:
		return DefensiveMultiplier
	case st.ConsecutiveWins >= winStreakLength:
		return min(m.params.WinMultiplier, m.params.MaxStreakMultiplier)
	default:
		return 1.0
	}
}

// ModeOf derives the risk mode from a state.
func ModeOf(st domain.RiskState) domain.RiskMode {
	switch {
	case st.BreakerTripped:
		return domain.RiskModeLockedOut
	case st.ConsecutiveLosses >= defensiveLosses:
		return domain.RiskModeDefensive
	default:
		return domain.RiskModeNormal
	}
}

// commit persists next and swaps it in. Caller holds mu.
func (m *Machine) commit(ctx context.Context, next domain.RiskState, now time.Time) error {
	next.UpdatedAt = now.UnixMilli()
	if err := m.store.Save(ctx, &next); err != nil {
		return fmt.Errorf("save risk state: %w", err)
	}
	m.state = next
	return nil
}
