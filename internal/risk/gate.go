package risk

import (
	"github.com/shopspring/decimal"

	"tradegate/internal/domain"
	"tradegate/internal/idhash"
)

// PositionView is the read side of the open position set.
type PositionView interface {
	Count() int
	CountSector(sector string) int
	Has(instrument string) bool
}

// Limits configures the gate.
type Limits struct {
	GlobalCap       int
	SectorCap       int
	DailyTradeCap   int // 0 disables the cap
	MinRiskFraction float64
	MaxRiskFraction float64
	MinOrderValue   float64

	// ProfitReinvestRate feeds part of the day's realized return back into
	// the risk fraction (see ProfitBoost). 0 disables it.
	ProfitReinvestRate float64
}

// DefaultLimits returns the stock gate limits.
func DefaultLimits() Limits {
	return Limits{
		GlobalCap:       7,
		SectorCap:       2,
		MinRiskFraction: 0.01,
		MaxRiskFraction: 0.30,
		MinOrderValue:   5,
	}
}

// GateInput is one candidate presented to the gate.
type GateInput struct {
	Blended domain.BlendedSignal
	Equity  float64
	Regime  float64 // regime multiplier, 1.0 when unknown
	Bucket  int64   // tick bucket for the fingerprint
}

// Gate admits or rejects candidates. It reads risk state and open positions
// and never mutates either.
type Gate struct {
	machine     *Machine
	positions   PositionView
	instruments *Instruments
	limits      Limits
}

// NewGate creates a gate.
func NewGate(machine *Machine, positions PositionView, instruments *Instruments, limits Limits) *Gate {
	return &Gate{machine: machine, positions: positions, instruments: instruments, limits: limits}
}

// Admit runs the checks in order and returns either a sized intent or the
// first failing reason. Rejection is a value, not an error.
func (g *Gate) Admit(in GateInput) (*domain.OrderIntent, domain.RejectReason) {
	sig := in.Blended.Signal
	st := g.machine.State()

	if st.BreakerTripped {
		return nil, domain.ReasonLockedOut
	}
	if sig.Action != domain.ActionBuy {
		return nil, domain.ReasonNotBuy
	}
	if g.positions.Count() >= g.limits.GlobalCap {
		return nil, domain.ReasonGlobalCap
	}
	if sector := g.instruments.SectorOf(sig.Instrument); sector != "" && g.positions.CountSector(sector) >= g.limits.SectorCap {
		return nil, domain.ReasonSectorCap
	}
	if g.positions.Has(sig.Instrument) {
		return nil, domain.ReasonAlreadyOpen
	}
	if g.limits.DailyTradeCap > 0 && st.DailyTradeCount >= g.limits.DailyTradeCap {
		return nil, domain.ReasonDailyTradeCap
	}

	regime := in.Regime
	if regime <= 0 {
		regime = 1.0
	}
	boost := ProfitBoost(st.DailyPnL, st.ReferenceEquity, g.limits.ProfitReinvestRate)
	eff := EffectiveRisk(st.BaseRiskFraction, g.machine.streakMultiplier(st), regime*boost,
		g.limits.MinRiskFraction, g.limits.MaxRiskFraction)

	qty, reason := PositionSize(in.Equity, eff, sig.EntryPrice, sig.StopPrice, g.instruments.LotSize(sig.Instrument))
	if reason != domain.ReasonNone {
		return nil, reason
	}
	notional := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(sig.EntryPrice))
	if notional.LessThan(decimal.NewFromFloat(g.limits.MinOrderValue)) {
		return nil, domain.ReasonBelowMinOrder
	}

	return &domain.OrderIntent{
		Instrument:  sig.Instrument,
		Side:        domain.SideBuy,
		Quantity:    qty,
		PriceHint:   sig.EntryPrice,
		StopPrice:   sig.StopPrice,
		Volatility:  sig.Volatility,
		Strategy:    sig.Strategy,
		Bucket:      in.Bucket,
		Fingerprint: idhash.ComputeOrderFingerprint(sig.Instrument, domain.SideBuy, qty, in.Bucket),
	}, domain.ReasonNone
}
