package risk

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain"
	"tradegate/internal/idhash"
	"tradegate/internal/storage/memory"
)

type fakePositions struct {
	open map[string]string // instrument -> sector
}

func (f *fakePositions) Count() int { return len(f.open) }

func (f *fakePositions) CountSector(sector string) int {
	n := 0
	for _, s := range f.open {
		if s == sector {
			n++
		}
	}
	return n
}

func (f *fakePositions) Has(instrument string) bool {
	_, ok := f.open[instrument]
	return ok
}

func buyCandidate(instrument string, entry, stop float64) domain.BlendedSignal {
	return domain.BlendedSignal{
		Signal: domain.Signal{
			Instrument:     instrument,
			Action:         domain.ActionBuy,
			BaseConfidence: 0.8,
			EntryPrice:     entry,
			StopPrice:      stop,
			Strategy:       "golden_cross",
		},
		RawConfidence:   0.8,
		FinalConfidence: 0.8,
	}
}

func newTestGate(t *testing.T, positions *fakePositions, limits Limits) (*Gate, *Machine) {
	t.Helper()
	m, _ := newTestMachine(t, DefaultParams())
	return NewGate(m, positions, NewInstruments(DefaultSectors, DefaultLotSize, nil), limits), m
}

func TestGate_AdmitSizesByStopDistance(t *testing.T) {
	g, _ := newTestGate(t, &fakePositions{}, DefaultLimits())

	intent, reason := g.Admit(GateInput{
		Blended: buyCandidate("AAPL", 100, 96),
		Equity:  5000,
		Regime:  1.0,
		Bucket:  1709562600,
	})
	require.Equal(t, domain.ReasonNone, reason)
	require.NotNil(t, intent)
	assert.Equal(t, 125.0, intent.Quantity)
	assert.Equal(t, domain.SideBuy, intent.Side)
	assert.Equal(t, 96.0, intent.StopPrice)
	assert.Equal(t, idhash.ComputeOrderFingerprint("AAPL", domain.SideBuy, 125, 1709562600), intent.Fingerprint)
}

func TestGate_RejectionOrder(t *testing.T) {
	full := &fakePositions{open: map[string]string{
		"A": "", "B": "", "C": "", "D": "", "E": "", "F": "", "G": "",
	}}
	techFull := &fakePositions{open: map[string]string{"MSFT": "TECH", "NVDA": "TECH"}}
	holdingAAPL := &fakePositions{open: map[string]string{"AAPL": "TECH"}}

	sell := buyCandidate("AAPL", 100, 96)
	sell.Action = domain.ActionSell

	tests := []struct {
		name      string
		positions *fakePositions
		candidate domain.BlendedSignal
		equity    float64
		want      domain.RejectReason
	}{
		{"sell is not an entry", &fakePositions{}, sell, 5000, domain.ReasonNotBuy},
		{"global cap", full, buyCandidate("AAPL", 100, 96), 5000, domain.ReasonGlobalCap},
		{"sector cap", techFull, buyCandidate("AAPL", 100, 96), 5000, domain.ReasonSectorCap},
		{"unmapped instrument ignores sector cap", techFull, buyCandidate("XYZ", 100, 96), 5000, domain.ReasonNone},
		{"already open", holdingAAPL, buyCandidate("AAPL", 100, 96), 5000, domain.ReasonAlreadyOpen},
		{"stop at entry", &fakePositions{}, buyCandidate("AAPL", 100, 100), 5000, domain.ReasonInvalidStop},
		{"tiny equity floors to zero", &fakePositions{}, buyCandidate("AAPL", 100, 50), 10, domain.ReasonZeroQuantity},
		{"below min order value", &fakePositions{}, buyCandidate("AAPL", 10, 5), 20, domain.ReasonBelowMinOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGate(t, tt.positions, DefaultLimits())
			intent, reason := g.Admit(GateInput{Blended: tt.candidate, Equity: tt.equity, Regime: 1.0})
			assert.Equal(t, tt.want, reason)
			if tt.want != domain.ReasonNone {
				assert.Nil(t, intent)
			}
		})
	}
}

func TestGate_LockedOutRejectsEverything(t *testing.T) {
	g, m := newTestGate(t, &fakePositions{}, DefaultLimits())
	require.NoError(t, m.OnClose(context.Background(), closeWith(-250)))

	for _, inst := range []string{"AAPL", "TSLA", "XYZ"} {
		intent, reason := g.Admit(GateInput{Blended: buyCandidate(inst, 100, 96), Equity: 5000, Regime: 1.0})
		assert.Nil(t, intent)
		assert.Equal(t, domain.ReasonLockedOut, reason, inst)
	}
}

func TestGate_DailyTradeCap(t *testing.T) {
	limits := DefaultLimits()
	limits.DailyTradeCap = 2
	g, m := newTestGate(t, &fakePositions{}, limits)
	ctx := context.Background()

	require.NoError(t, m.RecordTrade(ctx, day1))
	_, reason := g.Admit(GateInput{Blended: buyCandidate("AAPL", 100, 96), Equity: 5000, Regime: 1})
	assert.Equal(t, domain.ReasonNone, reason)

	require.NoError(t, m.RecordTrade(ctx, day1))
	_, reason = g.Admit(GateInput{Blended: buyCandidate("AAPL", 100, 96), Equity: 5000, Regime: 1})
	assert.Equal(t, domain.ReasonDailyTradeCap, reason)
}

func TestGate_StreakScalesQuantity(t *testing.T) {
	tests := []struct {
		name string
		pnls []float64
		want float64
	}{
		{"normal", nil, 125},
		{"two losses", []float64{-1, -1}, 93.7},     // 500*0.75/4 = 93.75 floored to 0.1
		{"three losses", []float64{-1, -1, -1}, 75}, // 500*0.6/4
		{"three wins", []float64{1, 1, 1}, 162.5},   // 500*1.3/4
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, m := newTestGate(t, &fakePositions{}, DefaultLimits())
			for _, pnl := range tt.pnls {
				require.NoError(t, m.OnClose(context.Background(), closeWith(pnl)))
			}
			intent, reason := g.Admit(GateInput{Blended: buyCandidate("AAPL", 100, 96), Equity: 5000, Regime: 1})
			require.Equal(t, domain.ReasonNone, reason)
			assert.InDelta(t, tt.want, intent.Quantity, 1e-9)
		})
	}
}

func TestGate_ProfitReinvestment(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		pnl  float64
		want float64
	}{
		{"disabled", 0, 500, 125},
		{"winning day", 1, 500, 137.5}, // 500*1.1/4
		{"losing day", 1, -100, 125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := DefaultLimits()
			limits.ProfitReinvestRate = tt.rate
			g, m := newTestGate(t, &fakePositions{}, limits)
			require.NoError(t, m.OnClose(context.Background(), closeWith(tt.pnl)))

			intent, reason := g.Admit(GateInput{Blended: buyCandidate("AAPL", 100, 96), Equity: 5000, Regime: 1})
			require.Equal(t, domain.ReasonNone, reason)
			assert.InDelta(t, tt.want, intent.Quantity, 1e-9)
		})
	}
}

func TestGate_LotSizeOverride(t *testing.T) {
	m, _ := newTestMachine(t, DefaultParams())
	instruments := NewInstruments(DefaultSectors, DefaultLotSize, map[string]float64{"aapl": 1})
	g := NewGate(m, &fakePositions{}, instruments, DefaultLimits())

	intent, reason := g.Admit(GateInput{Blended: buyCandidate("AAPL", 100, 97), Equity: 5000, Regime: 1})
	require.Equal(t, domain.ReasonNone, reason)
	assert.Equal(t, 166.0, intent.Quantity) // 500/3 = 166.67
}

func TestNewMachineDefaults(t *testing.T) {
	m := NewMachine(memory.NewRiskStateStore(), Params{BaseRiskFraction: 0.1}, zerolog.Nop())
	assert.Equal(t, BreakerManual, m.Params().BreakerPolicy)
	assert.NotNil(t, m.Params().Location)
}
