package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tradegate/internal/domain"
)

func TestEffectiveRisk(t *testing.T) {
	tests := []struct {
		name                 string
		base, streak, regime float64
		want                 float64
	}{
		{"plain", 0.10, 1.0, 1.0, 0.10},
		{"three losses", 0.10, 0.6, 1.0, 0.06},
		{"clamped low", 0.02, 0.6, 0.5, 0.01},
		{"clamped high", 0.25, 1.3, 1.2, 0.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EffectiveRisk(tt.base, tt.streak, tt.regime, 0.01, 0.30), 1e-12)
		})
	}
}

func TestProfitBoost(t *testing.T) {
	tests := []struct {
		name              string
		pnl, equity, rate float64
		want              float64
	}{
		{"disabled", 500, 5000, 0, 1},
		{"losing day", -500, 5000, 0.05, 1},
		{"flat day", 0, 5000, 0.05, 1},
		{"no reference equity", 500, 0, 0.05, 1},
		{"ten percent day", 500, 5000, 0.05, 1.005},
		{"full rate", 500, 5000, 1, 1.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ProfitBoost(tt.pnl, tt.equity, tt.rate), 1e-12)
		})
	}
}

func TestPositionSize(t *testing.T) {
	qty, reason := PositionSize(5000, 0.10, 100, 96, 0.1)
	assert.Equal(t, domain.ReasonNone, reason)
	assert.Equal(t, 125.0, qty)

	// Short-side stop distance is absolute.
	qty, reason = PositionSize(5000, 0.10, 100, 104, 0.1)
	assert.Equal(t, domain.ReasonNone, reason)
	assert.Equal(t, 125.0, qty)

	_, reason = PositionSize(5000, 0.10, 100, 100, 0.1)
	assert.Equal(t, domain.ReasonInvalidStop, reason)

	_, reason = PositionSize(1, 0.01, 100, 50, 1)
	assert.Equal(t, domain.ReasonZeroQuantity, reason)
}

func TestFloorToLot(t *testing.T) {
	q := decimal.RequireFromString("12.3456")
	assert.Equal(t, "12.3", FloorToLot(q, 0.1).String())
	assert.Equal(t, "12", FloorToLot(q, 1).String())
	assert.Equal(t, "10", FloorToLot(q, 5).String())
	assert.Equal(t, "12.3456", FloorToLot(q, 0).String())
}

func TestInstruments(t *testing.T) {
	in := NewInstruments(map[string][]string{
		"TECH":    {"AAPL", "coin"},
		"FINTECH": {"COIN"},
	}, 0.1, map[string]float64{"aapl": 1})

	assert.Equal(t, "TECH", in.SectorOf("aapl"))
	assert.Equal(t, "FINTECH", in.SectorOf("COIN"), "lexically first sector wins on overlap")
	assert.Equal(t, "", in.SectorOf("XYZ"))
	assert.Equal(t, 1.0, in.LotSize("AAPL"))
	assert.Equal(t, 0.1, in.LotSize("MSFT"))

	var none *Instruments
	assert.Equal(t, "", none.SectorOf("AAPL"))
	assert.Equal(t, DefaultLotSize, none.LotSize("AAPL"))
}
