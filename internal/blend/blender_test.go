package blend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain"
)

type stubScorer struct {
	name  string
	adj   domain.Adjustment
	err   error
	panic bool
	delay time.Duration
}

func (s stubScorer) Name() string { return s.name }

func (s stubScorer) Score(ctx context.Context, _ domain.Signal) (domain.Adjustment, error) {
	if s.panic {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.Adjustment{}, ctx.Err()
		}
	}
	return s.adj, s.err
}

func mult(name string, v float64) stubScorer {
	return stubScorer{name: name, adj: domain.Adjustment{Name: name, Kind: domain.AdjustmentMultiplicative, Value: v}}
}

func add(name string, v float64) stubScorer {
	return stubScorer{name: name, adj: domain.Adjustment{Name: name, Kind: domain.AdjustmentAdditive, Value: v}}
}

func buySignal(conf float64) domain.Signal {
	return domain.Signal{
		Instrument:     "AAPL",
		Action:         domain.ActionBuy,
		BaseConfidence: conf,
		EntryPrice:     100,
		StopPrice:      96,
		Volatility:     2,
		Strategy:       "golden_cross",
	}
}

func TestBlend_ClampsAboveOne(t *testing.T) {
	b := New(Options{Logger: zerolog.Nop()}, mult("m", 1.5), add("a", 0.4))

	bs := b.Blend(context.Background(), buySignal(0.9))

	assert.InDelta(t, 1.75, bs.RawConfidence, 1e-9)
	assert.Equal(t, 1.0, bs.FinalConfidence)
	require.Len(t, bs.Adjustments, 2)
	assert.Equal(t, "m", bs.Adjustments[0].Name)
	assert.Equal(t, "a", bs.Adjustments[1].Name)
}

func TestBlend_ClampsBelowZero(t *testing.T) {
	b := New(Options{Logger: zerolog.Nop()}, add("a", -0.9))

	bs := b.Blend(context.Background(), buySignal(0.5))

	assert.Equal(t, 0.0, bs.FinalConfidence)
}

func TestBlend_NoScorers(t *testing.T) {
	b := New(Options{Logger: zerolog.Nop()})

	bs := b.Blend(context.Background(), buySignal(0.62))

	assert.Equal(t, 0.62, bs.FinalConfidence)
	assert.Empty(t, bs.Adjustments)
	assert.Equal(t, "golden_cross", bs.Strategy)
}

func TestBlend_FailingScorerIsNeutral(t *testing.T) {
	tests := []struct {
		name   string
		scorer stubScorer
	}{
		{name: "error", scorer: stubScorer{name: "bad", err: errors.New("model offline")}},
		{name: "panic", scorer: stubScorer{name: "bad", panic: true}},
		{name: "timeout", scorer: stubScorer{name: "bad", delay: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(Options{Logger: zerolog.Nop(), ScorerTimeout: 20 * time.Millisecond},
				mult("good", 1.2), tt.scorer)

			bs := b.Blend(context.Background(), buySignal(0.5))

			assert.InDelta(t, 0.6, bs.FinalConfidence, 1e-9)
			require.Len(t, bs.Adjustments, 2)
			assert.True(t, bs.Adjustments[1].IsNeutral())
			assert.Equal(t, "bad", bs.Adjustments[1].Name)
		})
	}
}

func TestBlender_Passes(t *testing.T) {
	b := New(Options{Logger: zerolog.Nop()})
	assert.Equal(t, DefaultThreshold, b.Threshold())

	assert.True(t, b.Passes(domain.BlendedSignal{FinalConfidence: 0.40}))
	assert.True(t, b.Passes(domain.BlendedSignal{FinalConfidence: 0.8}))
	assert.False(t, b.Passes(domain.BlendedSignal{FinalConfidence: 0.39}))

	strict := New(Options{Threshold: 0.7, Logger: zerolog.Nop()})
	assert.False(t, strict.Passes(domain.BlendedSignal{FinalConfidence: 0.69}))
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name      string
		base      float64
		adj       []domain.Adjustment
		wantRaw   float64
		wantFinal float64
	}{
		{name: "identity", base: 0.5, wantRaw: 0.5, wantFinal: 0.5},
		{
			name: "product of multipliers",
			base: 0.5,
			adj: []domain.Adjustment{
				{Kind: domain.AdjustmentMultiplicative, Value: 1.2},
				{Kind: domain.AdjustmentMultiplicative, Value: 0.5},
			},
			wantRaw:   0.3,
			wantFinal: 0.3,
		},
		{
			name: "additive applied after product",
			base: 0.5,
			adj: []domain.Adjustment{
				{Kind: domain.AdjustmentAdditive, Value: 0.1},
				{Kind: domain.AdjustmentMultiplicative, Value: 2},
			},
			wantRaw:   1.1,
			wantFinal: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, final := Combine(tt.base, tt.adj)
			assert.InDelta(t, tt.wantRaw, raw, 1e-9)
			assert.InDelta(t, tt.wantFinal, final, 1e-9)
		})
	}
}
