// Package regime classifies the market environment into a risk multiplier.
package regime

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"tradegate/internal/domain"
	"tradegate/internal/feed"
)

// Name labels a market regime.
type Name string

const (
	Normal   Name = "NORMAL"
	Volatile Name = "VOLATILE"
	Choppy   Name = "CHOPPY"
	Trending Name = "TRENDING"
)

// Classifier supplies the regime multiplier applied to the base risk.
type Classifier interface {
	Multiplier(ctx context.Context) (float64, error)
}

// Static always returns the same multiplier.
type Static float64

// Multiplier returns s.
func (s Static) Multiplier(context.Context) (float64, error) {
	return float64(s), nil
}

// Benchmark reads a volatility index and a benchmark instrument from the
// indicator source. Any failure degrades to the normal multiplier.
type Benchmark struct {
	source    feed.IndicatorSource
	volIndex  string
	benchmark string
	timeframe domain.Timeframe
	log       zerolog.Logger

	HighVol      float64 // index above -> Volatile
	ElevatedVol  float64 // index above -> Choppy
	TrendPct     float64 // |fastMA - slowMA| / close above -> Trending
	VolatileMult float64
	ChoppyMult   float64
	TrendMult    float64
}

// NewBenchmark creates a classifier reading volIndex (e.g. VIX) and
// benchmark (e.g. SPY) daily snapshots.
func NewBenchmark(source feed.IndicatorSource, volIndex, benchmark string, log zerolog.Logger) *Benchmark {
	return &Benchmark{
		source:       source,
		volIndex:     volIndex,
		benchmark:    benchmark,
		timeframe:    domain.Timeframe1d,
		log:          log.With().Str("component", "regime").Logger(),
		HighVol:      30,
		ElevatedVol:  20,
		TrendPct:     0.03,
		VolatileMult: 0.5,
		ChoppyMult:   0.75,
		TrendMult:    1.2,
	}
}

// Compile-time interface checks.
var (
	_ Classifier = Static(1)
	_ Classifier = (*Benchmark)(nil)
)

// Multiplier never returns an error; failures are logged and yield 1.0.
func (b *Benchmark) Multiplier(ctx context.Context) (float64, error) {
	name, mult, err := b.Classify(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("regime detection failed, using normal")
		return 1.0, nil
	}
	b.log.Debug().Str("regime", string(name)).Float64("multiplier", mult).Msg("regime classified")
	return mult, nil
}

// Classify returns the regime and its multiplier.
func (b *Benchmark) Classify(ctx context.Context) (Name, float64, error) {
	vol, err := b.source.Fetch(ctx, b.volIndex, b.timeframe)
	if err != nil {
		return Normal, 1.0, fmt.Errorf("fetch %s: %w", b.volIndex, err)
	}
	switch {
	case vol.Close > b.HighVol:
		return Volatile, b.VolatileMult, nil
	case vol.Close > b.ElevatedVol:
		return Choppy, b.ChoppyMult, nil
	}

	bench, err := b.source.Fetch(ctx, b.benchmark, b.timeframe)
	if err != nil {
		return Normal, 1.0, fmt.Errorf("fetch %s: %w", b.benchmark, err)
	}
	if bench.Close <= 0 {
		return Normal, 1.0, nil
	}
	if math.Abs(bench.FastMA-bench.SlowMA)/bench.Close > b.TrendPct {
		return Trending, b.TrendMult, nil
	}
	return Normal, 1.0, nil
}
