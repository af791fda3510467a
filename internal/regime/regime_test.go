package regime

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain"
	"tradegate/internal/feed"
)

func TestStatic(t *testing.T) {
	m, err := Static(0.8).Multiplier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.8, m)
}

func TestBenchmark_Classify(t *testing.T) {
	tests := []struct {
		name     string
		vix      float64
		fastMA   float64
		slowMA   float64
		wantName Name
		wantMult float64
	}{
		{"high volatility", 35, 500, 500, Volatile, 0.5},
		{"elevated volatility", 25, 500, 480, Choppy, 0.75},
		{"strong trend", 15, 520, 500, Trending, 1.2},
		{"quiet", 15, 502, 500, Normal, 1.0},
		{"boundary vix 30 is choppy", 30, 500, 500, Choppy, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := feed.NewMemory()
			src.Set(&domain.IndicatorSnapshot{Instrument: "VIX", Timeframe: domain.Timeframe1d, Close: tt.vix})
			src.Set(&domain.IndicatorSnapshot{Instrument: "SPY", Timeframe: domain.Timeframe1d, Close: 500, FastMA: tt.fastMA, SlowMA: tt.slowMA})

			b := NewBenchmark(src, "VIX", "SPY", zerolog.Nop())
			name, mult, err := b.Classify(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantMult, mult)
		})
	}
}

func TestBenchmark_FailureIsNeutral(t *testing.T) {
	src := feed.NewMemory()
	b := NewBenchmark(src, "VIX", "SPY", zerolog.Nop())

	m, err := b.Multiplier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)

	src.Set(&domain.IndicatorSnapshot{Instrument: "VIX", Timeframe: domain.Timeframe1d, Close: 12})
	src.Fail("SPY", domain.Timeframe1d, errors.New("timeout"))
	_, _, err = b.Classify(context.Background())
	assert.Error(t, err)

	m, err = b.Multiplier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)
}
