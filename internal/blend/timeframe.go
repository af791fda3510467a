package blend

import (
	"context"
	"errors"
	"math"

	"tradegate/internal/domain"
)

// ErrNoTimeframes is returned when no timeframe snapshot could be fetched.
var ErrNoTimeframes = errors.New("no timeframe data")

// SnapshotFetcher loads an indicator snapshot for one instrument and timeframe.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, instrument string, tf domain.Timeframe) (*domain.IndicatorSnapshot, error)
}

// TimeframeScorer rewards signals confirmed across several timeframes and
// penalizes signals where timeframes disagree.
type TimeframeScorer struct {
	source     SnapshotFetcher
	timeframes []domain.Timeframe

	StrongConfluence float64 // |confluence| at or above counts as confirmation
	WeakConfluence   float64 // |confluence| below counts as noise
	Boost            float64
	Penalty          float64
}

// NewTimeframeScorer creates a scorer over the given timeframes.
func NewTimeframeScorer(source SnapshotFetcher, timeframes []domain.Timeframe) *TimeframeScorer {
	return &TimeframeScorer{
		source:           source,
		timeframes:       timeframes,
		StrongConfluence: 0.75,
		WeakConfluence:   0.3,
		Boost:            1.20,
		Penalty:          0.80,
	}
}

// Name returns the scorer identifier.
func (s *TimeframeScorer) Name() string { return "timeframe" }

// Score computes confluence and maps it to a multiplier.
func (s *TimeframeScorer) Score(ctx context.Context, sig domain.Signal) (domain.Adjustment, error) {
	c, err := s.Confluence(ctx, sig.Instrument)
	if err != nil {
		return domain.Adjustment{}, err
	}

	value := 1.0
	switch {
	case sig.Action == domain.ActionBuy && c >= s.StrongConfluence:
		value = s.Boost
	case sig.Action == domain.ActionSell && c <= -s.StrongConfluence:
		value = s.Boost
	case math.Abs(c) < s.WeakConfluence:
		value = s.Penalty
	}
	return domain.Adjustment{Name: s.Name(), Kind: domain.AdjustmentMultiplicative, Value: value}, nil
}

// Confluence averages per-timeframe trend direction in [-1, 1].
// Timeframes that fail to load are left out.
func (s *TimeframeScorer) Confluence(ctx context.Context, instrument string) (float64, error) {
	var sum float64
	var n int
	for _, tf := range s.timeframes {
		snap, err := s.source.Fetch(ctx, instrument, tf)
		if err != nil || !snap.Valid() {
			continue
		}
		sum += trendDirection(snap)
		n++
	}
	if n == 0 {
		return 0, ErrNoTimeframes
	}
	return sum / float64(n), nil
}

// trendDirection is +1 for close > fast > slow, -1 for the reverse, else 0.
func trendDirection(s *domain.IndicatorSnapshot) float64 {
	switch {
	case s.Close > s.FastMA && s.FastMA > s.SlowMA:
		return 1
	case s.Close < s.FastMA && s.FastMA < s.SlowMA:
		return -1
	default:
		return 0
	}
}

var _ Scorer = (*TimeframeScorer)(nil)
