package blend

import (
	"context"
	"errors"

	"tradegate/internal/domain"
)

// VolatilityScorer favors calm instruments and discounts turbulent ones,
// using the signal's volatility relative to its entry price.
type VolatilityScorer struct {
	LowPct    float64
	HighPct   float64
	LowBoost  float64
	HighPenal float64
}

// NewVolatilityScorer creates a VolatilityScorer with the given bands.
func NewVolatilityScorer(lowPct, highPct float64) *VolatilityScorer {
	return &VolatilityScorer{LowPct: lowPct, HighPct: highPct, LowBoost: 1.05, HighPenal: 0.85}
}

// Name returns the scorer identifier.
func (s *VolatilityScorer) Name() string { return "volatility" }

// Score classifies volatility into low, normal or high.
func (s *VolatilityScorer) Score(_ context.Context, sig domain.Signal) (domain.Adjustment, error) {
	if sig.EntryPrice <= 0 {
		return domain.Adjustment{}, errors.New("volatility: missing entry price")
	}
	ratio := sig.Volatility / sig.EntryPrice

	value := 1.0
	switch {
	case ratio < s.LowPct:
		value = s.LowBoost
	case ratio > s.HighPct:
		value = s.HighPenal
	}
	return domain.Adjustment{Name: s.Name(), Kind: domain.AdjustmentMultiplicative, Value: value}, nil
}

var _ Scorer = (*VolatilityScorer)(nil)
