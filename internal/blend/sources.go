package blend

import (
	"context"

	"tradegate/internal/domain"
)

// PatternSource reports a detected chart pattern direction and its confidence.
type PatternSource interface {
	Pattern(ctx context.Context, instrument string) (domain.Action, float64, error)
}

// SentimentSource reports a sentiment reading in [-1, 1] and its confidence in [0, 1].
type SentimentSource interface {
	Sentiment(ctx context.Context, instrument string) (float64, float64, error)
}

// EnsembleSource reports a model ensemble vote: -1, 0 or +1.
type EnsembleSource interface {
	Vote(ctx context.Context, instrument string) (int, error)
}

// PatternScorer adds a bonus when a confident pattern agrees with the signal
// and scales confidence down when it conflicts.
type PatternScorer struct {
	source        PatternSource
	MinConfidence float64
	Bonus         float64 // additive
	Penalty       float64 // multiplicative
}

// NewPatternScorer creates a PatternScorer with default parameters.
func NewPatternScorer(source PatternSource) *PatternScorer {
	return &PatternScorer{source: source, MinConfidence: 0.6, Bonus: 0.25, Penalty: 0.75}
}

// Name returns the scorer identifier.
func (s *PatternScorer) Name() string { return "pattern" }

// Score compares the detected pattern with the signal direction.
func (s *PatternScorer) Score(ctx context.Context, sig domain.Signal) (domain.Adjustment, error) {
	action, conf, err := s.source.Pattern(ctx, sig.Instrument)
	if err != nil {
		return domain.Adjustment{}, err
	}
	if action == domain.ActionHold || conf <= s.MinConfidence {
		return domain.Neutral(s.Name(), domain.AdjustmentAdditive), nil
	}
	if action == sig.Action {
		return domain.Adjustment{Name: s.Name(), Kind: domain.AdjustmentAdditive, Value: s.Bonus}, nil
	}
	return domain.Adjustment{Name: s.Name(), Kind: domain.AdjustmentMultiplicative, Value: s.Penalty}, nil
}

// SentimentScorer scales confidence by 1 + direction × signal × confidence × Weight.
type SentimentScorer struct {
	source SentimentSource
	Weight float64
}

// NewSentimentScorer creates a SentimentScorer with default weight.
func NewSentimentScorer(source SentimentSource) *SentimentScorer {
	return &SentimentScorer{source: source, Weight: 0.2}
}

// Name returns the scorer identifier.
func (s *SentimentScorer) Name() string { return "sentiment" }

// Score maps the sentiment reading to a multiplier. Sells invert the reading.
func (s *SentimentScorer) Score(ctx context.Context, sig domain.Signal) (domain.Adjustment, error) {
	reading, conf, err := s.source.Sentiment(ctx, sig.Instrument)
	if err != nil {
		return domain.Adjustment{}, err
	}
	reading = clamp(reading, -1, 1)
	conf = clamp(conf, 0, 1)
	if sig.Action == domain.ActionSell {
		reading = -reading
	}
	return domain.Adjustment{
		Name:  s.Name(),
		Kind:  domain.AdjustmentMultiplicative,
		Value: 1 + reading*conf*s.Weight,
	}, nil
}

// EnsembleScorer boosts agreement with a model vote and cuts disagreement.
type EnsembleScorer struct {
	source   EnsembleSource
	Agree    float64
	Disagree float64
}

// NewEnsembleScorer creates an EnsembleScorer with default parameters.
func NewEnsembleScorer(source EnsembleSource) *EnsembleScorer {
	return &EnsembleScorer{source: source, Agree: 1.15, Disagree: 0.70}
}

// Name returns the scorer identifier.
func (s *EnsembleScorer) Name() string { return "ensemble" }

// Score compares the vote with the signal direction.
func (s *EnsembleScorer) Score(ctx context.Context, sig domain.Signal) (domain.Adjustment, error) {
	vote, err := s.source.Vote(ctx, sig.Instrument)
	if err != nil {
		return domain.Adjustment{}, err
	}

	dir := 0
	switch sig.Action {
	case domain.ActionBuy:
		dir = 1
	case domain.ActionSell:
		dir = -1
	}

	value := 1.0
	switch {
	case vote == 0 || dir == 0:
	case vote == dir:
		value = s.Agree
	default:
		value = s.Disagree
	}
	return domain.Adjustment{Name: s.Name(), Kind: domain.AdjustmentMultiplicative, Value: value}, nil
}

var (
	_ Scorer = (*PatternScorer)(nil)
	_ Scorer = (*SentimentScorer)(nil)
	_ Scorer = (*EnsembleScorer)(nil)
)
