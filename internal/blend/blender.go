// Package blend applies auxiliary confidence adjustments to strategy signals.
package blend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tradegate/internal/domain"
)

// DefaultThreshold is the minimum final confidence for a signal to proceed.
const DefaultThreshold = 0.40

// DefaultScorerTimeout bounds a single scorer call.
const DefaultScorerTimeout = 2 * time.Second

// Scorer produces one confidence adjustment for a signal.
type Scorer interface {
	// Name identifies the scorer in logs and adjustment lists.
	Name() string

	// Score returns the adjustment for sig. An error makes the blender
	// treat the scorer as neutral for this signal.
	Score(ctx context.Context, sig domain.Signal) (domain.Adjustment, error)
}

// Options configures a Blender.
type Options struct {
	Threshold     float64
	ScorerTimeout time.Duration
	Logger        zerolog.Logger
}

// Blender combines a base confidence with scorer adjustments.
type Blender struct {
	scorers   []Scorer
	threshold float64
	timeout   time.Duration
	logger    zerolog.Logger
}

// New creates a Blender applying scorers in the given order.
func New(opts Options, scorers ...Scorer) *Blender {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.ScorerTimeout <= 0 {
		opts.ScorerTimeout = DefaultScorerTimeout
	}
	return &Blender{
		scorers:   scorers,
		threshold: opts.Threshold,
		timeout:   opts.ScorerTimeout,
		logger:    opts.Logger.With().Str("component", "blend").Logger(),
	}
}

// Threshold returns the configured pass threshold.
func (b *Blender) Threshold() float64 {
	return b.threshold
}

// Blend runs every scorer and returns the adjusted signal.
// A failing, panicking or slow scorer contributes a neutral adjustment.
func (b *Blender) Blend(ctx context.Context, sig domain.Signal) domain.BlendedSignal {
	adjustments := make([]domain.Adjustment, 0, len(b.scorers))

	for _, s := range b.scorers {
		adj, err := b.score(ctx, s, sig)
		if err != nil {
			b.logger.Warn().
				Err(err).
				Str("instrument", sig.Instrument).
				Str("scorer", s.Name()).
				Msg("scorer failed, using neutral adjustment")
			adj = domain.Neutral(s.Name(), domain.AdjustmentMultiplicative)
		}
		if adj.Name == "" {
			adj.Name = s.Name()
		}
		adjustments = append(adjustments, adj)
	}

	raw, final := Combine(sig.BaseConfidence, adjustments)
	return domain.BlendedSignal{
		Signal:          sig,
		RawConfidence:   raw,
		FinalConfidence: final,
		Adjustments:     adjustments,
	}
}

// Passes reports whether the blended confidence clears the threshold.
func (b *Blender) Passes(bs domain.BlendedSignal) bool {
	return bs.FinalConfidence >= b.threshold
}

// Combine computes base × Π(multipliers) + Σ(additives) and its clamp to [0, 1].
func Combine(base float64, adjustments []domain.Adjustment) (raw, final float64) {
	product := 1.0
	sum := 0.0
	for _, a := range adjustments {
		switch a.Kind {
		case domain.AdjustmentAdditive:
			sum += a.Value
		default:
			product *= a.Value
		}
	}
	raw = base*product + sum
	return raw, clamp(raw, 0, 1)
}

// score calls the scorer with a deadline and turns panics into errors.
func (b *Blender) score(ctx context.Context, s Scorer, sig domain.Signal) (adj domain.Adjustment, err error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		adj domain.Adjustment
		err error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("scorer panic: %v", r)}
			}
		}()
		a, e := s.Score(ctx, sig)
		ch <- result{adj: a, err: e}
	}()

	select {
	case r := <-ch:
		return r.adj, r.err
	case <-ctx.Done():
		return domain.Adjustment{}, fmt.Errorf("scorer %s: %w", s.Name(), ctx.Err())
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
