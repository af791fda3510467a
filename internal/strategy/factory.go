package strategy

import (
	"errors"
	"fmt"
)

// Strategy names.
const (
	NameGoldenCross       = "golden_cross"
	NameMomentumBreakout  = "momentum_breakout"
	NameTrendBreak        = "trend_break"
	NameVolumeBreakout    = "volume_breakout"
	NameRSIBounce         = "rsi_bounce"
	NameMACDMomentum      = "macd_momentum"
	NameOverbought        = "overbought"
	NameBollingerBounce   = "bollinger_bounce"
	NameTrendContinuation = "trend_continuation"
	NameVolumeSurge       = "volume_surge"
	NameOversoldBounce    = "oversold_bounce"
)

// Factory errors
var (
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrDuplicateStrategy = errors.New("strategy listed twice")
	ErrNoStrategies      = errors.New("no strategies configured")
)

// DefaultOrder is the built-in priority order.
var DefaultOrder = []string{
	NameGoldenCross,
	NameMomentumBreakout,
	NameTrendBreak,
	NameVolumeBreakout,
	NameRSIBounce,
	NameMACDMomentum,
	NameOverbought,
	NameBollingerBounce,
	NameTrendContinuation,
	NameVolumeSurge,
	NameOversoldBounce,
}

var constructors = map[string]func() Evaluator{
	NameGoldenCross:       func() Evaluator { return NewGoldenCross() },
	NameMomentumBreakout:  func() Evaluator { return NewMomentumBreakout() },
	NameTrendBreak:        func() Evaluator { return NewTrendBreak() },
	NameVolumeBreakout:    func() Evaluator { return NewVolumeBreakout() },
	NameRSIBounce:         func() Evaluator { return NewRSIBounce() },
	NameMACDMomentum:      func() Evaluator { return NewMACDMomentum() },
	NameOverbought:        func() Evaluator { return NewOverbought() },
	NameBollingerBounce:   func() Evaluator { return NewBollingerBounce() },
	NameTrendContinuation: func() Evaluator { return NewTrendContinuation() },
	NameVolumeSurge:       func() Evaluator { return NewVolumeSurge() },
	NameOversoldBounce:    func() Evaluator { return NewOversoldBounce() },
}

// Default returns a registry with every built-in evaluator in DefaultOrder.
func Default() *Registry {
	r, _ := FromConfig(DefaultOrder)
	return r
}

// FromConfig builds a registry from strategy names, keeping their order as
// priority. Empty input yields ErrNoStrategies.
func FromConfig(names []string) (*Registry, error) {
	if len(names) == 0 {
		return nil, ErrNoStrategies
	}

	seen := make(map[string]struct{}, len(names))
	r := NewRegistry()
	for _, name := range names {
		ctor, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStrategy, name)
		}
		seen[name] = struct{}{}
		r.Register(ctor())
	}
	return r, nil
}
