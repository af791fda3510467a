package strategy

import (
	"fmt"

	"tradegate/internal/domain"
)

// GoldenCross fires when the fast average crosses above the slow one
// with RSI in a neutral band and positive MACD histogram.
type GoldenCross struct {
	Confidence float64
	StopATR    float64
}

// NewGoldenCross creates a GoldenCross with default parameters.
func NewGoldenCross() *GoldenCross {
	return &GoldenCross{Confidence: 0.95, StopATR: 2.0}
}

// Name returns the strategy identifier.
func (s *GoldenCross) Name() string { return NameGoldenCross }

// Evaluate checks for a fresh bullish crossover.
func (s *GoldenCross) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() {
		return nil
	}
	crossed := snap.FastMA > snap.SlowMA && snap.PrevFastMA <= snap.PrevSlowMA
	if !crossed || !between(snap.RSI, 30, 70) || snap.MACDHist <= 0 {
		return nil
	}
	return buySignal(snap, s.Name(), s.Confidence, s.StopATR,
		fmt.Sprintf("fast MA crossed above slow MA, RSI %.1f", snap.RSI))
}

// TrendContinuation fires on an established uptrend that keeps extending.
type TrendContinuation struct {
	Confidence float64
	StopATR    float64
	MinGapPct  float64 // (fast - slow) / slow
	MinChange  float64 // percent change over two bars
}

// NewTrendContinuation creates a TrendContinuation with default parameters.
func NewTrendContinuation() *TrendContinuation {
	return &TrendContinuation{Confidence: 0.68, StopATR: 2.5, MinGapPct: 0.003, MinChange: 0.3}
}

// Name returns the strategy identifier.
func (s *TrendContinuation) Name() string { return NameTrendContinuation }

// Evaluate checks that the averages are separated and price keeps rising.
func (s *TrendContinuation) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() {
		return nil
	}
	gap := (snap.FastMA - snap.SlowMA) / snap.SlowMA
	if gap <= s.MinGapPct || snap.MACDHist <= 0 || !between(snap.RSI, 45, 80) {
		return nil
	}
	if snap.ChangePct3() <= s.MinChange {
		return nil
	}
	return buySignal(snap, s.Name(), s.Confidence, s.StopATR,
		fmt.Sprintf("trend gap %.2f%%, two-bar change %.2f%%", gap*100, snap.ChangePct3()))
}

// TrendBreak emits a sell when the fast average crosses below the slow one.
type TrendBreak struct {
	Confidence float64
}

// NewTrendBreak creates a TrendBreak with default parameters.
func NewTrendBreak() *TrendBreak {
	return &TrendBreak{Confidence: 0.85}
}

// Name returns the strategy identifier.
func (s *TrendBreak) Name() string { return NameTrendBreak }

// Evaluate checks for a fresh bearish crossover.
func (s *TrendBreak) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() {
		return nil
	}
	if snap.FastMA >= snap.SlowMA || snap.PrevFastMA < snap.PrevSlowMA {
		return nil
	}
	return sellSignal(snap, s.Name(), s.Confidence, "fast MA crossed below slow MA")
}

var (
	_ Evaluator = (*GoldenCross)(nil)
	_ Evaluator = (*TrendContinuation)(nil)
	_ Evaluator = (*TrendBreak)(nil)
)
