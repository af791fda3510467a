package strategy

import (
	"fmt"

	"tradegate/internal/domain"
)

// RSIBounce fires when RSI recovers out of oversold inside an uptrend.
type RSIBounce struct {
	Confidence float64
	StopATR    float64
	MinChange  float64
}

// NewRSIBounce creates an RSIBounce with default parameters.
func NewRSIBounce() *RSIBounce {
	return &RSIBounce{Confidence: 0.80, StopATR: 2.2, MinChange: 0.3}
}

// Name returns the strategy identifier.
func (s *RSIBounce) Name() string { return NameRSIBounce }

// Evaluate checks that RSI left the oversold zone on this bar.
func (s *RSIBounce) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() {
		return nil
	}
	if !between(snap.RSI, 35, 50) || snap.PrevRSI >= 35 || !bullish(snap) {
		return nil
	}
	if snap.ChangePct() <= s.MinChange || snap.Close <= snap.BandMiddle {
		return nil
	}
	return buySignal(snap, s.Name(), s.Confidence, s.StopATR,
		fmt.Sprintf("RSI recovered %.1f -> %.1f", snap.PrevRSI, snap.RSI))
}

// BollingerBounce fires when the close sits in the upper-middle of a wide band.
type BollingerBounce struct {
	Confidence  float64
	StopATR     float64
	MinWidthPct float64
}

// NewBollingerBounce creates a BollingerBounce with default parameters.
func NewBollingerBounce() *BollingerBounce {
	return &BollingerBounce{Confidence: 0.70, StopATR: 2.0, MinWidthPct: 0.03}
}

// Name returns the strategy identifier.
func (s *BollingerBounce) Name() string { return NameBollingerBounce }

// Evaluate checks band position and width.
func (s *BollingerBounce) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() {
		return nil
	}
	pos := snap.BandPosition()
	if !between(pos, 0.4, 0.7) || !bullish(snap) {
		return nil
	}
	if snap.BandWidthPct() <= s.MinWidthPct || !between(snap.RSI, 40, 65) {
		return nil
	}
	return buySignal(snap, s.Name(), s.Confidence, s.StopATR,
		fmt.Sprintf("band position %.2f, width %.1f%%", pos, snap.BandWidthPct()*100))
}

// OversoldBounce fires on a turning RSI below 40 with a small up move.
// It does not require an uptrend.
type OversoldBounce struct {
	Confidence float64
	StopATR    float64
	MinChange  float64
}

// NewOversoldBounce creates an OversoldBounce with default parameters.
func NewOversoldBounce() *OversoldBounce {
	return &OversoldBounce{Confidence: 0.55, StopATR: 2.0, MinChange: 0.1}
}

// Name returns the strategy identifier.
func (s *OversoldBounce) Name() string { return NameOversoldBounce }

// Evaluate checks for a rising RSI from oversold territory.
func (s *OversoldBounce) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() {
		return nil
	}
	if snap.RSI >= 40 || snap.RSI <= snap.PrevRSI || snap.ChangePct() <= s.MinChange {
		return nil
	}
	return buySignal(snap, s.Name(), s.Confidence, s.StopATR,
		fmt.Sprintf("oversold RSI %.1f turning up", snap.RSI))
}

// Overbought emits a sell when RSI stays above 70 and momentum fades.
type Overbought struct {
	Confidence float64
}

// NewOverbought creates an Overbought with default parameters.
func NewOverbought() *Overbought {
	return &Overbought{Confidence: 0.75}
}

// Name returns the strategy identifier.
func (s *Overbought) Name() string { return NameOverbought }

// Evaluate checks RSI level and a falling histogram.
func (s *Overbought) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() {
		return nil
	}
	if snap.RSI <= 75 || snap.PrevRSI <= 70 || snap.MACDHist >= snap.PrevMACDHist {
		return nil
	}
	return sellSignal(snap, s.Name(), s.Confidence,
		fmt.Sprintf("overbought RSI %.1f with fading MACD", snap.RSI))
}

var (
	_ Evaluator = (*RSIBounce)(nil)
	_ Evaluator = (*BollingerBounce)(nil)
	_ Evaluator = (*OversoldBounce)(nil)
	_ Evaluator = (*Overbought)(nil)
)
