package strategy

import (
	"fmt"

	"tradegate/internal/domain"
)

// MomentumBreakout fires on accelerating MACD in an uptrend with a volume surge
// and the close above the middle band.
type MomentumBreakout struct {
	Confidence float64
	StopATR    float64
}

// NewMomentumBreakout creates a MomentumBreakout with default parameters.
func NewMomentumBreakout() *MomentumBreakout {
	return &MomentumBreakout{Confidence: 0.88, StopATR: 1.8}
}

// Name returns the strategy identifier.
func (s *MomentumBreakout) Name() string { return NameMomentumBreakout }

// Evaluate checks momentum, trend, band and volume conditions together.
func (s *MomentumBreakout) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() {
		return nil
	}
	if !bullish(snap) || !macdRising(snap) || !between(snap.RSI, 55, 75) {
		return nil
	}
	if snap.Close <= snap.BandMiddle || !snap.VolumeSurge(volumeSurgeRatio) {
		return nil
	}
	return buySignal(snap, s.Name(), s.Confidence, s.StopATR,
		fmt.Sprintf("MACD accelerating on %.1fx volume", snap.Volume/snap.VolumeBaseline))
}

// MACDMomentum fires on a rising positive MACD histogram in an uptrend.
type MACDMomentum struct {
	Confidence float64
	StopATR    float64
}

// NewMACDMomentum creates a MACDMomentum with default parameters.
func NewMACDMomentum() *MACDMomentum {
	return &MACDMomentum{Confidence: 0.75, StopATR: 2.0}
}

// Name returns the strategy identifier.
func (s *MACDMomentum) Name() string { return NameMACDMomentum }

// Evaluate checks histogram direction and RSI band.
func (s *MACDMomentum) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() {
		return nil
	}
	if !macdRising(snap) || !bullish(snap) || !between(snap.RSI, 45, 70) {
		return nil
	}
	return buySignal(snap, s.Name(), s.Confidence, s.StopATR,
		fmt.Sprintf("MACD histogram rising %.4f -> %.4f", snap.PrevMACDHist, snap.MACDHist))
}

var (
	_ Evaluator = (*MomentumBreakout)(nil)
	_ Evaluator = (*MACDMomentum)(nil)
)
