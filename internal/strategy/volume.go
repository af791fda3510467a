package strategy

import (
	"fmt"

	"tradegate/internal/domain"
)

// VolumeBreakout fires on a strong one-bar move backed by a volume surge.
type VolumeBreakout struct {
	Confidence float64
	StopATR    float64
	MinChange  float64 // one-bar percent change
}

// NewVolumeBreakout creates a VolumeBreakout with default parameters.
func NewVolumeBreakout() *VolumeBreakout {
	return &VolumeBreakout{Confidence: 0.82, StopATR: 1.5, MinChange: 0.8}
}

// Name returns the strategy identifier.
func (s *VolumeBreakout) Name() string { return NameVolumeBreakout }

// Evaluate checks volume, price move, trend and momentum.
func (s *VolumeBreakout) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() || !snap.VolumeSurge(volumeSurgeRatio) {
		return nil
	}
	if snap.ChangePct() <= s.MinChange || !bullish(snap) {
		return nil
	}
	if !between(snap.RSI, 50, 75) || snap.MACDHist <= 0 {
		return nil
	}
	return buySignal(snap, s.Name(), s.Confidence, s.StopATR,
		fmt.Sprintf("breakout +%.2f%% on volume surge", snap.ChangePct()))
}

// VolumeSurge fires on a moderate rise with heavy volume in an uptrend.
type VolumeSurge struct {
	Confidence float64
	StopATR    float64
	MinChange  float64
}

// NewVolumeSurge creates a VolumeSurge with default parameters.
func NewVolumeSurge() *VolumeSurge {
	return &VolumeSurge{Confidence: 0.65, StopATR: 1.8, MinChange: 0.4}
}

// Name returns the strategy identifier.
func (s *VolumeSurge) Name() string { return NameVolumeSurge }

// Evaluate checks volume and direction.
func (s *VolumeSurge) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	if !snap.Valid() || !snap.VolumeSurge(volumeSurgeRatio) {
		return nil
	}
	if snap.ChangePct() <= s.MinChange || !bullish(snap) {
		return nil
	}
	return buySignal(snap, s.Name(), s.Confidence, s.StopATR,
		fmt.Sprintf("volume %.1fx baseline", snap.Volume/snap.VolumeBaseline))
}

var (
	_ Evaluator = (*VolumeBreakout)(nil)
	_ Evaluator = (*VolumeSurge)(nil)
)
