package domain

// Timeframe identifies the bar interval an indicator snapshot was computed on.
type Timeframe string

const (
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
)

// String returns the string representation of Timeframe.
func (t Timeframe) String() string {
	return string(t)
}

// IndicatorSnapshot holds precomputed technical indicators for one instrument
// at one bar close. Values are produced by the market data collaborator and
// are never mutated by the engine.
type IndicatorSnapshot struct {
	Instrument string
	Timeframe  Timeframe
	Timestamp  int64 // bar close, Unix ms

	Close     float64
	PrevClose float64 // close one bar back
	Close3    float64 // close two bars back

	FastMA     float64
	SlowMA     float64
	PrevFastMA float64
	PrevSlowMA float64

	RSI     float64
	PrevRSI float64

	MACDHist     float64
	PrevMACDHist float64

	BandUpper  float64
	BandMiddle float64
	BandLower  float64

	ATR            float64 // volatility measure, price units
	Volume         float64
	VolumeBaseline float64 // rolling mean volume
}

// Valid reports whether the snapshot carries enough data to be evaluated.
func (s *IndicatorSnapshot) Valid() bool {
	return s != nil && s.Close > 0 && s.SlowMA > 0 && s.FastMA > 0
}

// BandPosition returns where the close sits inside the volatility band,
// 0 at the lower band and 1 at the upper band.
func (s *IndicatorSnapshot) BandPosition() float64 {
	width := s.BandUpper - s.BandLower
	if width <= 0 {
		return 0.5
	}
	return (s.Close - s.BandLower) / width
}

// BandWidthPct returns the band width relative to the middle band.
func (s *IndicatorSnapshot) BandWidthPct() float64 {
	if s.BandMiddle <= 0 {
		return 0
	}
	return (s.BandUpper - s.BandLower) / s.BandMiddle
}

// ChangePct returns the percent change of the close versus the previous bar.
func (s *IndicatorSnapshot) ChangePct() float64 {
	if s.PrevClose <= 0 {
		return 0
	}
	return (s.Close - s.PrevClose) / s.PrevClose * 100
}

// ChangePct3 returns the percent change of the close versus two bars back.
func (s *IndicatorSnapshot) ChangePct3() float64 {
	if s.Close3 <= 0 {
		return 0
	}
	return (s.Close - s.Close3) / s.Close3 * 100
}

// VolumeSurge reports whether volume exceeds the baseline by the given ratio.
func (s *IndicatorSnapshot) VolumeSurge(ratio float64) bool {
	return s.VolumeBaseline > 0 && s.Volume > s.VolumeBaseline*ratio
}

// VolatilityPct returns ATR relative to the close.
func (s *IndicatorSnapshot) VolatilityPct() float64 {
	if s.Close <= 0 {
		return 0
	}
	return s.ATR / s.Close
}
