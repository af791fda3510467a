package strategy

import (
	"tradegate/internal/domain"
)

// fallbackVolatilityPct is used when the snapshot carries no ATR.
const fallbackVolatilityPct = 0.02

// volumeSurgeRatio is the volume/baseline ratio counted as a surge.
const volumeSurgeRatio = 1.3

func volatilityOf(snap *domain.IndicatorSnapshot) float64 {
	if snap.ATR > 0 {
		return snap.ATR
	}
	return snap.Close * fallbackVolatilityPct
}

func bullish(snap *domain.IndicatorSnapshot) bool {
	return snap.FastMA > snap.SlowMA
}

func macdRising(snap *domain.IndicatorSnapshot) bool {
	return snap.MACDHist > 0 && snap.MACDHist > snap.PrevMACDHist
}

func between(v, lo, hi float64) bool {
	return v > lo && v < hi
}

// buySignal builds a buy with a stop stopATR volatility units below the close.
func buySignal(snap *domain.IndicatorSnapshot, name string, confidence, stopATR float64, rationale string) *domain.Signal {
	vol := volatilityOf(snap)
	return &domain.Signal{
		Instrument:     snap.Instrument,
		Action:         domain.ActionBuy,
		BaseConfidence: confidence,
		EntryPrice:     snap.Close,
		StopPrice:      snap.Close - stopATR*vol,
		Volatility:     vol,
		Strategy:       name,
		Rationale:      rationale,
	}
}

func sellSignal(snap *domain.IndicatorSnapshot, name string, confidence float64, rationale string) *domain.Signal {
	return &domain.Signal{
		Instrument:     snap.Instrument,
		Action:         domain.ActionSell,
		BaseConfidence: confidence,
		EntryPrice:     snap.Close,
		Volatility:     volatilityOf(snap),
		Strategy:       name,
		Rationale:      rationale,
	}
}
