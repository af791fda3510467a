package risk

import (
	"github.com/shopspring/decimal"

	"tradegate/internal/domain"
)

// EffectiveRisk combines the base fraction with the streak and regime
// multipliers and clamps the product to [minFraction, maxFraction].
func EffectiveRisk(base, streak, regime, minFraction, maxFraction float64) float64 {
	eff := base * streak * regime
	if eff < minFraction {
		return minFraction
	}
	if eff > maxFraction {
		return maxFraction
	}
	return eff
}

// ProfitBoost scales risk by 1 + rate * (dailyPnL / referenceEquity) on a
// profitable day. A zero rate, a flat or losing day, or an unknown reference
// equity return 1. The gate's MaxRiskFraction still caps the result.
func ProfitBoost(dailyPnL, referenceEquity, rate float64) float64 {
	if rate <= 0 || dailyPnL <= 0 || referenceEquity <= 0 {
		return 1
	}
	return 1 + rate*dailyPnL/referenceEquity
}

// PositionSize returns equity*fraction / |entry-stop| floored to lot.
// A non-positive lot disables flooring to a lot multiple.
func PositionSize(equity, fraction, entry, stop, lot float64) (float64, domain.RejectReason) {
	dist := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stop)).Abs()
	if !dist.IsPositive() {
		return 0, domain.ReasonInvalidStop
	}

	risk := decimal.NewFromFloat(equity).Mul(decimal.NewFromFloat(fraction))
	qty := FloorToLot(risk.Div(dist), lot)
	if !qty.IsPositive() {
		return 0, domain.ReasonZeroQuantity
	}
	return qty.InexactFloat64(), domain.ReasonNone
}

// FloorToLot rounds q down to a multiple of lot.
func FloorToLot(q decimal.Decimal, lot float64) decimal.Decimal {
	if lot <= 0 {
		return q
	}
	l := decimal.NewFromFloat(lot)
	return q.Div(l).Floor().Mul(l)
}
