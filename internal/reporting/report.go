package reporting

import (
	"time"

	"tradegate/internal/domain"
)

// Report represents one trading day of engine activity.
type Report struct {
	// Metadata
	Date        string // YYYY-MM-DD in the trading timezone
	GeneratedAt time.Time

	// Day summary
	Summary Summary

	// Risk state at generation time; nil when no state store was given.
	Risk *RiskSection

	// Decision counts (sorted by outcome, code)
	Outcomes []OutcomeRow

	// Per-strategy activity (sorted by strategy)
	Strategies []StrategyRow

	// Orders and closes in journal order
	Trades []TradeRow

	// Positions open at generation time (sorted by instrument)
	OpenPositions []domain.Position
}

// Summary contains day totals.
type Summary struct {
	Ticks       int
	Decisions   int
	Submitted   int
	Duplicates  int
	Rejected    int
	Skipped     int
	Failed      int
	Closes      int
	Wins        int
	Losses      int
	WinRate     float64 // wins / closes
	RealizedPnL float64
}

// RiskSection mirrors the persisted risk state.
type RiskSection struct {
	Mode              domain.RiskMode
	DailyPnL          float64
	DailyTradeCount   int
	ConsecutiveWins   int
	ConsecutiveLosses int
	BreakerTripped    bool
	ReferenceEquity   float64
}

// OutcomeRow counts decisions with one outcome and code.
type OutcomeRow struct {
	Outcome domain.Outcome
	Code    domain.RejectReason
	Count   int
}

// StrategyRow aggregates decisions attributed to one strategy.
type StrategyRow struct {
	Strategy       string
	Signals        int
	Submitted      int
	Closes         int
	RealizedPnL    float64
	MeanConfidence float64 // mean final confidence over signals
}

// TradeRow is one submitted order or applied close.
type TradeRow struct {
	RecordedAt    int64 // Unix ms
	Instrument    string
	Outcome       domain.Outcome
	Code          domain.RejectReason
	Strategy      string
	Action        domain.Action
	Quantity      float64
	Price         float64
	RealizedPnL   float64
	BrokerOrderID string
}
