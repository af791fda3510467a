package domain

// RiskMode is the derived state of the risk machine.
type RiskMode string

const (
	RiskModeNormal    RiskMode = "NORMAL"
	RiskModeDefensive RiskMode = "DEFENSIVE"
	RiskModeLockedOut RiskMode = "LOCKED_OUT"
)

// String returns the string representation of RiskMode.
func (m RiskMode) String() string {
	return string(m)
}

// RiskState is the persisted state of the risk machine.
type RiskState struct {
	ConsecutiveWins   int
	ConsecutiveLosses int
	DailyPnL          float64
	DailyTradeCount   int
	BreakerTripped    bool
	BreakerTrippedAt  int64 // Unix ms, 0 if not tripped
	BaseRiskFraction  float64
	ReferenceEquity   float64 // equity at the start of the trading day
	LastResetDate     string  // YYYY-MM-DD in the trading timezone
	UpdatedAt         int64   // Unix ms
}

// RejectReason is the code attached to a gate rejection or skipped decision.
type RejectReason string

const (
	ReasonNone           RejectReason = ""
	ReasonLockedOut      RejectReason = "LOCKED_OUT"
	ReasonNotBuy         RejectReason = "NOT_BUY"
	ReasonGlobalCap      RejectReason = "GLOBAL_CAP"
	ReasonSectorCap      RejectReason = "SECTOR_CAP"
	ReasonAlreadyOpen    RejectReason = "ALREADY_OPEN"
	ReasonDailyTradeCap  RejectReason = "DAILY_TRADE_CAP"
	ReasonInvalidStop    RejectReason = "INVALID_STOP"
	ReasonZeroQuantity   RejectReason = "ZERO_QUANTITY"
	ReasonBelowMinOrder  RejectReason = "BELOW_MIN_ORDER"
	ReasonBelowThreshold RejectReason = "BELOW_THRESHOLD"
	ReasonNoSignal       RejectReason = "NO_SIGNAL"
	ReasonDataFailure    RejectReason = "DATA_FAILURE"
	ReasonExternalHold   RejectReason = "EXTERNAL_POSITION"
	ReasonUnderReview    RejectReason = "UNDER_REVIEW"
	ReasonBrokerFailure  RejectReason = "BROKER_FAILURE"
)

// String returns the string representation of RejectReason.
func (r RejectReason) String() string {
	return string(r)
}
