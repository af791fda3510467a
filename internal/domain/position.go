package domain

// TrailingState tracks the trailing stop of an open position.
type TrailingState struct {
	Active    bool
	PeakPrice float64
}

// Position is an open holding in a single instrument.
type Position struct {
	ID              string
	Instrument      string
	Sector          string // empty if unmapped
	EntryPrice      float64
	Quantity        float64
	InitialQuantity float64
	StopPrice       float64
	InitialStop     float64
	TargetPrice     float64 // partial profit level
	Volatility      float64
	Strategy        string
	EntryOrderID    string
	OpenedAt        int64 // Unix ms
	Trailing        TrailingState
	PartialClosed   bool
	ReviewFlag      string // non-empty while awaiting operator review
}

// UnrealizedPct returns the gain of price over entry as a fraction.
func (p *Position) UnrealizedPct(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// CloseReason explains why a position (or part of it) is being closed.
type CloseReason string

const (
	CloseReasonStop          CloseReason = "STOP"
	CloseReasonPartialTarget CloseReason = "PARTIAL_TARGET"
	CloseReasonSignalExit    CloseReason = "SIGNAL_EXIT"
)

// String returns the string representation of CloseReason.
func (r CloseReason) String() string {
	return string(r)
}

// CloseIntent asks for a position reduction at the given reference price.
type CloseIntent struct {
	Instrument string
	PositionID string // position the exit was derived from
	Quantity   float64
	Price      float64
	Reason     CloseReason
	Partial    bool
}

// CloseEvent is the realized outcome of a close, fed to the risk machine.
type CloseEvent struct {
	Instrument  string
	Quantity    float64
	EntryPrice  float64
	ExitPrice   float64
	RealizedPnL float64
	Reason      CloseReason
	Full        bool
	ClosedAt    int64 // Unix ms
}
