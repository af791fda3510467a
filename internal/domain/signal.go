package domain

// Action is the trade direction proposed by a strategy.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// String returns the string representation of Action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks if the action is a valid value.
func (a Action) IsValid() bool {
	return a == ActionBuy || a == ActionSell || a == ActionHold
}

// Signal is a single strategy's proposal for one instrument in one cycle.
type Signal struct {
	Instrument     string
	Action         Action
	BaseConfidence float64 // [0, 1]
	EntryPrice     float64
	StopPrice      float64 // 0 for sell signals
	Volatility     float64 // ATR at signal time
	Strategy       string
	Rationale      string
}

// StopDistance returns |entry - stop|.
func (s Signal) StopDistance() float64 {
	d := s.EntryPrice - s.StopPrice
	if d < 0 {
		return -d
	}
	return d
}

// AdjustmentKind describes how an adjustment combines with base confidence.
type AdjustmentKind string

const (
	AdjustmentMultiplicative AdjustmentKind = "multiplicative"
	AdjustmentAdditive       AdjustmentKind = "additive"
)

// Adjustment is one auxiliary scorer's contribution to a signal's confidence.
type Adjustment struct {
	Name  string
	Kind  AdjustmentKind
	Value float64
}

// Neutral returns the identity adjustment for the given kind.
func Neutral(name string, kind AdjustmentKind) Adjustment {
	if kind == AdjustmentAdditive {
		return Adjustment{Name: name, Kind: kind, Value: 0}
	}
	return Adjustment{Name: name, Kind: AdjustmentMultiplicative, Value: 1}
}

// IsNeutral reports whether the adjustment leaves confidence unchanged.
func (a Adjustment) IsNeutral() bool {
	if a.Kind == AdjustmentAdditive {
		return a.Value == 0
	}
	return a.Value == 1
}

// BlendedSignal is a Signal with auxiliary adjustments applied.
type BlendedSignal struct {
	Signal
	RawConfidence   float64 // before clamping
	FinalConfidence float64 // clamped to [0, 1]
	Adjustments     []Adjustment
}
