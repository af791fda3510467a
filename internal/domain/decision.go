package domain

// Outcome classifies what happened to an instrument during one tick.
type Outcome string

const (
	OutcomeSubmitted Outcome = "SUBMITTED"
	OutcomeDuplicate Outcome = "DUPLICATE"
	OutcomeRejected  Outcome = "REJECTED"
	OutcomeSkipped   Outcome = "SKIPPED"
	OutcomeClosed    Outcome = "CLOSED"
	OutcomeFailed    Outcome = "FAILED"
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	return string(o)
}

// DecisionRecord is one journal line describing a per-instrument decision.
// Corresponds to decision_journal table in ClickHouse.
type DecisionRecord struct {
	Tick            int64 // tick bucket
	Instrument      string
	Outcome         Outcome
	Code            RejectReason
	Strategy        string
	Action          Action
	BaseConfidence  float64
	FinalConfidence float64
	Quantity        float64
	Price           float64
	Fingerprint     string
	BrokerOrderID   string
	RealizedPnL     float64
	RecordedAt      int64 // Unix ms
}
