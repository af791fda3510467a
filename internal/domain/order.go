package domain

// Side is the order direction sent to the broker.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// OrderIntent is an admitted order, sized and fingerprinted but not yet submitted.
type OrderIntent struct {
	Instrument  string
	Side        Side
	Quantity    float64
	PriceHint   float64
	StopPrice   float64
	Volatility  float64 // volatility measure at entry, used for trailing
	Strategy    string
	Bucket      int64  // tick bucket the intent belongs to
	Fingerprint string // deterministic idempotency key
}

// IdempotencyRecord is a durable entry in the order ledger.
// Append-only: a fingerprint is written once and never updated.
type IdempotencyRecord struct {
	Fingerprint   string // PRIMARY KEY
	Instrument    string
	Side          Side
	Quantity      float64
	Bucket        int64
	BrokerOrderID string
	SubmittedAt   int64 // Unix ms
}
