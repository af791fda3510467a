package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradegate/internal/domain"
)

// ComputeOrderFingerprint computes a deterministic idempotency key for an order.
// Formula: SHA256(instrument|side|quantity|bucket)
// Quantity is rendered as a canonical decimal string so 1.50 and 1.5 hash equally.
// Returns hex-encoded hash (64 characters).
func ComputeOrderFingerprint(instrument string, side domain.Side, quantity float64, bucket int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		instrument,
		string(side),
		CanonicalQuantity(quantity),
		bucket,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeExitFingerprint computes the idempotency key for a position exit.
// Formula: SHA256(position_id|sell|reason|quantity|bucket)
// Exits of one position within a bucket differ by reason, so a partial
// target and a later stop or signal exit never collapse into one order.
func ComputeExitFingerprint(positionID string, reason domain.CloseReason, quantity float64, bucket int64) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		positionID,
		string(domain.SideSell),
		string(reason),
		CanonicalQuantity(quantity),
		bucket,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// CanonicalQuantity renders a quantity with trailing zeros stripped.
func CanonicalQuantity(quantity float64) string {
	return decimal.NewFromFloat(quantity).Round(8).String()
}

// TickBucket returns the start of the tick window containing t, in Unix seconds.
// Two submissions within the same window share a bucket.
func TickBucket(t time.Time, interval time.Duration) int64 {
	secs := int64(interval / time.Second)
	if secs <= 0 {
		secs = 1
	}
	unix := t.Unix()
	return unix - unix%secs
}
