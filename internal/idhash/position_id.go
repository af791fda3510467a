package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position_id using SHA256.
// Formula: SHA256(instrument|entry_order_id)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(instrument, entryOrderID string) string {
	data := fmt.Sprintf("%s|%s", instrument, entryOrderID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
