package storage

import "errors"

var (
	// ErrNotFound: no record for the key, or no state persisted yet.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned by the idempotency ledger when the
	// fingerprint is already recorded. Ledger entries are never overwritten.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput rejects nil records and empty keys.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorruptState is returned when persisted state cannot be decoded.
	// Callers must not continue trading on top of it.
	ErrCorruptState = errors.New("corrupt persisted state")
)
