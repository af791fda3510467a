// Package broker defines the broker capability consumed by the engine and
// provides a paper broker and a guarding wrapper for real adapters.
package broker

import (
	"context"
	"errors"
	"math"

	"tradegate/internal/domain"
)

var (
	// ErrRejected is returned when the broker refuses an order. Not retried.
	ErrRejected = errors.New("broker rejected order")

	// ErrTransient marks a failure that may succeed on retry.
	ErrTransient = errors.New("broker transient failure")
)

// Broker is the execution venue.
// SubmitOrder must honour clientOrderID: a repeated id returns the original
// broker order id and never produces a second fill.
type Broker interface {
	SubmitOrder(ctx context.Context, instrument string, side domain.Side, quantity float64, clientOrderID string) (string, error)
	GetCash(ctx context.Context) (float64, error)
	GetOpenPositions(ctx context.Context) (map[string]float64, error)
}

// quantityEpsilon is below any tradable lot.
const quantityEpsilon = 1e-9

// OpenInstruments drops zero-quantity entries some venues report for
// recently closed positions.
func OpenInstruments(positions map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(positions))
	for inst, qty := range positions {
		if math.Abs(qty) <= quantityEpsilon {
			continue
		}
		out[inst] = qty
	}
	return out
}
