// Package feed supplies indicator snapshots to the engine.
package feed

import (
	"context"
	"errors"
	"strings"

	"tradegate/internal/domain"
)

var (
	// ErrNoData is returned when no snapshot exists for the key.
	ErrNoData = errors.New("no indicator data")

	// ErrStale is returned when the cached snapshot is older than allowed.
	ErrStale = errors.New("indicator data stale")
)

// IndicatorSource fetches the latest snapshot for an instrument and timeframe.
// Failures are transient: the engine treats them as no signal this cycle.
type IndicatorSource interface {
	Fetch(ctx context.Context, instrument string, tf domain.Timeframe) (*domain.IndicatorSnapshot, error)
}

type key struct {
	instrument string
	timeframe  domain.Timeframe
}

func keyOf(instrument string, tf domain.Timeframe) key {
	return key{instrument: strings.ToUpper(instrument), timeframe: tf}
}
