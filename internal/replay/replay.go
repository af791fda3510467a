// Package replay drives the engine over recorded indicator snapshots.
// Snapshots are grouped into frames by bar timestamp and every frame is
// run as one tick at that time, so a recording replays deterministically.
package replay

import (
	"context"
	"errors"
	"time"

	"tradegate/internal/domain"
	"tradegate/internal/orchestrator"
)

// ErrNoSnapshots is returned when the input holds no snapshots.
var ErrNoSnapshots = errors.New("no snapshots to replay")

// Frame is the set of snapshots sharing one bar timestamp.
type Frame struct {
	Timestamp int64 // Unix ms
	Snapshots []*domain.IndicatorSnapshot
}

// Time returns the frame timestamp.
func (f *Frame) Time() time.Time {
	return time.UnixMilli(f.Timestamp).UTC()
}

// Ticker runs one engine tick at a given time.
type Ticker interface {
	RunTick(ctx context.Context, now time.Time) (*orchestrator.RunResult, error)
}

// Sink receives the snapshots of a frame before its tick runs.
type Sink interface {
	Set(s *domain.IndicatorSnapshot)
}
