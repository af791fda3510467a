package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tradegate/internal/domain"
	"tradegate/internal/orchestrator"
	"tradegate/internal/storage"
)

// Summary aggregates the tick results of a replay.
type Summary struct {
	Frames     int
	Ticks      int
	Skipped    int // ticks that returned a transient error
	Signals    int
	Submitted  int
	Duplicates int
	Closes     int
	Flagged    int
	Rejected   map[domain.RejectReason]int
	Errors     []string
	FinalMode  domain.RiskMode
}

// Runner feeds frames into a sink and ticks the engine after each one.
type Runner struct {
	sink   Sink
	ticker Ticker
	log    zerolog.Logger
}

// NewRunner creates a new replay runner.
func NewRunner(sink Sink, ticker Ticker, log zerolog.Logger) *Runner {
	return &Runner{
		sink:   sink,
		ticker: ticker,
		log:    log.With().Str("component", "replay").Logger(),
	}
}

// Run replays frames in order. A tick failing with storage.ErrCorruptState
// stops the replay; other tick errors are counted and the replay continues,
// as the live loop would retry on its next tick.
func (r *Runner) Run(ctx context.Context, frames []*Frame) (*Summary, error) {
	if len(frames) == 0 {
		return nil, ErrNoSnapshots
	}

	sum := &Summary{Rejected: make(map[domain.RejectReason]int)}
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Frames++
		for _, s := range f.Snapshots {
			r.sink.Set(s)
		}

		res, err := r.ticker.RunTick(ctx, f.Time())
		if err != nil {
			if errors.Is(err, storage.ErrCorruptState) {
				return sum, fmt.Errorf("frame %d: %w", f.Timestamp, err)
			}
			sum.Skipped++
			sum.Errors = append(sum.Errors, fmt.Sprintf("frame %d: %v", f.Timestamp, err))
			r.log.Warn().Err(err).Int64("frame", f.Timestamp).Msg("tick skipped")
			continue
		}
		sum.add(res)
	}

	r.log.Info().
		Int("frames", sum.Frames).
		Int("submitted", sum.Submitted).
		Int("closes", sum.Closes).
		Str("mode", string(sum.FinalMode)).
		Msg("replay completed")
	return sum, nil
}

func (s *Summary) add(res *orchestrator.RunResult) {
	s.Ticks++
	s.Signals += res.Signals
	s.Submitted += res.Submitted
	s.Duplicates += res.Duplicates
	s.Closes += res.Closes
	s.Flagged += res.Flagged
	for code, n := range res.Rejected {
		s.Rejected[code] += n
	}
	s.Errors = append(s.Errors, res.Errors...)
	s.FinalMode = res.Mode
}
