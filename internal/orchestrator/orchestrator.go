// Package orchestrator drives the per-tick decision cycle.
// It coordinates: reconcile → rollover → manage positions → evaluate/blend → gate → submit → journal
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradegate/internal/blend"
	"tradegate/internal/broker"
	"tradegate/internal/domain"
	"tradegate/internal/feed"
	"tradegate/internal/idhash"
	"tradegate/internal/ledger"
	"tradegate/internal/observability"
	"tradegate/internal/position"
	"tradegate/internal/regime"
	"tradegate/internal/risk"
	"tradegate/internal/storage"
	"tradegate/internal/strategy"
)

const (
	defaultWorkers       = 4
	defaultCallTimeout   = 10 * time.Second
	defaultSubmitTimeout = 30 * time.Second
	reviewAbsentAtBroker = "absent at broker"
)

// Orchestrator coordinates one decision tick at a time.
type Orchestrator struct {
	mu sync.Mutex

	instruments []string
	timeframe   domain.Timeframe
	bucket      time.Duration
	workers     int

	callTimeout   time.Duration
	submitTimeout time.Duration

	source   feed.IndicatorSource
	registry *strategy.Registry
	blender  *blend.Blender
	regime   regime.Classifier
	machine  *risk.Machine
	gate     *risk.Gate
	ledger   *ledger.Ledger
	book     *position.Book
	broker   broker.Broker
	journal  storage.DecisionJournal
	metrics  *observability.Metrics
	log      zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Universe
	Instruments    []string
	Timeframe      domain.Timeframe
	BucketInterval time.Duration // idempotency bucket width
	Workers        int           // parallel evaluate/blend workers

	// Timeouts
	CallTimeout   time.Duration // per data fetch
	SubmitTimeout time.Duration // per gated submission, detached from shutdown

	// Components
	Source   feed.IndicatorSource
	Registry *strategy.Registry
	Blender  *blend.Blender
	Regime   regime.Classifier
	Machine  *risk.Machine
	Gate     *risk.Gate
	Ledger   *ledger.Ledger
	Book     *position.Book
	Broker   broker.Broker

	// Optional
	Journal storage.DecisionJournal
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Timeframe == "" {
		opts.Timeframe = domain.Timeframe1h
	}
	if opts.BucketInterval <= 0 {
		opts.BucketInterval = 5 * time.Minute
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}
	if opts.Regime == nil {
		opts.Regime = regime.Static(1)
	}
	return &Orchestrator{
		instruments:   opts.Instruments,
		timeframe:     opts.Timeframe,
		bucket:        opts.BucketInterval,
		workers:       opts.Workers,
		callTimeout:   opts.CallTimeout,
		submitTimeout: opts.SubmitTimeout,
		source:        opts.Source,
		registry:      opts.Registry,
		blender:       opts.Blender,
		regime:        opts.Regime,
		machine:       opts.Machine,
		gate:          opts.Gate,
		ledger:        opts.Ledger,
		book:          opts.Book,
		broker:        opts.Broker,
		journal:       opts.Journal,
		metrics:       opts.Metrics,
		log:           opts.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// RunResult contains results from one tick.
type RunResult struct {
	Bucket      int64
	Mode        domain.RiskMode
	Instruments int
	Signals     int
	Admitted    int
	Submitted   int
	Duplicates  int
	Closes      int
	Flagged     int
	Rejected    map[domain.RejectReason]int
	Errors      []string
}

func (r *RunResult) reject(code domain.RejectReason) {
	if r.Rejected == nil {
		r.Rejected = make(map[domain.RejectReason]int)
	}
	r.Rejected[code]++
}

func (r *RunResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Run ticks every interval until ctx is done. Tick failures are logged and
// retried on the next tick, except storage.ErrCorruptState which stops the loop.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := o.RunTick(ctx, time.Now()); err != nil {
			if errors.Is(err, storage.ErrCorruptState) {
				return fmt.Errorf("halting: %w", err)
			}
			if ctx.Err() == nil {
				o.log.Warn().Err(err).Msg("tick skipped")
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunTick executes one full cycle. Ticks never overlap.
// Phases:
//  1. Reconcile ledger positions with the broker
//  2. Roll the risk day over with current equity
//  3. Manage open positions (trailing stops, partial targets)
//  4. Evaluate and blend every instrument in parallel
//  5. Route exits and gate entries serially
func (o *Orchestrator) RunTick(ctx context.Context, now time.Time) (*RunResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	started := time.Now()
	result, err := o.runTick(ctx, now)

	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordTick(status, time.Since(started).Seconds(), time.Now().Unix())
	o.metrics.SetRiskState(o.machine.Mode(), o.machine.State(), o.book.Count())
	return result, err
}

func (o *Orchestrator) runTick(ctx context.Context, now time.Time) (*RunResult, error) {
	result := &RunResult{
		Bucket:      idhash.TickBucket(now, o.bucket),
		Instruments: len(o.instruments),
	}
	tlog := o.log.With().Int64("bucket", result.Bucket).Logger()

	// Phase 1: Reconcile
	held, err := o.reconcile(ctx, result)
	if err != nil {
		return result, fmt.Errorf("phase 1 (reconcile) failed: %w", err)
	}

	// Phase 2: Rollover
	equity, err := o.broker.GetCash(ctx)
	if err != nil {
		return result, fmt.Errorf("phase 2 (equity) failed: %w", err)
	}
	if _, err := o.machine.Rollover(ctx, now, equity); err != nil {
		return result, fmt.Errorf("phase 2 (rollover) failed: %w", err)
	}

	// Submissions from here on survive shutdown, each bounded by submitTimeout.
	submitCtx := context.WithoutCancel(ctx)

	// Phase 3: Manage open positions
	if err := o.managePositions(ctx, submitCtx, held, now, result); err != nil {
		return result, fmt.Errorf("phase 3 (positions) failed: %w", err)
	}

	// Phase 4: Evaluate + blend
	candidates := o.evaluate(ctx)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	// Phase 5: Gate + submit
	multiplier, err := o.regime.Multiplier(ctx)
	if err != nil || multiplier <= 0 {
		tlog.Warn().Err(err).Msg("regime unavailable, using neutral multiplier")
		multiplier = 1
	}
	for _, c := range candidates {
		if err := o.decide(submitCtx, c, held, equity, multiplier, now, result); err != nil {
			return result, err
		}
	}

	result.Mode = o.machine.Mode()
	tlog.Info().
		Str("mode", string(result.Mode)).
		Int("signals", result.Signals).
		Int("submitted", result.Submitted).
		Int("duplicates", result.Duplicates).
		Int("closes", result.Closes).
		Int("errors", len(result.Errors)).
		Msg("tick completed")
	return result, nil
}

// reconcile flags book positions the broker no longer holds and returns
// the broker's non-zero holdings.
func (o *Orchestrator) reconcile(ctx context.Context, result *RunResult) (map[string]float64, error) {
	raw, err := o.broker.GetOpenPositions(ctx)
	if err != nil {
		return nil, err
	}
	held := broker.OpenInstruments(raw)

	for _, p := range o.book.List() {
		if p.ReviewFlag != "" {
			continue
		}
		if _, ok := held[p.Instrument]; ok {
			continue
		}
		if err := o.book.Flag(ctx, p.Instrument, reviewAbsentAtBroker); err != nil {
			if errors.Is(err, storage.ErrCorruptState) {
				return nil, err
			}
			result.fail("flag %s: %v", p.Instrument, err)
			continue
		}
		result.Flagged++
		o.log.Warn().
			Str("instrument", p.Instrument).
			Str("code", string(domain.ReasonUnderReview)).
			Msg("position absent at broker, flagged for review")
	}
	return held, nil
}
