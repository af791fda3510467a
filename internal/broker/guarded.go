package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tradegate/internal/domain"
)

// GuardOptions configures Guarded.
type GuardOptions struct {
	CallTimeout   time.Duration // per attempt
	MaxRetries    uint64        // retries after the first attempt
	RetryDelay    time.Duration // initial backoff interval
	RatePerSecond float64       // 0 disables rate limiting
	Burst         int
	Logger        zerolog.Logger
}

// DefaultGuardOptions returns one retry, a 10s call timeout and 5 calls/s.
func DefaultGuardOptions() GuardOptions {
	return GuardOptions{
		CallTimeout:   10 * time.Second,
		MaxRetries:    1,
		RetryDelay:    500 * time.Millisecond,
		RatePerSecond: 5,
		Burst:         5,
		Logger:        zerolog.Nop(),
	}
}

// Guarded bounds every call to the wrapped broker with a timeout, a single
// bounded retry on non-rejection errors and a rate limit, and filters
// zero-quantity positions.
type Guarded struct {
	next    Broker
	opts    GuardOptions
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewGuarded wraps next.
func NewGuarded(next Broker, opts GuardOptions) *Guarded {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Guarded{
		next:    next,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		log:     opts.Logger.With().Str("component", "broker").Logger(),
	}
}

// Compile-time interface check.
var _ Broker = (*Guarded)(nil)

// SubmitOrder forwards the order. Retrying is safe because the venue
// deduplicates on clientOrderID.
func (g *Guarded) SubmitOrder(ctx context.Context, instrument string, side domain.Side, quantity float64, clientOrderID string) (string, error) {
	var id string
	err := g.do(ctx, "submit order", func(ctx context.Context) error {
		var err error
		id, err = g.next.SubmitOrder(ctx, instrument, side, quantity, clientOrderID)
		return err
	})
	return id, err
}

// GetCash returns available cash.
func (g *Guarded) GetCash(ctx context.Context) (float64, error) {
	var cash float64
	err := g.do(ctx, "get cash", func(ctx context.Context) error {
		var err error
		cash, err = g.next.GetCash(ctx)
		return err
	})
	return cash, err
}

// GetOpenPositions returns non-zero holdings.
func (g *Guarded) GetOpenPositions(ctx context.Context) (map[string]float64, error) {
	var positions map[string]float64
	err := g.do(ctx, "get open positions", func(ctx context.Context) error {
		var err error
		positions, err = g.next.GetOpenPositions(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return OpenInstruments(positions), nil
}

func (g *Guarded) do(ctx context.Context, op string, fn func(context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	if g.opts.RetryDelay > 0 {
		eb.InitialInterval = g.opts.RetryDelay
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, g.opts.MaxRetries), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		callCtx := ctx
		if g.opts.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.opts.CallTimeout)
			defer cancel()
		}

		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRejected) {
			return backoff.Permanent(err)
		}
		g.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("broker call failed")
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, ErrRejected) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}
	return nil
}
