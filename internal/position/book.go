// Package position keeps the open position set and derives stop, trailing
// and partial-profit exits from each cycle's price.
package position

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradegate/internal/domain"
	"tradegate/internal/idhash"
	"tradegate/internal/risk"
	"tradegate/internal/storage"
)

var (
	// ErrAlreadyOpen is returned by Open when the instrument already has a position.
	ErrAlreadyOpen = errors.New("position already open")

	// ErrStaleClose is returned by ApplyClose for an exit derived from a
	// position that has since been replaced.
	ErrStaleClose = errors.New("close targets a different position")
)

// Params configures exit management.
type Params struct {
	RewardRisk      float64 // partial target = entry + RewardRisk * (entry - stop)
	BreakevenPct    float64 // gain that activates the trailing stop
	TrailFactor     float64 // trailing distance in volatility units
	PartialFraction float64 // share of quantity closed at target
	FallbackVolPct  float64 // volatility as a fraction of entry when none was recorded
}

// DefaultParams returns the stock exit parameters.
func DefaultParams() Params {
	return Params{
		RewardRisk:      2.0,
		BreakevenPct:    0.01,
		TrailFactor:     1.5,
		PartialFraction: 0.5,
		FallbackVolPct:  0.02,
	}
}

// Book owns open positions. Every change is persisted before it is applied
// in memory.
type Book struct {
	mu          sync.Mutex
	store       storage.PositionStore
	params      Params
	instruments *risk.Instruments
	positions   map[string]*domain.Position
	log         zerolog.Logger
}

// Compile-time interface check.
var _ risk.PositionView = (*Book)(nil)

// NewBook creates an empty book. Call Load to restore persisted positions.
func NewBook(store storage.PositionStore, params Params, instruments *risk.Instruments, log zerolog.Logger) *Book {
	return &Book{
		store:       store,
		params:      params,
		instruments: instruments,
		positions:   make(map[string]*domain.Position),
		log:         log.With().Str("component", "positions").Logger(),
	}
}

// Load replaces the in-memory set with the persisted one.
func (b *Book) Load(ctx context.Context) error {
	list, err := b.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.positions = make(map[string]*domain.Position, len(list))
	for _, p := range list {
		b.positions[p.Instrument] = p
	}
	b.log.Info().Int("count", len(list)).Msg("positions loaded")
	return nil
}

// Open records a filled entry.
func (b *Book) Open(ctx context.Context, intent *domain.OrderIntent, brokerOrderID string, fillPrice float64, now time.Time) (*domain.Position, error) {
	if intent == nil || intent.Instrument == "" {
		return nil, storage.ErrInvalidInput
	}
	entry := fillPrice
	if entry <= 0 {
		entry = intent.PriceHint
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.positions[intent.Instrument]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, intent.Instrument)
	}

	p := &domain.Position{
		ID:              idhash.ComputePositionID(intent.Instrument, brokerOrderID),
		Instrument:      intent.Instrument,
		Sector:          b.instruments.SectorOf(intent.Instrument),
		EntryPrice:      entry,
		Quantity:        intent.Quantity,
		InitialQuantity: intent.Quantity,
		StopPrice:       intent.StopPrice,
		InitialStop:     intent.StopPrice,
		TargetPrice:     entry + b.params.RewardRisk*(entry-intent.StopPrice),
		Volatility:      intent.Volatility,
		Strategy:        intent.Strategy,
		EntryOrderID:    brokerOrderID,
		OpenedAt:        now.UnixMilli(),
		Trailing:        domain.TrailingState{PeakPrice: entry},
	}
	if err := b.store.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("persist position: %w", err)
	}
	b.positions[p.Instrument] = p

	b.log.Info().
		Str("instrument", p.Instrument).
		Float64("qty", p.Quantity).
		Float64("entry", p.EntryPrice).
		Float64("stop", p.StopPrice).
		Float64("target", p.TargetPrice).
		Msg("position opened")
	cp := *p
	return &cp, nil
}

// Evaluate advances the trailing stop for price and returns the exits it
// triggers. The stop never moves down. Trailing starts once the gain reaches
// BreakevenPct and stays on afterwards.
//
// The partial target is emitted on every evaluation at or above the target
// until ApplyClose records it, so a failed submission is retried next tick.
// A half that floors to zero is consumed here since nothing is sent.
// Flagged positions are skipped.
func (b *Book) Evaluate(ctx context.Context, instrument string, price float64) ([]domain.CloseIntent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.positions[instrument]
	if !ok || cur.ReviewFlag != "" || price <= 0 {
		return nil, nil
	}

	next := *cur
	if price > next.Trailing.PeakPrice {
		next.Trailing.PeakPrice = price
	}
	if !next.Trailing.Active && next.UnrealizedPct(price) >= b.params.BreakevenPct {
		next.Trailing.Active = true
	}
	if next.Trailing.Active {
		if candidate := price - b.params.TrailFactor*b.volatility(&next); candidate > next.StopPrice {
			next.StopPrice = candidate
		}
	}

	var intents []domain.CloseIntent
	switch {
	case price <= next.StopPrice:
		intents = append(intents, domain.CloseIntent{
			Instrument: instrument,
			PositionID: next.ID,
			Quantity:   next.Quantity,
			Price:      price,
			Reason:     domain.CloseReasonStop,
		})
	case price >= next.TargetPrice && !next.PartialClosed:
		half := risk.FloorToLot(
			decimal.NewFromFloat(next.Quantity).Mul(decimal.NewFromFloat(b.params.PartialFraction)),
			b.instruments.LotSize(instrument),
		)
		if !half.IsPositive() {
			next.PartialClosed = true
		} else {
			intents = append(intents, domain.CloseIntent{
				Instrument: instrument,
				PositionID: next.ID,
				Quantity:   half.InexactFloat64(),
				Price:      price,
				Reason:     domain.CloseReasonPartialTarget,
				Partial:    true,
			})
		}
	}

	if next != *cur {
		if err := b.store.Upsert(ctx, &next); err != nil {
			return nil, fmt.Errorf("persist position %s: %w", instrument, err)
		}
		if next.StopPrice > cur.StopPrice {
			b.log.Debug().
				Str("instrument", instrument).
				Float64("from", cur.StopPrice).
				Float64("to", next.StopPrice).
				Msg("trailing stop raised")
		}
		*cur = next
	}
	return intents, nil
}

// ExitAll returns a full close of the instrument's position at price.
func (b *Book) ExitAll(instrument string, price float64, reason domain.CloseReason) (domain.CloseIntent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[instrument]
	if !ok {
		return domain.CloseIntent{}, false
	}
	return domain.CloseIntent{
		Instrument: instrument,
		PositionID: p.ID,
		Quantity:   p.Quantity,
		Price:      price,
		Reason:     reason,
	}, true
}

// ApplyClose reduces or removes the position after an executed close and
// returns the realized event for the risk machine. A partial close also
// consumes the partial target.
func (b *Book) ApplyClose(ctx context.Context, ci domain.CloseIntent, exitPrice float64, now time.Time) (domain.CloseEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[ci.Instrument]
	if !ok {
		return domain.CloseEvent{}, fmt.Errorf("close %s: %w", ci.Instrument, storage.ErrNotFound)
	}
	if ci.PositionID != "" && ci.PositionID != p.ID {
		return domain.CloseEvent{}, fmt.Errorf("%w: %s exit for position %s, book holds %s",
			ErrStaleClose, ci.Instrument, ci.PositionID, p.ID)
	}
	if exitPrice <= 0 {
		exitPrice = ci.Price
	}

	qty := decimal.NewFromFloat(ci.Quantity)
	held := decimal.NewFromFloat(p.Quantity)
	if qty.GreaterThan(held) || !ci.Partial {
		qty = held
	}
	remaining := held.Sub(qty)
	pnl := decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(p.EntryPrice)).Mul(qty)

	ev := domain.CloseEvent{
		Instrument:  p.Instrument,
		Quantity:    qty.InexactFloat64(),
		EntryPrice:  p.EntryPrice,
		ExitPrice:   exitPrice,
		RealizedPnL: pnl.InexactFloat64(),
		Reason:      ci.Reason,
		Full:        !remaining.IsPositive(),
		ClosedAt:    now.UnixMilli(),
	}

	if ev.Full {
		if err := b.store.Delete(ctx, p.Instrument); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return domain.CloseEvent{}, fmt.Errorf("delete position %s: %w", p.Instrument, err)
		}
		delete(b.positions, p.Instrument)
	} else {
		next := *p
		next.Quantity = remaining.InexactFloat64()
		if ci.Partial {
			next.PartialClosed = true
		}
		if err := b.store.Upsert(ctx, &next); err != nil {
			return domain.CloseEvent{}, fmt.Errorf("persist position %s: %w", p.Instrument, err)
		}
		*p = next
	}

	b.log.Info().
		Str("instrument", ev.Instrument).
		Str("reason", string(ev.Reason)).
		Float64("qty", ev.Quantity).
		Float64("exit", ev.ExitPrice).
		Float64("pnl", ev.RealizedPnL).
		Bool("full", ev.Full).
		Msg("position closed")
	return ev, nil
}

// Flag marks a position for operator review; flagged positions are not managed.
func (b *Book) Flag(ctx context.Context, instrument, reason string) error {
	return b.setFlag(ctx, instrument, reason)
}

// ClearFlag removes a review flag.
func (b *Book) ClearFlag(ctx context.Context, instrument string) error {
	return b.setFlag(ctx, instrument, "")
}

func (b *Book) setFlag(ctx context.Context, instrument, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[instrument]
	if !ok {
		return fmt.Errorf("flag %s: %w", instrument, storage.ErrNotFound)
	}
	if p.ReviewFlag == reason {
		return nil
	}
	next := *p
	next.ReviewFlag = reason
	if err := b.store.Upsert(ctx, &next); err != nil {
		return fmt.Errorf("persist position %s: %w", instrument, err)
	}
	*p = next
	return nil
}

// Get returns a copy of the instrument's position.
func (b *Book) Get(instrument string) (domain.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[instrument]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// List returns copies of all positions ordered by instrument.
func (b *Book) List() []domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// Count returns the number of open positions.
func (b *Book) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.positions)
}

// CountSector returns the number of open positions in sector.
func (b *Book) CountSector(sector string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, p := range b.positions {
		if p.Sector == sector {
			n++
		}
	}
	return n
}

// Has reports whether the instrument has an open position.
func (b *Book) Has(instrument string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.positions[instrument]
	return ok
}

func (b *Book) volatility(p *domain.Position) float64 {
	if p.Volatility > 0 {
		return p.Volatility
	}
	return p.EntryPrice * b.params.FallbackVolPct
}
