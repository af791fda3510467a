package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tradegate/internal/domain"
)

// MarkFunc returns the latest price for an instrument.
type MarkFunc func(instrument string) (float64, bool)

// Paper is an in-process broker for dry runs and tests. Orders fill
// immediately at the mark; without a mark, cash is left unchanged.
type Paper struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]float64
	orders    map[string]string // clientOrderID -> broker order id
	marks     MarkFunc
	calls     int
	failNext  []error
}

// PaperOption configures a Paper broker.
type PaperOption func(*Paper)

// WithMarks sets the fill price source.
func WithMarks(marks MarkFunc) PaperOption {
	return func(p *Paper) {
		p.marks = marks
	}
}

// WithPositions seeds existing holdings.
func WithPositions(positions map[string]float64) PaperOption {
	return func(p *Paper) {
		for inst, qty := range positions {
			p.positions[inst] = qty
		}
	}
}

// NewPaper creates a paper broker holding cash.
func NewPaper(cash float64, opts ...PaperOption) *Paper {
	p := &Paper{
		cash:      cash,
		positions: make(map[string]float64),
		orders:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compile-time interface check.
var _ Broker = (*Paper)(nil)

// SubmitOrder fills the order unless clientOrderID was seen before.
func (p *Paper) SubmitOrder(_ context.Context, instrument string, side domain.Side, quantity float64, clientOrderID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if len(p.failNext) > 0 {
		err := p.failNext[0]
		p.failNext = p.failNext[1:]
		return "", err
	}

	if clientOrderID != "" {
		if id, ok := p.orders[clientOrderID]; ok {
			return id, nil
		}
	}
	if quantity <= 0 {
		return "", fmt.Errorf("%w: non-positive quantity %v", ErrRejected, quantity)
	}

	price, hasMark := 0.0, false
	if p.marks != nil {
		price, hasMark = p.marks(instrument)
	}

	switch side {
	case domain.SideBuy:
		if hasMark && price*quantity > p.cash {
			return "", fmt.Errorf("%w: insufficient cash for %s", ErrRejected, instrument)
		}
		p.positions[instrument] += quantity
		if hasMark {
			p.cash -= price * quantity
		}
	case domain.SideSell:
		held := p.positions[instrument]
		if quantity > held+quantityEpsilon {
			return "", fmt.Errorf("%w: sell %v exceeds holding %v of %s", ErrRejected, quantity, held, instrument)
		}
		p.positions[instrument] = held - quantity
		if hasMark {
			p.cash += price * quantity
		}
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrRejected, side)
	}

	id := uuid.NewString()
	if clientOrderID != "" {
		p.orders[clientOrderID] = id
	}
	return id, nil
}

// GetCash returns available cash.
func (p *Paper) GetCash(_ context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash, nil
}

// GetOpenPositions returns holdings, including zero-quantity leftovers of
// closed positions, like real venues do.
func (p *Paper) GetOpenPositions(_ context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]float64, len(p.positions))
	for inst, qty := range p.positions {
		out[inst] = qty
	}
	return out, nil
}

// Calls returns how many times SubmitOrder was invoked.
func (p *Paper) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// FailNext makes the next len(errs) submissions fail with errs in order.
func (p *Paper) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = append(p.failNext, errs...)
}
