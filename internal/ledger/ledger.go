// Package ledger makes order submission idempotent: an intent whose
// fingerprint is already recorded is never sent to the broker again.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tradegate/internal/broker"
	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// SubmitResult describes the outcome of Submit.
type SubmitResult struct {
	BrokerOrderID string
	Duplicate     bool // true when the fingerprint was already recorded
}

// Ledger wraps a broker with a durable fingerprint ledger.
type Ledger struct {
	store  storage.IdempotencyStore
	broker broker.Broker
	now    func() time.Time
	log    zerolog.Logger
}

// New creates a ledger.
func New(store storage.IdempotencyStore, b broker.Broker, log zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		broker: b,
		now:    time.Now,
		log:    log.With().Str("component", "ledger").Logger(),
	}
}

// Submit sends the intent at most once per fingerprint.
//
// The record is written only after the broker acknowledges. A crash between
// acknowledgement and write leaves no record; the retried submission reuses
// the fingerprint as client order id, so the broker returns the original order.
func (l *Ledger) Submit(ctx context.Context, intent *domain.OrderIntent) (SubmitResult, error) {
	if intent == nil || intent.Fingerprint == "" {
		return SubmitResult{}, storage.ErrInvalidInput
	}

	existing, err := l.store.GetByFingerprint(ctx, intent.Fingerprint)
	switch {
	case err == nil:
		l.log.Info().
			Str("instrument", intent.Instrument).
			Str("fingerprint", intent.Fingerprint).
			Str("broker_order_id", existing.BrokerOrderID).
			Msg("duplicate intent, returning recorded order")
		return SubmitResult{BrokerOrderID: existing.BrokerOrderID, Duplicate: true}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return SubmitResult{}, fmt.Errorf("lookup fingerprint: %w", err)
	}

	orderID, err := l.broker.SubmitOrder(ctx, intent.Instrument, intent.Side, intent.Quantity, intent.Fingerprint)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit %s %s: %w", intent.Side, intent.Instrument, err)
	}

	rec := &domain.IdempotencyRecord{
		Fingerprint:   intent.Fingerprint,
		Instrument:    intent.Instrument,
		Side:          intent.Side,
		Quantity:      intent.Quantity,
		Bucket:        intent.Bucket,
		BrokerOrderID: orderID,
		SubmittedAt:   l.now().UnixMilli(),
	}
	if err := l.store.Insert(ctx, rec); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			l.log.Error().Err(err).
				Str("instrument", intent.Instrument).
				Str("fingerprint", intent.Fingerprint).
				Str("broker_order_id", orderID).
				Msg("order acknowledged but not recorded")
			return SubmitResult{BrokerOrderID: orderID}, fmt.Errorf("record fingerprint: %w", err)
		}
		// Another writer recorded the same fingerprint first.
		winner, gerr := l.store.GetByFingerprint(ctx, intent.Fingerprint)
		if gerr != nil {
			return SubmitResult{BrokerOrderID: orderID}, fmt.Errorf("re-read fingerprint: %w", gerr)
		}
		return SubmitResult{BrokerOrderID: winner.BrokerOrderID, Duplicate: true}, nil
	}

	return SubmitResult{BrokerOrderID: orderID}, nil
}

// Seen reports whether a fingerprint is already recorded.
func (l *Ledger) Seen(ctx context.Context, fingerprint string) (bool, error) {
	_, err := l.store.GetByFingerprint(ctx, fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
