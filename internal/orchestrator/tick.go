package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tradegate/internal/domain"
	"tradegate/internal/idhash"
	"tradegate/internal/ledger"
	"tradegate/internal/risk"
	"tradegate/internal/storage"
)

// candidate is the outcome of evaluating and blending one instrument.
type candidate struct {
	instrument string
	code       domain.RejectReason // set when no signal survived
	snapshot   *domain.IndicatorSnapshot
	blended    *domain.BlendedSignal
}

// managePositions advances trailing stops and executes the exits they trigger.
func (o *Orchestrator) managePositions(ctx, submitCtx context.Context, held map[string]float64, now time.Time, result *RunResult) error {
	for _, p := range o.book.List() {
		if p.ReviewFlag != "" {
			continue
		}
		snap, err := o.fetch(ctx, p.Instrument)
		if err != nil {
			o.log.Warn().Err(err).
				Str("instrument", p.Instrument).
				Str("code", string(domain.ReasonDataFailure)).
				Msg("no price for open position")
			result.fail("price %s: %v", p.Instrument, err)
			continue
		}

		intents, err := o.book.Evaluate(ctx, p.Instrument, snap.Close)
		if err != nil {
			if errors.Is(err, storage.ErrCorruptState) {
				return err
			}
			result.fail("evaluate %s: %v", p.Instrument, err)
			continue
		}
		for _, ci := range intents {
			if err := o.close(submitCtx, ci, p.Strategy, held, now, result); err != nil {
				return err
			}
		}
	}
	return nil
}

// evaluate fetches, selects and blends every instrument in parallel.
// Results keep universe order.
func (o *Orchestrator) evaluate(ctx context.Context) []candidate {
	out := make([]candidate, len(o.instruments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, inst := range o.instruments {
		g.Go(func() error {
			out[i] = o.evaluateOne(gctx, inst)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) evaluateOne(ctx context.Context, instrument string) candidate {
	c := candidate{instrument: instrument}

	snap, err := o.fetch(ctx, instrument)
	if err != nil {
		o.log.Warn().Err(err).
			Str("instrument", instrument).
			Str("code", string(domain.ReasonDataFailure)).
			Msg("indicator fetch failed")
		c.code = domain.ReasonDataFailure
		return c
	}
	c.snapshot = snap

	sig := o.registry.Select(snap)
	if sig == nil {
		o.log.Debug().Str("instrument", instrument).Msg("no strategy fired")
		c.code = domain.ReasonNoSignal
		return c
	}
	sig.Instrument = instrument

	b := o.blender.Blend(ctx, *sig)
	c.blended = &b
	if !o.blender.Passes(b) {
		o.log.Info().
			Str("instrument", instrument).
			Str("code", string(domain.ReasonBelowThreshold)).
			Str("strategy", sig.Strategy).
			Float64("base", sig.BaseConfidence).
			Float64("final", b.FinalConfidence).
			Msg("signal below threshold")
		c.code = domain.ReasonBelowThreshold
	}
	return c
}

func (o *Orchestrator) fetch(ctx context.Context, instrument string) (*domain.IndicatorSnapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	snap, err := o.source.Fetch(fctx, instrument, o.timeframe)
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.Close <= 0 {
		return nil, fmt.Errorf("%s: empty snapshot", instrument)
	}
	return snap, nil
}

// decide routes one candidate: exits for sells on held positions, the gate
// for everything else. Only storage.ErrCorruptState is returned.
func (o *Orchestrator) decide(ctx context.Context, c candidate, held map[string]float64, equity, regimeMult float64, now time.Time, result *RunResult) error {
	rec := o.newRecord(c, result.Bucket, now)

	if c.blended == nil || c.code != domain.ReasonNone {
		if c.blended != nil {
			result.Signals++
			o.metrics.RecordSignal(c.blended.Strategy)
		}
		rec.Outcome = domain.OutcomeSkipped
		rec.Code = c.code
		result.reject(c.code)
		o.record(ctx, rec, result)
		return nil
	}

	sig := c.blended.Signal
	result.Signals++
	o.metrics.RecordSignal(sig.Strategy)

	if pos, open := o.book.Get(c.instrument); open {
		if pos.ReviewFlag != "" {
			rec.Outcome = domain.OutcomeSkipped
			rec.Code = domain.ReasonUnderReview
			result.reject(rec.Code)
			o.record(ctx, rec, result)
			return nil
		}
		if sig.Action == domain.ActionSell {
			ci, ok := o.book.ExitAll(c.instrument, sig.EntryPrice, domain.CloseReasonSignalExit)
			if !ok {
				return nil
			}
			return o.close(ctx, ci, sig.Strategy, held, now, result)
		}
	}

	intent, reason := o.gate.Admit(risk.GateInput{
		Blended: *c.blended,
		Equity:  equity,
		Regime:  regimeMult,
		Bucket:  result.Bucket,
	})
	if intent == nil {
		o.log.Info().
			Str("instrument", c.instrument).
			Str("code", string(reason)).
			Str("strategy", sig.Strategy).
			Float64("confidence", c.blended.FinalConfidence).
			Msg("signal rejected")
		rec.Outcome = domain.OutcomeRejected
		rec.Code = reason
		result.reject(reason)
		o.record(ctx, rec, result)
		return nil
	}
	rec.Quantity = intent.Quantity
	rec.Fingerprint = intent.Fingerprint

	// The broker holds a position the book does not know. Only our own
	// recorded order for this intent may be adopted; anything else is external.
	if _, external := held[c.instrument]; external {
		seen, err := o.ledger.Seen(ctx, intent.Fingerprint)
		if errors.Is(err, storage.ErrCorruptState) {
			return err
		}
		if !seen {
			o.log.Warn().
				Str("instrument", c.instrument).
				Str("code", string(domain.ReasonExternalHold)).
				Msg("broker holds an untracked position, entry skipped")
			rec.Outcome = domain.OutcomeSkipped
			rec.Code = domain.ReasonExternalHold
			result.reject(rec.Code)
			o.record(ctx, rec, result)
			return nil
		}
	}
	result.Admitted++

	res, err := o.submit(ctx, intent)
	if err != nil {
		if errors.Is(err, storage.ErrCorruptState) {
			return err
		}
		o.log.Error().Err(err).
			Str("instrument", c.instrument).
			Str("code", string(domain.ReasonBrokerFailure)).
			Msg("entry submission failed")
		rec.Outcome = domain.OutcomeFailed
		rec.Code = domain.ReasonBrokerFailure
		result.fail("submit %s: %v", c.instrument, err)
		o.record(ctx, rec, result)
		return nil
	}
	rec.BrokerOrderID = res.BrokerOrderID
	rec.Outcome = domain.OutcomeSubmitted
	if res.Duplicate {
		rec.Outcome = domain.OutcomeDuplicate
		result.Duplicates++
	} else {
		result.Submitted++
	}
	o.metrics.RecordOrder(res.Duplicate)

	// A duplicate whose position is missing was acknowledged before a crash;
	// adopt it so the book matches the broker.
	if !o.book.Has(c.instrument) {
		if _, err := o.book.Open(ctx, intent, res.BrokerOrderID, intent.PriceHint, now); err != nil {
			result.fail("open %s: %v", c.instrument, err)
			o.log.Error().Err(err).Str("instrument", c.instrument).Msg("order filled but position not recorded")
		} else if !res.Duplicate {
			if err := o.machine.RecordTrade(ctx, now); err != nil {
				result.fail("record trade: %v", err)
			}
		}
	}

	o.record(ctx, rec, result)
	return nil
}

// close submits a sell for ci through the ledger and applies it to the book
// and the risk machine. A full close drops the instrument from held.
//
// Exit fingerprints carry the position id and close reason, so a duplicate
// here is this very exit acknowledged earlier but never applied (a crash
// between submit and book update). It is applied now and counted.
func (o *Orchestrator) close(ctx context.Context, ci domain.CloseIntent, strategyName string, held map[string]float64, now time.Time, result *RunResult) error {
	bucket := result.Bucket
	intent := &domain.OrderIntent{
		Instrument:  ci.Instrument,
		Side:        domain.SideSell,
		Quantity:    ci.Quantity,
		PriceHint:   ci.Price,
		Strategy:    strategyName,
		Bucket:      bucket,
		Fingerprint: idhash.ComputeExitFingerprint(ci.PositionID, ci.Reason, ci.Quantity, bucket),
	}
	rec := &domain.DecisionRecord{
		Tick:        bucket,
		Instrument:  ci.Instrument,
		Strategy:    strategyName,
		Action:      domain.ActionSell,
		Quantity:    ci.Quantity,
		Price:       ci.Price,
		Fingerprint: intent.Fingerprint,
		Code:        domain.RejectReason(ci.Reason),
		RecordedAt:  now.UnixMilli(),
	}

	res, err := o.submit(ctx, intent)
	if err != nil {
		if errors.Is(err, storage.ErrCorruptState) {
			return err
		}
		o.log.Error().Err(err).
			Str("instrument", ci.Instrument).
			Str("reason", string(ci.Reason)).
			Str("code", string(domain.ReasonBrokerFailure)).
			Msg("exit submission failed")
		rec.Outcome = domain.OutcomeFailed
		result.fail("close %s: %v", ci.Instrument, err)
		o.record(ctx, rec, result)
		return nil
	}
	o.metrics.RecordOrder(res.Duplicate)
	rec.BrokerOrderID = res.BrokerOrderID
	if res.Duplicate {
		result.Duplicates++
		o.log.Warn().
			Str("instrument", ci.Instrument).
			Str("reason", string(ci.Reason)).
			Str("broker_order_id", res.BrokerOrderID).
			Msg("exit already acknowledged, applying to book")
	}

	ev, err := o.book.ApplyClose(ctx, ci, ci.Price, now)
	if err != nil {
		if errors.Is(err, storage.ErrCorruptState) {
			return err
		}
		rec.Outcome = domain.OutcomeFailed
		result.fail("apply close %s: %v", ci.Instrument, err)
		o.record(ctx, rec, result)
		return nil
	}
	if err := o.machine.OnClose(ctx, ev); err != nil {
		result.fail("risk close %s: %v", ci.Instrument, err)
		o.log.Error().Err(err).Str("instrument", ci.Instrument).Msg("close not applied to risk state")
	}

	if ev.Full {
		delete(held, ci.Instrument)
	}
	result.Closes++
	o.metrics.RecordClose(ci.Reason)
	rec.Outcome = domain.OutcomeClosed
	rec.Quantity = ev.Quantity
	rec.RealizedPnL = ev.RealizedPnL
	o.record(ctx, rec, result)
	return nil
}

func (o *Orchestrator) submit(ctx context.Context, intent *domain.OrderIntent) (ledger.SubmitResult, error) {
	sctx, cancel := context.WithTimeout(ctx, o.submitTimeout)
	defer cancel()
	return o.ledger.Submit(sctx, intent)
}

func (o *Orchestrator) newRecord(c candidate, bucket int64, now time.Time) *domain.DecisionRecord {
	rec := &domain.DecisionRecord{
		Tick:       bucket,
		Instrument: c.instrument,
		RecordedAt: now.UnixMilli(),
	}
	if c.snapshot != nil {
		rec.Price = c.snapshot.Close
	}
	if b := c.blended; b != nil {
		rec.Strategy = b.Strategy
		rec.Action = b.Action
		rec.BaseConfidence = b.BaseConfidence
		rec.FinalConfidence = b.FinalConfidence
		rec.Price = b.EntryPrice
	}
	return rec
}

// record journals a decision. Journal failures never fail the tick.
func (o *Orchestrator) record(ctx context.Context, rec *domain.DecisionRecord, result *RunResult) {
	o.metrics.RecordDecision(rec.Outcome, rec.Code)
	if o.journal == nil {
		return
	}
	if err := o.journal.Insert(ctx, rec); err != nil {
		o.log.Warn().Err(err).Str("instrument", rec.Instrument).Msg("journal write failed")
		result.fail("journal %s: %v", rec.Instrument, err)
	}
}
