package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/blend"
	"tradegate/internal/broker"
	"tradegate/internal/domain"
	"tradegate/internal/feed"
	"tradegate/internal/ledger"
	"tradegate/internal/position"
	"tradegate/internal/risk"
	"tradegate/internal/storage"
	"tradegate/internal/storage/memory"
	"tradegate/internal/strategy"
)

// fixedEvaluator fires on every snapshot with a stop two volatility units below the close.
type fixedEvaluator struct {
	action     domain.Action
	confidence float64
}

func (e *fixedEvaluator) Name() string { return "fixed" }

func (e *fixedEvaluator) Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal {
	sig := &domain.Signal{
		Instrument:     snap.Instrument,
		Action:         e.action,
		BaseConfidence: e.confidence,
		EntryPrice:     snap.Close,
		Volatility:     snap.ATR,
		Strategy:       e.Name(),
	}
	if e.action == domain.ActionBuy {
		sig.StopPrice = snap.Close - 2*snap.ATR
	}
	return sig
}

type fixture struct {
	src       *feed.Memory
	paper     *broker.Paper
	eval      *fixedEvaluator
	riskStore *memory.RiskStateStore
	posStore  *memory.PositionStore
	idem      storage.IdempotencyStore
	journal   *memory.DecisionJournal
	machine   *risk.Machine
	book      *position.Book
	orch      *Orchestrator
}

type fixtureOption func(*fixture)

func withPaper(p *broker.Paper) fixtureOption {
	return func(f *fixture) { f.paper = p }
}

func withIdempotency(s storage.IdempotencyStore) fixtureOption {
	return func(f *fixture) { f.idem = s }
}

func withRiskStore(s *memory.RiskStateStore) fixtureOption {
	return func(f *fixture) { f.riskStore = s }
}

func withPositionStore(s *memory.PositionStore) fixtureOption {
	return func(f *fixture) { f.posStore = s }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		src:       feed.NewMemory(),
		eval:      &fixedEvaluator{action: domain.ActionBuy, confidence: 0.8},
		riskStore: memory.NewRiskStateStore(),
		posStore:  memory.NewPositionStore(),
		idem:      memory.NewIdempotencyStore(),
		journal:   memory.NewDecisionJournal(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.paper == nil {
		f.paper = broker.NewPaper(5000, broker.WithMarks(f.src.Mark))
	}

	log := zerolog.Nop()
	instruments := risk.NewInstruments(map[string][]string{"TECH": {"AAPL", "MSFT"}}, 0.1, nil)

	f.book = position.NewBook(f.posStore, position.DefaultParams(), instruments, log)
	require.NoError(t, f.book.Load(ctx))

	f.machine = risk.NewMachine(f.riskStore, risk.DefaultParams(), log)
	require.NoError(t, f.machine.Load(ctx))

	f.orch = New(Options{
		Instruments:    []string{"AAPL"},
		Timeframe:      domain.Timeframe1h,
		BucketInterval: 5 * time.Minute,
		Source:         f.src,
		Registry:       strategy.NewRegistry(f.eval),
		Blender:        blend.New(blend.Options{Logger: log}),
		Machine:        f.machine,
		Gate:           risk.NewGate(f.machine, f.book, instruments, risk.DefaultLimits()),
		Ledger:         ledger.New(f.idem, f.paper, log),
		Book:           f.book,
		Broker:         f.paper,
		Journal:        f.journal,
		Logger:         log,
	})
	f.setPrice("AAPL", 20)
	return f
}

func (f *fixture) setPrice(instrument string, price float64) {
	f.src.Set(&domain.IndicatorSnapshot{
		Instrument: instrument,
		Timeframe:  domain.Timeframe1h,
		Timestamp:  time.Now().UnixMilli(),
		Close:      price,
		FastMA:     price,
		SlowMA:     price,
		ATR:        2,
	})
}

func (f *fixture) decisions(t *testing.T) []*domain.DecisionRecord {
	t.Helper()
	recs, err := f.journal.GetByTimeRange(context.Background(), 0, 1<<62)
	require.NoError(t, err)
	return recs
}

var tickTime = time.Date(2024, 3, 4, 14, 31, 0, 0, time.UTC)

func TestRunTick_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Equity 5000, base risk 0.10, stop 4 below entry -> 500 / 4 = 125.
	result, err := f.orch.RunTick(ctx, tickTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Signals)
	assert.Equal(t, 1, result.Admitted)
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 1, f.paper.Calls())

	pos, ok := f.book.Get("AAPL")
	require.True(t, ok)
	assert.InDelta(t, 125, pos.Quantity, 1e-9)
	assert.InDelta(t, 16, pos.StopPrice, 1e-9)
	assert.InDelta(t, 28, pos.TargetPrice, 1e-9)
	assert.Equal(t, "TECH", pos.Sector)
	assert.Equal(t, 1, f.machine.State().DailyTradeCount)
	assert.InDelta(t, 5000, f.machine.State().ReferenceEquity, 1e-9)

	recs := f.decisions(t)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.OutcomeSubmitted, recs[0].Outcome)
	assert.InDelta(t, 125, recs[0].Quantity, 1e-9)
	assert.NotEmpty(t, recs[0].BrokerOrderID)

	// Same bucket, same signal: no additional broker call.
	result, err = f.orch.RunTick(ctx, tickTime.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Submitted)
	assert.Equal(t, 1, result.Rejected[domain.ReasonAlreadyOpen])
	assert.Equal(t, 1, f.paper.Calls())
}

func TestRunTick_RestartAdoptsRecordedOrder(t *testing.T) {
	ctx := context.Background()
	paper := broker.NewPaper(5000)
	idem := memory.NewIdempotencyStore()
	riskStore := memory.NewRiskStateStore()

	first := newFixture(t, withPaper(paper), withIdempotency(idem), withRiskStore(riskStore))
	_, err := first.orch.RunTick(ctx, tickTime)
	require.NoError(t, err)
	require.Equal(t, 1, paper.Calls())
	orderID := first.decisions(t)[0].BrokerOrderID

	// Positions lost between acknowledgement and book write.
	second := newFixture(t, withPaper(paper), withIdempotency(idem), withRiskStore(riskStore))
	result, err := second.orch.RunTick(ctx, tickTime.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 0, result.Submitted)
	assert.Equal(t, 1, paper.Calls())

	pos, ok := second.book.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, orderID, pos.EntryOrderID)
}

func TestRunTick_ExternalPositionSkipped(t *testing.T) {
	paper := broker.NewPaper(5000, broker.WithPositions(map[string]float64{"AAPL": 10}))
	f := newFixture(t, withPaper(paper))

	result, err := f.orch.RunTick(context.Background(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rejected[domain.ReasonExternalHold])
	assert.Equal(t, 0, paper.Calls())
	assert.False(t, f.book.Has("AAPL"))
}

func TestRunTick_FlagsPositionAbsentAtBroker(t *testing.T) {
	ctx := context.Background()
	posStore := memory.NewPositionStore()
	require.NoError(t, posStore.Upsert(ctx, &domain.Position{
		ID:         "p1",
		Instrument: "AAPL",
		EntryPrice: 20,
		Quantity:   10,
		StopPrice:  16,
	}))

	f := newFixture(t, withPositionStore(posStore))
	result, err := f.orch.RunTick(ctx, tickTime)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Flagged)
	assert.Equal(t, 1, result.Rejected[domain.ReasonUnderReview])
	assert.Equal(t, 0, f.paper.Calls())

	pos, ok := f.book.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, reviewAbsentAtBroker, pos.ReviewFlag)
	// Flagged positions still count toward caps.
	assert.Equal(t, 1, f.book.Count())
}

func TestRunTick_StopLossTripsBreaker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orch.RunTick(ctx, tickTime)
	require.NoError(t, err)

	f.setPrice("AAPL", 15)
	result, err := f.orch.RunTick(ctx, tickTime.Add(5*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Closes)
	assert.False(t, f.book.Has("AAPL"))
	assert.Equal(t, 2, f.paper.Calls())

	// (15 - 20) * 125 = -625 breaches 5% of 5000.
	st := f.machine.State()
	assert.InDelta(t, -625, st.DailyPnL, 1e-9)
	assert.True(t, st.BreakerTripped)
	assert.Equal(t, domain.RiskModeLockedOut, result.Mode)
	assert.Equal(t, 1, result.Rejected[domain.ReasonLockedOut])

	var closed *domain.DecisionRecord
	for _, r := range f.decisions(t) {
		if r.Outcome == domain.OutcomeClosed {
			closed = r
		}
	}
	require.NotNil(t, closed)
	assert.InDelta(t, -625, closed.RealizedPnL, 1e-9)
	assert.Equal(t, domain.RejectReason(domain.CloseReasonStop), closed.Code)
}

func TestRunTick_PartialTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orch.RunTick(ctx, tickTime)
	require.NoError(t, err)

	f.setPrice("AAPL", 29)
	result, err := f.orch.RunTick(ctx, tickTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Closes)

	pos, ok := f.book.Get("AAPL")
	require.True(t, ok)
	assert.True(t, pos.PartialClosed)
	assert.InDelta(t, 62.5, pos.Quantity, 1e-9)
	assert.InDelta(t, 26, pos.StopPrice, 1e-9)

	st := f.machine.State()
	assert.Equal(t, 1, st.ConsecutiveWins)
	assert.InDelta(t, 562.5, st.DailyPnL, 1e-9)

	// Still above target: the partial does not fire twice.
	result, err = f.orch.RunTick(ctx, tickTime.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Closes)
}

func TestRunTick_TwoExitsOfOnePositionReachTheBroker(t *testing.T) {
	tests := []struct {
		name        string
		action      domain.Action // evaluator output on the partial-target tick
		followPrice float64       // non-zero runs another tick in the same bucket
		wantPnL     float64
	}{
		{
			name:    "sell signal on the partial target tick",
			action:  domain.ActionSell,
			wantPnL: (29 - 20) * 125,
		},
		{
			name:        "stop on the remaining half later in the bucket",
			action:      domain.ActionBuy,
			followPrice: 25.5,
			wantPnL:     (29-20)*62.5 + (25.5-20)*62.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)

			_, err := f.orch.RunTick(ctx, tickTime)
			require.NoError(t, err)

			closes, duplicates := 0, 0
			f.eval.action = tt.action
			f.setPrice("AAPL", 29)
			result, err := f.orch.RunTick(ctx, tickTime.Add(5*time.Minute))
			require.NoError(t, err)
			closes += result.Closes
			duplicates += result.Duplicates

			if tt.followPrice > 0 {
				f.eval.confidence = 0.3
				f.setPrice("AAPL", tt.followPrice)
				result, err = f.orch.RunTick(ctx, tickTime.Add(6*time.Minute))
				require.NoError(t, err)
				closes += result.Closes
				duplicates += result.Duplicates
			}

			assert.Equal(t, 2, closes)
			assert.Zero(t, duplicates)
			assert.Equal(t, 3, f.paper.Calls(), "entry plus two exits")
			assert.False(t, f.book.Has("AAPL"))

			held, err := f.paper.GetOpenPositions(ctx)
			require.NoError(t, err)
			assert.InDelta(t, 0, held["AAPL"], 1e-9, "broker sold everything the book closed")
			assert.InDelta(t, tt.wantPnL, f.machine.State().DailyPnL, 1e-9)

			fingerprints := map[string]bool{}
			for _, r := range f.decisions(t) {
				if r.Outcome == domain.OutcomeClosed {
					fingerprints[r.Fingerprint] = true
				}
			}
			assert.Len(t, fingerprints, 2)
		})
	}
}

func TestRunTick_FailedExitRetriedNextTick(t *testing.T) {
	tests := []struct {
		name       string
		price      float64
		wantReason domain.CloseReason
		wantQty    float64 // remaining after the retry
	}{
		{name: "partial target", price: 29, wantReason: domain.CloseReasonPartialTarget, wantQty: 62.5},
		{name: "stop", price: 15, wantReason: domain.CloseReasonStop, wantQty: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)

			_, err := f.orch.RunTick(ctx, tickTime)
			require.NoError(t, err)

			f.setPrice("AAPL", tt.price)
			f.paper.FailNext(errors.New("503 service unavailable"))
			result, err := f.orch.RunTick(ctx, tickTime.Add(5*time.Minute))
			require.NoError(t, err)
			assert.Zero(t, result.Closes)
			assert.Len(t, result.Errors, 1)

			pos, ok := f.book.Get("AAPL")
			require.True(t, ok)
			assert.InDelta(t, 125, pos.Quantity, 1e-9)
			assert.False(t, pos.PartialClosed)

			var failed *domain.DecisionRecord
			for _, r := range f.decisions(t) {
				if r.Outcome == domain.OutcomeFailed {
					failed = r
				}
			}
			require.NotNil(t, failed)
			assert.Equal(t, domain.RejectReason(tt.wantReason), failed.Code)

			// Same bucket: the failed exit left no ledger record.
			result, err = f.orch.RunTick(ctx, tickTime.Add(6*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 1, result.Closes)
			assert.Zero(t, result.Duplicates)

			pos, ok = f.book.Get("AAPL")
			if tt.wantQty == 0 {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.InDelta(t, tt.wantQty, pos.Quantity, 1e-9)
			assert.True(t, pos.PartialClosed)
		})
	}
}

func TestRunTick_SellSignalExits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orch.RunTick(ctx, tickTime)
	require.NoError(t, err)

	f.eval.action = domain.ActionSell
	f.setPrice("AAPL", 21)
	result, err := f.orch.RunTick(ctx, tickTime.Add(5*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Closes)
	assert.False(t, f.book.Has("AAPL"))
	assert.InDelta(t, 125, f.machine.State().DailyPnL, 1e-9)

	// Without a position a sell is not an entry.
	result, err = f.orch.RunTick(ctx, tickTime.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rejected[domain.ReasonNotBuy])
}

func TestRunTick_SkipReasons(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		want  domain.RejectReason
	}{
		{
			name:  "below threshold",
			setup: func(f *fixture) { f.eval.confidence = 0.3 },
			want:  domain.ReasonBelowThreshold,
		},
		{
			name: "data failure",
			setup: func(f *fixture) {
				f.src.Fail("AAPL", domain.Timeframe1h, errors.New("feed down"))
			},
			want: domain.ReasonDataFailure,
		},
		{
			name:  "no signal",
			setup: func(f *fixture) { f.src.Set(&domain.IndicatorSnapshot{Instrument: "AAPL", Timeframe: domain.Timeframe1h, Close: 20}) },
			want:  domain.ReasonNoSignal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			result, err := f.orch.RunTick(context.Background(), tickTime)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Rejected[tt.want])
			assert.Equal(t, 0, f.paper.Calls())

			recs := f.decisions(t)
			require.Len(t, recs, 1)
			assert.Equal(t, domain.OutcomeSkipped, recs[0].Outcome)
			assert.Equal(t, tt.want, recs[0].Code)
		})
	}
}

func TestRunTick_BrokerFailureKeepsRunning(t *testing.T) {
	f := newFixture(t)
	f.paper.FailNext(errors.New("connection reset"))

	result, err := f.orch.RunTick(context.Background(), tickTime)
	require.NoError(t, err)
	assert.Len(t, result.Errors, 1)
	assert.False(t, f.book.Has("AAPL"))

	recs := f.decisions(t)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.OutcomeFailed, recs[0].Outcome)
	assert.Equal(t, domain.ReasonBrokerFailure, recs[0].Code)

	// Next bucket retries with a fresh fingerprint.
	result, err = f.orch.RunTick(context.Background(), tickTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Submitted)
}

// corruptStore fails every lookup as undecodable.
type corruptStore struct{}

func (corruptStore) Insert(context.Context, *domain.IdempotencyRecord) error { return nil }

func (corruptStore) GetByFingerprint(context.Context, string) (*domain.IdempotencyRecord, error) {
	return nil, storage.ErrCorruptState
}

func TestRun_HaltsOnCorruptState(t *testing.T) {
	f := newFixture(t, withIdempotency(corruptStore{}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := f.orch.Run(ctx, time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrCorruptState)
	assert.Equal(t, 0, f.paper.Calls())
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, 1, f.paper.Calls())
}
