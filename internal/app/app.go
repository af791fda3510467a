// Package app assembles the engine components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tradegate/internal/blend"
	"tradegate/internal/broker"
	"tradegate/internal/config"
	"tradegate/internal/feed"
	"tradegate/internal/ledger"
	"tradegate/internal/observability"
	"tradegate/internal/orchestrator"
	"tradegate/internal/position"
	"tradegate/internal/regime"
	"tradegate/internal/risk"
	"tradegate/internal/storage"
	"tradegate/internal/storage/backends"
	"tradegate/internal/strategy"
)

// MarkedSource is an indicator source that also reports last prices.
// The paper broker values holdings with it.
type MarkedSource interface {
	feed.IndicatorSource
	Mark(instrument string) (float64, bool)
}

// Engine holds the assembled components.
type Engine struct {
	Orchestrator *orchestrator.Orchestrator
	Machine      *risk.Machine
	Book         *position.Book
	Broker       *broker.Paper
	Metrics      *observability.Metrics
}

// Build loads persisted state and wires every component. A corrupt risk or
// position store is returned as storage.ErrCorruptState.
func Build(ctx context.Context, cfg *config.Config, stores *backends.Stores, source MarkedSource, reg prometheus.Registerer, log zerolog.Logger) (*Engine, error) {
	instruments := cfg.Instruments()

	machine := risk.NewMachine(stores.RiskState, cfg.RiskParams(), log)
	if err := machine.Load(ctx); err != nil {
		if errors.Is(err, storage.ErrCorruptState) {
			return nil, fmt.Errorf("risk state is corrupt, refusing to trade: %w", err)
		}
		return nil, err
	}
	book := position.NewBook(stores.Positions, cfg.PositionParams(), instruments, log)
	if err := book.Load(ctx); err != nil {
		return nil, err
	}
	gate := risk.NewGate(machine, book, instruments, cfg.Limits())

	paper := broker.NewPaper(cfg.Broker.PaperCash, broker.WithMarks(source.Mark))
	brk := broker.NewGuarded(paper, cfg.GuardOptions())

	registry := strategy.Default()
	if len(cfg.Strategy.Names) > 0 {
		var err error
		registry, err = strategy.FromConfig(cfg.Strategy.Names)
		if err != nil {
			return nil, err
		}
	}
	blender := blend.New(blend.Options{
		Threshold:     cfg.Blend.Threshold,
		ScorerTimeout: cfg.Blend.ScorerTimeout,
		Logger:        log,
	},
		blend.NewTimeframeScorer(source, cfg.ConfirmTimeframes()),
		blend.NewVolatilityScorer(cfg.Blend.VolLowPct, cfg.Blend.VolHighPct),
	)

	var classifier regime.Classifier = regime.Static(cfg.Regime.Multiplier)
	if cfg.Regime.Kind == "benchmark" {
		classifier = regime.NewBenchmark(source, cfg.Regime.VolIndex, cfg.Regime.Benchmark, log)
	}

	var metrics *observability.Metrics
	if reg != nil {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace, reg)
	}

	orch := orchestrator.New(orchestrator.Options{
		Instruments:    cfg.Engine.Instruments,
		Timeframe:      cfg.Timeframe(),
		BucketInterval: cfg.BucketInterval(),
		Workers:        cfg.Engine.Workers,
		CallTimeout:    cfg.Engine.CallTimeout,
		Source:         source,
		Registry:       registry,
		Blender:        blender,
		Regime:         classifier,
		Machine:        machine,
		Gate:           gate,
		Ledger:         ledger.New(stores.Idempotency, brk, log),
		Book:           book,
		Broker:         brk,
		Journal:        stores.Journal,
		Metrics:        metrics,
		Logger:         log,
	})

	return &Engine{
		Orchestrator: orch,
		Machine:      machine,
		Book:         book,
		Broker:       paper,
		Metrics:      metrics,
	}, nil
}
