// Package main runs the trading decision engine:
// - Feed (continuous): indicator snapshots over websocket
// - Ticks (scheduled): reconcile → rollover → manage → evaluate/blend → gate → submit
// - HTTP: /metrics, /health, /status
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tradegate/internal/app"
	"tradegate/internal/config"
	"tradegate/internal/domain"
	"tradegate/internal/feed"
	"tradegate/internal/logger"
	"tradegate/internal/observability"
	"tradegate/internal/orchestrator"
	"tradegate/internal/position"
	"tradegate/internal/risk"
	"tradegate/internal/storage/backends"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("TRADEGATE_CONFIG"), "Path to YAML config file")
	once := flag.Bool("once", false, "Run a single tick and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log, *once); err != nil {
		log.Error().Err(err).Msg("engine stopped")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

func run(cfg *config.Config, log zerolog.Logger, once bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	storeOpts := cfg.StoreOptions()
	storeOpts.Logger = log
	stores, closeStores, err := backends.Open(ctx, storeOpts)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer closeStores()

	// Feed
	source, closeFeed, err := openFeed(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	defer closeFeed()

	reg := prometheus.NewRegistry()
	eng, err := app.Build(ctx, cfg, stores, source, reg, log)
	if err != nil {
		return err
	}
	orch, machine, book := eng.Orchestrator, eng.Machine, eng.Book

	if once {
		result, err := orch.RunTick(ctx, time.Now())
		if err != nil {
			return err
		}
		return printResult(result)
	}

	// Channel to signal completion
	done := make(chan struct{})
	defer close(done)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var sig os.Signal
		select {
		case sig = <-sigCh:
		case <-done:
			return
		}
		log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			log.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			log.Warn().Dur("timeout", shutdownTimeout).Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	if cfg.Metrics.Addr != "" {
		srv := newHTTPServer(cfg.Metrics.Addr, reg, machine, book)
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("starting http server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	log.Info().
		Strs("instruments", cfg.Engine.Instruments).
		Dur("interval", cfg.Engine.Interval).
		Str("mode", string(machine.Mode())).
		Int("open_positions", book.Count()).
		Msg("engine started")

	return orch.Run(ctx, cfg.Engine.Interval)
}

// openFeed connects the configured indicator source. The memory feed serves
// nothing until populated and is meant for dry runs.
func openFeed(ctx context.Context, cfg *config.Config, log zerolog.Logger) (app.MarkedSource, func(), error) {
	if cfg.Feed.Kind == "memory" {
		log.Warn().Msg("memory feed selected, every instrument will report a data failure")
		return feed.NewMemory(), func() {}, nil
	}

	symbols := append([]string(nil), cfg.Engine.Instruments...)
	wanted := append([]domain.Timeframe{cfg.Timeframe()}, cfg.ConfirmTimeframes()...)
	if cfg.Regime.Kind == "benchmark" {
		symbols = append(symbols, cfg.Regime.VolIndex, cfg.Regime.Benchmark)
		wanted = append(wanted, domain.Timeframe1d)
	}

	var timeframes []domain.Timeframe
	seen := make(map[domain.Timeframe]bool)
	for _, tf := range wanted {
		if !seen[tf] {
			seen[tf] = true
			timeframes = append(timeframes, tf)
		}
	}

	wsCfg := cfg.WSConfig()
	client, err := feed.NewWSClient(ctx, cfg.Feed.URL, symbols, timeframes, &wsCfg, log)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// statusResponse is the JSON body of /status.
type statusResponse struct {
	Mode          domain.RiskMode  `json:"mode"`
	State         domain.RiskState `json:"state"`
	OpenPositions int              `json:"open_positions"`
	Time          time.Time        `json:"time"`
}

func newHTTPServer(addr string, reg *prometheus.Registry, machine *risk.Machine, book *position.Book) *http.Server {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler(reg))

	// Risk status
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Mode:          machine.Mode(),
			State:         machine.State(),
			OpenPositions: book.Count(),
			Time:          time.Now().UTC(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func printResult(r *orchestrator.RunResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
