// Package main is the operator tool for the persisted risk state.
// Run it while the engine is stopped; the engine reads state only at startup.
//
// Usage:
//
//	breaker [-config path] status
//	breaker [-config path] -operator name reset
//	breaker [-config path] clear-review [instrument...]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"tradegate/internal/config"
	"tradegate/internal/domain"
	"tradegate/internal/logger"
	"tradegate/internal/position"
	"tradegate/internal/risk"
	"tradegate/internal/storage/backends"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRADEGATE_CONFIG"), "Path to YAML config file")
	operator := flag.String("operator", os.Getenv("USER"), "Operator name recorded with a breaker reset")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] status|reset|clear-review [instrument...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

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

	if err := run(context.Background(), cfg, log, *operator, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// status is printed by every command.
type status struct {
	Mode      domain.RiskMode   `json:"mode"`
	State     domain.RiskState  `json:"state"`
	Positions []domain.Position `json:"positions"`
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, operator, cmd string, args []string) error {
	storeOpts := cfg.StoreOptions()
	storeOpts.Logger = log
	stores, closeStores, err := backends.Open(ctx, storeOpts)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer closeStores()

	machine := risk.NewMachine(stores.RiskState, cfg.RiskParams(), log)
	if err := machine.Load(ctx); err != nil {
		return err
	}
	book := position.NewBook(stores.Positions, cfg.PositionParams(), cfg.Instruments(), log)
	if err := book.Load(ctx); err != nil {
		return err
	}

	switch cmd {
	case "status":
	case "reset":
		if operator == "" {
			return errors.New("-operator is required for reset")
		}
		if err := machine.ResetBreaker(ctx, operator, time.Now()); err != nil {
			return fmt.Errorf("reset breaker: %w", err)
		}
	case "clear-review":
		if err := clearReview(ctx, book, args); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	out := status{
		Mode:      machine.Mode(),
		State:     machine.State(),
		Positions: book.List(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// clearReview clears review flags on the named instruments, or on every
// flagged position when none are named.
func clearReview(ctx context.Context, book *position.Book, instruments []string) error {
	if len(instruments) == 0 {
		for _, p := range book.List() {
			if p.ReviewFlag != "" {
				instruments = append(instruments, p.Instrument)
			}
		}
	}
	for _, inst := range instruments {
		if err := book.ClearFlag(ctx, inst); err != nil {
			return fmt.Errorf("clear review %s: %w", inst, err)
		}
	}
	return nil
}
