// Package main replays recorded indicator snapshots through the engine
// against a paper broker and in-memory state, then prints a summary and
// writes the decision report for every replayed trading day.
// The feed section of the config is not used; set feed.kind to memory when
// no feed url is configured.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradegate/internal/app"
	"tradegate/internal/config"
	"tradegate/internal/feed"
	"tradegate/internal/logger"
	"tradegate/internal/replay"
	"tradegate/internal/reporting"
	"tradegate/internal/storage/backends"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRADEGATE_CONFIG"), "Path to YAML config file")
	input := flag.String("input", "", "Newline-delimited JSON snapshot recording")
	outputDir := flag.String("output-dir", "", "Directory for per-day reports (empty skips reports)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: --input is required")
		os.Exit(1)
	}

	ctx := context.Background()

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

	f, err := os.Open(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening input: %v\n", err)
		os.Exit(1)
	}
	snaps, err := replay.ReadSnapshots(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
	frames := replay.GroupFrames(snaps)

	// Replays never touch persisted state.
	stores, closeStores, err := backends.Open(ctx, backends.Options{Backend: backends.Memory, Logger: log})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer closeStores()

	src := feed.NewMemory()
	eng, err := app.Build(ctx, cfg, stores, src, nil, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building engine: %v\n", err)
		os.Exit(1)
	}

	sum, runErr := replay.NewRunner(src, eng.Orchestrator, log).Run(ctx, frames)
	if sum != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sum)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error during replay: %v\n", runErr)
		os.Exit(1)
	}

	if *outputDir == "" {
		return
	}
	if err := writeReports(ctx, *outputDir, cfg, stores, frames); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing reports: %v\n", err)
		os.Exit(1)
	}
}

// writeReports renders one markdown report per local trading day covered by frames.
func writeReports(ctx context.Context, dir string, cfg *config.Config, stores *backends.Stores, frames []*replay.Frame) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	loc := cfg.Location()
	gen := reporting.NewGenerator(stores.Journal, stores.RiskState, stores.Positions, loc)

	seen := make(map[string]bool)
	for _, fr := range frames {
		day := fr.Time().In(loc)
		stamp := day.Format(time.DateOnly)
		if seen[stamp] {
			continue
		}
		seen[stamp] = true

		report, err := gen.Generate(ctx, day)
		if err != nil {
			return fmt.Errorf("generate %s: %w", stamp, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("REPLAY_%s.md", stamp))
		if err := os.WriteFile(path, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
			return err
		}
		fmt.Printf("  - %s\n", path)
	}
	return nil
}
