// Package main generates the daily decision report from the journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradegate/internal/config"
	"tradegate/internal/logger"
	"tradegate/internal/reporting"
	"tradegate/internal/storage/backends"
)

func main() {
	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("TRADEGATE_CONFIG"), "Path to YAML config file")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	date := flag.String("date", "", "Trading day to report (YYYY-MM-DD, default today in the engine timezone)")
	flag.Parse()

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

	loc := cfg.Location()
	day := time.Now().In(loc)
	if *date != "" {
		day, err = time.ParseInLocation(time.DateOnly, *date, loc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -date: %v\n", err)
			os.Exit(1)
		}
	}

	storeOpts := cfg.StoreOptions()
	storeOpts.Logger = log
	stores, closeStores, err := backends.Open(ctx, storeOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer closeStores()

	gen := reporting.NewGenerator(stores.Journal, stores.RiskState, stores.Positions, loc)
	report, err := gen.Generate(ctx, day)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	stamp := day.Format(time.DateOnly)
	mdPath := filepath.Join(*outputDir, fmt.Sprintf("REPORT_%s.md", stamp))
	csvPath := filepath.Join(*outputDir, fmt.Sprintf("TRADES_%s.csv", stamp))

	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", mdPath, err)
		os.Exit(1)
	}
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Trades)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", csvPath, err)
		os.Exit(1)
	}

	fmt.Println("Report generated successfully:")
	fmt.Printf("  - %s\n", mdPath)
	fmt.Printf("  - %s\n", csvPath)
}
