// Package main inserts synthetic environmental events into the event store.
//
// Usage:
//
//	go run ./cmd/seed
//	go run ./cmd/seed -count=200 -seed=42
//
// The count and RNG seed default to SEED_COUNT and SEED_RANDOM_SEED.
package main

import (
	"flag"
	"fmt"
	"os"

	"caliseed/internal/app"
	"caliseed/internal/config"
	"caliseed/internal/generator"
	"caliseed/internal/locations"
	"caliseed/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := app.SignalContext()
	defer stop()

	cfg, logger, err := app.Load()
	if err != nil {
		return err
	}

	opts, err := parseFlags(os.Args[1:], cfg.Generator)
	if err != nil {
		return err
	}

	catalog, err := locations.Load(cfg.Weather.LocationsFile)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	gen := generator.New(catalog.Names(), opts.Seed)
	events, err := gen.Seed(ctx, store.Events(), opts.Count)
	if err != nil {
		logger.Error("seeding stopped early", "inserted", len(events), "error", err)
		return err
	}

	logger.Info("synthetic events inserted", "count", len(events))
	fmt.Printf("Inserted %d synthetic events\n", len(events))
	return nil
}

// parseFlags reads -count and -seed, defaulting to the environment values.
func parseFlags(args []string, defaults config.GeneratorConfig) (config.GeneratorConfig, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	opts := defaults
	fs.IntVar(&opts.Count, "count", defaults.Count, "number of events to insert")
	fs.Uint64Var(&opts.Seed, "seed", defaults.Seed, "RNG seed (0 picks a random seed)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Count < 1 {
		return opts, fmt.Errorf("-count must be at least 1, got %d", opts.Count)
	}
	return opts, nil
}
