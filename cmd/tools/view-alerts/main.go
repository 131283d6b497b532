// Package main prints stored alerts, newest first.
//
// Usage:
//
//	go run ./cmd/tools/view-alerts
//	go run ./cmd/tools/view-alerts -location=Huesca -limit=20
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"caliseed/internal/app"
	"caliseed/internal/storage"
	"caliseed/internal/types"
)

func main() {
	location := flag.String("location", "", "only show alerts for this location")
	limit := flag.Int("limit", types.DefaultListLimit, "maximum number of alerts to print")
	flag.Parse()

	if err := run(*location, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(location string, limit int) error {
	if limit < 1 || limit > types.MaxListLimit {
		return fmt.Errorf("-limit must be between 1 and %d", types.MaxListLimit)
	}

	ctx, stop := app.SignalContext()
	defer stop()

	cfg, logger, err := app.Load()
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	return printAlerts(ctx, os.Stdout, store.Alerts(), types.AlertFilter{Location: location, Limit: limit})
}

// alertLister is the read side of types.AlertRepository.
type alertLister interface {
	List(ctx context.Context, f types.AlertFilter) ([]types.Alert, error)
}

func printAlerts(ctx context.Context, w io.Writer, repo alertLister, f types.AlertFilter) error {
	alerts, err := repo.List(ctx, f)
	if err != nil {
		return fmt.Errorf("listing alerts: %w", err)
	}

	if len(alerts) == 0 {
		fmt.Fprintln(w, "No alerts found.")
		return nil
	}

	fmt.Fprintf(w, "%d alert(s):\n\n", len(alerts))
	for _, a := range alerts {
		fmt.Fprintf(w, "[%s] %s (%s)\n", a.Timestamp, a.Location, a.EventType)
		fmt.Fprintf(w, "  alerts:   %s\n", strings.Join(a.DetectedAlerts, ", "))
		fmt.Fprintf(w, "  event id: %s\n\n", a.OriginalID)
	}
	return nil
}
