// Package main is the entry point for the CALI + SEED query API.
//
// It loads configuration, opens the configured store, mounts the query and
// info handlers on the core chassis and serves HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"caliseed/internal/api/handlers"
	"caliseed/internal/app"
	"caliseed/internal/config"
	"caliseed/internal/core"
	"caliseed/internal/metrics"
	"caliseed/internal/storage"
	"caliseed/internal/types"
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
	logger.Info("caliseed API starting",
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"store_backend", cfg.Store.Backend,
	)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout*2)
	store, err := storage.Open(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	srv, err := newServer(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return err
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newServer builds the chassis with metrics, the info and query handlers
// and all routes mounted.
func newServer(cfg *config.Config, store types.Store, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, store, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metrics.New()

	validator := core.NewValidator()
	srv.RouteRegistrars = append(srv.RouteRegistrars,
		handlers.NewInfoHandler(store, cfg.Build, logger).RegisterRoutes,
		handlers.NewQueryHandler(store, validator, logger).RegisterRoutes,
	)
	srv.MountRoutes()
	return srv, nil
}
