// Package core provides the HTTP chassis for the CALI + SEED query API.
// It builds a chi router, applies the cross-cutting middleware (panic
// recovery, request IDs, logging, CORS, metrics and compression) and
// leaves endpoint registration to the handler packages.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caliseed/internal/config"
	"caliseed/internal/metrics"
	"caliseed/internal/types"
)

// RouteRegistrar mounts a group of endpoints on the router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the API dependencies so tests can inject an in-memory
// store and a private metrics registry.
type Server struct {
	Config  *config.Config
	Store   types.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// HealthProbes are run by GET /health. NewServer registers the store.
	HealthProbes []HealthProbe

	// RouteRegistrars are applied by MountRoutes. Populated by cmd/api so
	// that core does not import the handler packages.
	RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer validates the required dependencies and prepares an empty
// router. Call MountRoutes after adding registrars.
func NewServer(cfg *config.Config, store types.Store, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:       cfg,
		Store:        store,
		Logger:       logger,
		HealthProbes: []HealthProbe{StoreProbe{Store: store}},
		router:       chi.NewRouter(),
	}, nil
}

// Handler returns the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe serves on cfg.Server.Port until ctx is cancelled, then
// drains in-flight requests within ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(s.Logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return s.Shutdown(shutdownCtx)
}

// Shutdown closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	if err := s.Store.Close(); err != nil {
		s.Logger.Error("error closing store", "error", err)
		return fmt.Errorf("closing store: %w", err)
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
