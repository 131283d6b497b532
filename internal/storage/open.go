// Package storage selects and opens the configured types.Store backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"caliseed/internal/config"
	"caliseed/internal/db"
	"caliseed/internal/docstore"
	"caliseed/internal/memstore"
	"caliseed/internal/types"
)

// Open connects to the backend named by cfg.Store.Backend. Connection
// failures come back as ErrCodeStoreUnavailable so callers can exit or
// degrade without inspecting driver errors.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (types.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		s, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to store", "backend", cfg.Store.Backend, "auto_migrate", cfg.Database.AutoMigrate)
		return s, nil

	case config.BackendFirestore:
		s, err := docstore.Open(ctx, cfg.Firestore)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to store",
			"backend", cfg.Store.Backend,
			"project_id", cfg.Firestore.ProjectID,
			"events_collection", cfg.Firestore.EventsCollection,
		)
		return s, nil

	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), nil
	}
	return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
		fmt.Sprintf("unknown store backend %q", cfg.Store.Backend), nil)
}
