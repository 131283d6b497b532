package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"caliseed/internal/config"
	"caliseed/internal/types"
)

// Store is the PostgreSQL implementation of types.Store.
type Store struct {
	pool   *pgxpool.Pool
	events *EventRepository
	alerts *AlertRepository
}

var _ types.Store = (*Store)(nil)

// NewPool builds a connection pool from cfg and verifies connectivity.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("db: parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, dbError("failed to create database pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, dbError("failed to ping database", err)
	}
	return pool, nil
}

// Open connects to PostgreSQL, applies migrations when cfg.AutoMigrate is set
// and returns a Store owning the pool.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return NewStore(pool), nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		events: NewEventRepository(pool),
		alerts: NewAlertRepository(pool),
	}
}

func (s *Store) Events() types.EventRepository { return s.events }
func (s *Store) Alerts() types.AlertRepository { return s.alerts }

// Ping runs a trivial query so a dead server is caught even when the pool has
// idle connections.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return dbError("database ping failed", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
