// Package db provides the PostgreSQL-backed event and alert stores. All
// repositories accept a DBTX interface that is satisfied by both
// *pgxpool.Pool and pgx.Tx.
package db

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"

	"caliseed/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Table names match the collection names consumers already know.
const (
	eventsTable = "seed_events"
	alertsTable = "alerts_log"
)

// dbError classifies a driver error. Errors where the server never answered
// (dial failures, timeouts, cancelled contexts, closed pools, dropped
// connections) and server-side connection or shutdown errors surface as store
// unavailable. Encode, scan and constraint errors are internal database errors.
func dbError(msg string, err error) *types.AppError {
	if isUnavailable(err) {
		return types.NewAppError(types.ErrCodeStoreUnavailable, msg, err)
	}
	return types.NewAppError(types.ErrCodeInternalDB, msg, err)
}

func isUnavailable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. Class 57P: operator intervention
		// (admin shutdown, crash shutdown, cannot connect now).
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}

	var (
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, puddle.ErrClosedPool), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.As(err, &connectErr), errors.As(err, &netErr):
		return true
	}
	return pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}
