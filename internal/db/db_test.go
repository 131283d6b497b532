package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"caliseed/internal/types"
)

// dialRefused is what the driver surfaces when nothing listens on the port.
var dialRefused error = &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}

func TestDBError_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"dial failure", dialRefused, types.ErrCodeStoreUnavailable},
		{"deadline", context.DeadlineExceeded, types.ErrCodeStoreUnavailable},
		{"cancelled", fmt.Errorf("query: %w", context.Canceled), types.ErrCodeStoreUnavailable},
		{"closed pool", puddle.ErrClosedPool, types.ErrCodeStoreUnavailable},
		{"dropped connection", io.ErrUnexpectedEOF, types.ErrCodeStoreUnavailable},
		{"connection exception", &pgconn.PgError{Code: "08006"}, types.ErrCodeStoreUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, types.ErrCodeStoreUnavailable},
		{"wrapped shutdown", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "57P03"}), types.ErrCodeStoreUnavailable},
		{"unique violation", &pgconn.PgError{Code: "23505"}, types.ErrCodeInternalDB},
		{"syntax error", &pgconn.PgError{Code: "42601"}, types.ErrCodeInternalDB},
		{"scan failure", errors.New("can't scan into dest[0]: cannot scan text (OID 25) into *int64"), types.ErrCodeInternalDB},
		{"encode failure", errors.New("failed to encode args[3]: unable to encode 1.5 into binary format for int8"), types.ErrCodeInternalDB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dbError("op", tt.err)
			assert.Equal(t, tt.want, got.Code)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMigrate_AppliesEmbeddedScripts(t *testing.T) {
	db := new(mockDBTX)
	var scripts []string
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) { scripts = append(scripts, args.String(1)) }).
		Return(pgconn.NewCommandTag("CREATE INDEX"), nil)

	require.NoError(t, Migrate(context.Background(), db))

	require.NotEmpty(t, scripts)
	all := strings.Join(scripts, "\n")
	assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS seed_events")
	assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS alerts_log")
}

func TestMigrate_FailureIsReported(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "42501", Message: "permission denied for schema public"})

	err := Migrate(context.Background(), db)

	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeInternalDB))
	assert.Contains(t, err.Error(), "0001_init.sql")
}
