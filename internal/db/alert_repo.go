package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"caliseed/internal/types"
)

// AlertRepository provides append-only access to the alerts_log table.
type AlertRepository struct {
	db DBTX
}

var _ types.AlertRepository = (*AlertRepository)(nil)

// NewAlertRepository creates an AlertRepository backed by the given pool or
// transaction.
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, detected_at, location, event_type, detected_alerts, original_id`

func scanAlert(row pgx.Row) (types.Alert, error) {
	var (
		a          types.Alert
		id         int64
		detectedAt time.Time
	)
	if err := row.Scan(&id, &detectedAt, &a.Location, &a.EventType, &a.DetectedAlerts, &a.OriginalID); err != nil {
		return types.Alert{}, err
	}
	a.ID = strconv.FormatInt(id, 10)
	a.Timestamp = types.NewTimestamp(detectedAt)
	return a, nil
}

// Append inserts a and sets a.ID. An alert without labels is rejected before
// reaching the database.
func (r *AlertRepository) Append(ctx context.Context, a *types.Alert) error {
	if len(a.DetectedAlerts) == 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidEvent, "alert has no detected labels", nil)
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO alerts_log (detected_at, location, event_type, detected_alerts, original_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		a.Timestamp.UTC(), a.Location, a.EventType, a.DetectedAlerts, a.OriginalID,
	).Scan(&id)
	if err != nil {
		return dbError("failed to append alert", err)
	}

	a.ID = strconv.FormatInt(id, 10)
	return nil
}

// List returns alerts matching f, newest first.
func (r *AlertRepository) List(ctx context.Context, f types.AlertFilter) ([]types.Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM alerts_log ORDER BY detected_at DESC, id DESC LIMIT $1`, alertColumns)
	args := []any{types.EffectiveLimit(f.Limit)}
	if f.Location != "" {
		query = fmt.Sprintf(`SELECT %s FROM alerts_log WHERE location = $1 ORDER BY detected_at DESC, id DESC LIMIT $2`, alertColumns)
		args = []any{f.Location, types.EffectiveLimit(f.Limit)}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("failed to list alerts", err)
	}
	defer rows.Close()

	out := []types.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert row", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating alert rows", err)
	}
	return out, nil
}

func (r *AlertRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.db, alertsTable)
}

func (r *AlertRepository) CountByLocation(ctx context.Context) ([]types.GroupCount, error) {
	return groupCount(ctx, r.db, alertsTable, "location")
}
