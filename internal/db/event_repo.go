package db

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"caliseed/internal/types"
)

// DefaultScanPageSize is the number of rows fetched per round trip by All.
const DefaultScanPageSize = 500

// EventRepository provides data access for the seed_events table.
type EventRepository struct {
	db       DBTX
	pageSize int
}

var _ types.EventRepository = (*EventRepository)(nil)

// NewEventRepository creates an EventRepository backed by the given pool or
// transaction.
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db, pageSize: DefaultScanPageSize}
}

// eventColumns is the column order scanEvent expects.
const eventColumns = `id, observed_at, location, event_type,
	soil_moisture, temperature_c, humidity_percent, rainfall_mm, wind_speed_kmh,
	hail_detected, flood_risk_level, animal_alert,
	alert_triggered, source, observation`

func scanEvent(row pgx.Row) (types.Event, int64, error) {
	var (
		e           types.Event
		id          int64
		observedAt  time.Time
		floodLevel  *string
		observation []byte
	)
	err := row.Scan(
		&id, &observedAt, &e.Location, &e.EventType,
		&e.SoilMoisture, &e.TemperatureC, &e.HumidityPct, &e.RainfallMM, &e.WindSpeedKmh,
		&e.HailDetected, &floodLevel, &e.AnimalAlert,
		&e.AlertTriggered, &e.Source, &observation,
	)
	if err != nil {
		return types.Event{}, 0, err
	}

	e.ID = strconv.FormatInt(id, 10)
	e.Timestamp = types.NewTimestamp(observedAt)
	if floodLevel != nil {
		e.FloodRiskLevel = types.FloodRisk(types.FloodRiskLevel(*floodLevel))
	}
	if len(observation) > 0 {
		var od types.ObservationDetails
		if err := json.Unmarshal(observation, &od); err != nil {
			return types.Event{}, 0, fmt.Errorf("decode observation: %w", err)
		}
		e.Observation = &od
	}
	return e, id, nil
}

// Insert writes e and sets e.ID from the generated identity.
func (r *EventRepository) Insert(ctx context.Context, e *types.Event) error {
	var floodLevel *string
	if e.FloodRiskLevel != nil {
		s := string(*e.FloodRiskLevel)
		floodLevel = &s
	}
	var observation any
	if e.Observation != nil {
		data, err := json.Marshal(e.Observation)
		if err != nil {
			return types.NewAppError(types.ErrCodeValidationInvalidEvent, "failed to encode observation", err)
		}
		observation = data
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO seed_events (
			observed_at, location, event_type,
			soil_moisture, temperature_c, humidity_percent, rainfall_mm, wind_speed_kmh,
			hail_detected, flood_risk_level, animal_alert,
			alert_triggered, source, observation
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		e.Timestamp.UTC(), e.Location, e.EventType,
		e.SoilMoisture, e.TemperatureC, e.HumidityPct, e.RainfallMM, e.WindSpeedKmh,
		e.HailDetected, floodLevel, e.AnimalAlert,
		e.AlertTriggered, e.Source, observation,
	).Scan(&id)
	if err != nil {
		return dbError("failed to insert event", err)
	}

	e.ID = strconv.FormatInt(id, 10)
	return nil
}

// All yields every event in id order. Rows are read in keyset pages so no
// connection is held while the consumer works on a yielded event.
func (r *EventRepository) All(ctx context.Context) iter.Seq2[types.Event, error] {
	return func(yield func(types.Event, error) bool) {
		var after int64
		for {
			page, lastID, err := r.page(ctx, after)
			if err != nil {
				yield(types.Event{}, err)
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < r.pageSize {
				return
			}
			after = lastID
		}
	}
}

func (r *EventRepository) page(ctx context.Context, after int64) ([]types.Event, int64, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM seed_events WHERE id > $1 ORDER BY id LIMIT $2`, eventColumns),
		after, r.pageSize,
	)
	if err != nil {
		return nil, 0, dbError("failed to read events", err)
	}
	defer rows.Close()

	var (
		out    []types.Event
		lastID int64
	)
	for rows.Next() {
		e, id, err := scanEvent(rows)
		if err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan event row", err)
		}
		out = append(out, e)
		lastID = id
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbError("error iterating event rows", err)
	}
	return out, lastID, nil
}

// List returns events matching f, newest first.
func (r *EventRepository) List(ctx context.Context, f types.EventFilter) ([]types.Event, error) {
	var (
		conditions []string
		args       []any
	)
	argIdx := 1

	if f.Location != "" {
		conditions = append(conditions, fmt.Sprintf("location = $%d", argIdx))
		args = append(args, f.Location)
		argIdx++
	}
	if f.EventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argIdx))
		args = append(args, f.EventType)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT %s FROM seed_events %s ORDER BY observed_at DESC, id DESC LIMIT $%d`,
		eventColumns, where, argIdx,
	)
	args = append(args, types.EffectiveLimit(f.Limit))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("failed to list events", err)
	}
	defer rows.Close()

	out := []types.Event{}
	for rows.Next() {
		e, _, err := scanEvent(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan event row", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating event rows", err)
	}
	return out, nil
}

func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.db, eventsTable)
}

func (r *EventRepository) CountByLocation(ctx context.Context) ([]types.GroupCount, error) {
	return groupCount(ctx, r.db, eventsTable, "location")
}

func (r *EventRepository) CountByType(ctx context.Context) ([]types.GroupCount, error) {
	return groupCount(ctx, r.db, eventsTable, "event_type")
}

// DistinctLocations returns every location seen in the event table, sorted.
func (r *EventRepository) DistinctLocations(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT location FROM seed_events ORDER BY location`)
	if err != nil {
		return nil, dbError("failed to list locations", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan location row", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating location rows", err)
	}
	return out, nil
}

// count and groupCount take table and column names from package constants
// only; they are never built from request input.
func count(ctx context.Context, db DBTX, table string) (int64, error) {
	var n int64
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, dbError("failed to count "+table, err)
	}
	return n, nil
}

func groupCount(ctx context.Context, db DBTX, table, column string) ([]types.GroupCount, error) {
	rows, err := db.Query(ctx, fmt.Sprintf(
		`SELECT %[2]s, COUNT(*) FROM %[1]s GROUP BY %[2]s ORDER BY %[2]s`, table, column,
	))
	if err != nil {
		return nil, dbError(fmt.Sprintf("failed to count %s by %s", table, column), err)
	}
	defer rows.Close()

	out := []types.GroupCount{}
	for rows.Next() {
		var gc types.GroupCount
		if err := rows.Scan(&gc.Key, &gc.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan group count row", err)
		}
		out = append(out, gc)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating group count rows", err)
	}
	return out, nil
}
