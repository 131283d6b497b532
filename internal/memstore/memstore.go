// Package memstore is an in-process implementation of types.Store. It backs
// unit tests and the STORE_BACKEND=memory mode of the binaries.
package memstore

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"

	"caliseed/internal/types"
)

var _ types.Store = (*Store)(nil)

// Store holds events and alerts in memory. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	events []types.Event
	alerts []types.Alert
	closed bool

	eventRepo *EventRepository
	alertRepo *AlertRepository
}

// New returns an empty store.
func New() *Store {
	s := &Store{}
	s.eventRepo = &EventRepository{s: s}
	s.alertRepo = &AlertRepository{s: s}
	return s
}

func (s *Store) Events() types.EventRepository { return s.eventRepo }
func (s *Store) Alerts() types.AlertRepository { return s.alertRepo }

// Ping fails once the store has been closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed()
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func errClosed() error {
	return types.NewAppError(types.ErrCodeStoreUnavailable, "memstore: store is closed", nil)
}

// EventRepository implements types.EventRepository.
type EventRepository struct{ s *Store }

func (r *EventRepository) Insert(ctx context.Context, e *types.Event) error {
	if err := ctx.Err(); err != nil {
		return types.NewAppError(types.ErrCodeStoreUnavailable, "memstore: insert event", err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return errClosed()
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	r.s.events = append(r.s.events, *e)
	return nil
}

// All snapshots the events at the moment iteration starts.
func (r *EventRepository) All(ctx context.Context) iter.Seq2[types.Event, error] {
	return func(yield func(types.Event, error) bool) {
		r.s.mu.RLock()
		if r.s.closed {
			r.s.mu.RUnlock()
			yield(types.Event{}, errClosed())
			return
		}
		snapshot := slices.Clone(r.s.events)
		r.s.mu.RUnlock()

		for _, e := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(types.Event{}, types.NewAppError(types.ErrCodeStoreUnavailable, "memstore: read events", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (r *EventRepository) List(_ context.Context, f types.EventFilter) ([]types.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed()
	}

	out := []types.Event{}
	for _, e := range r.s.events {
		if f.Location != "" && e.Location != f.Location {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b types.Event) int {
		return b.Timestamp.Compare(a.Timestamp.Time)
	})
	return truncate(out, f.Limit), nil
}

func (r *EventRepository) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return 0, errClosed()
	}
	return int64(len(r.s.events)), nil
}

func (r *EventRepository) CountByLocation(_ context.Context) ([]types.GroupCount, error) {
	return r.groupBy(func(e types.Event) string { return e.Location })
}

func (r *EventRepository) CountByType(_ context.Context) ([]types.GroupCount, error) {
	return r.groupBy(func(e types.Event) string { return e.EventType })
}

func (r *EventRepository) DistinctLocations(_ context.Context) ([]string, error) {
	counts, err := r.groupBy(func(e types.Event) string { return e.Location })
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(counts))
	for _, c := range counts {
		out = append(out, c.Key)
	}
	return out, nil
}

func (r *EventRepository) groupBy(key func(types.Event) string) ([]types.GroupCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed()
	}
	keys := make([]string, 0, len(r.s.events))
	for _, e := range r.s.events {
		keys = append(keys, key(e))
	}
	return countKeys(keys), nil
}

// AlertRepository implements types.AlertRepository.
type AlertRepository struct{ s *Store }

func (r *AlertRepository) Append(ctx context.Context, a *types.Alert) error {
	if err := ctx.Err(); err != nil {
		return types.NewAppError(types.ErrCodeStoreUnavailable, "memstore: append alert", err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return errClosed()
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	stored := *a
	stored.DetectedAlerts = slices.Clone(a.DetectedAlerts)
	r.s.alerts = append(r.s.alerts, stored)
	return nil
}

func (r *AlertRepository) List(_ context.Context, f types.AlertFilter) ([]types.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed()
	}

	out := []types.Alert{}
	for _, a := range r.s.alerts {
		if f.Location != "" && a.Location != f.Location {
			continue
		}
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(a, b types.Alert) int {
		return b.Timestamp.Compare(a.Timestamp.Time)
	})
	return truncate(out, f.Limit), nil
}

func (r *AlertRepository) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return 0, errClosed()
	}
	return int64(len(r.s.alerts)), nil
}

func (r *AlertRepository) CountByLocation(_ context.Context) ([]types.GroupCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed()
	}
	keys := make([]string, 0, len(r.s.alerts))
	for _, a := range r.s.alerts {
		keys = append(keys, a.Location)
	}
	return countKeys(keys), nil
}

// countKeys groups keys and sorts the buckets by key for stable output.
func countKeys(keys []string) []types.GroupCount {
	counts := make(map[string]int64)
	for _, k := range keys {
		counts[k]++
	}
	out := make([]types.GroupCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, types.GroupCount{Key: k, Count: n})
	}
	slices.SortFunc(out, func(a, b types.GroupCount) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

func truncate[T any](items []T, limit int) []T {
	limit = types.EffectiveLimit(limit)
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
