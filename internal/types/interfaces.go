package types

import (
	"context"
	"iter"
)

// EventRepository is the data access contract for the event store.
type EventRepository interface {
	// Insert stores e and sets e.ID to the store-assigned identifier.
	Insert(ctx context.Context, e *Event) error
	// All yields every stored event. Each call to the returned sequence
	// re-reads the store, so a sequence can be ranged over more than once.
	// A store failure is yielded once as the error value and ends iteration.
	All(ctx context.Context) iter.Seq2[Event, error]
	List(ctx context.Context, f EventFilter) ([]Event, error)
	Count(ctx context.Context) (int64, error)
	CountByLocation(ctx context.Context) ([]GroupCount, error)
	CountByType(ctx context.Context) ([]GroupCount, error)
	DistinctLocations(ctx context.Context) ([]string, error)
}

// AlertRepository is the data access contract for the append-only alert store.
type AlertRepository interface {
	// Append stores a and sets a.ID to the store-assigned identifier.
	Append(ctx context.Context, a *Alert) error
	List(ctx context.Context, f AlertFilter) ([]Alert, error)
	Count(ctx context.Context) (int64, error)
	CountByLocation(ctx context.Context) ([]GroupCount, error)
}

// Store bundles the two collections of one backend with its lifecycle.
// Callers open a Store, pass it down explicitly and Close it when done.
type Store interface {
	Events() EventRepository
	Alerts() AlertRepository
	Ping(ctx context.Context) error
	Close() error
}
