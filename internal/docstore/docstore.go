// Package docstore is the Cloud Firestore backend for events and alerts. It
// keeps events in the seed_events collection and alerts in alerts_log, one
// document per record, with auto-generated document IDs.
//
// List queries filter by equality and order by timestamp, which needs
// composite indexes on (location, timestamp desc) and
// (location, event_type, timestamp desc) for both collections.
package docstore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"caliseed/internal/config"
	"caliseed/internal/types"
)

// Store is the Firestore implementation of types.Store.
type Store struct {
	client *firestore.Client
	events *EventRepository
	alerts *AlertRepository
}

var _ types.Store = (*Store)(nil)

// Open connects to the project in cfg. Credentials come from the ambient
// environment (ADC or FIRESTORE_EMULATOR_HOST).
func Open(ctx context.Context, cfg config.FirestoreConfig) (*Store, error) {
	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, storeError("failed to create firestore client", err)
	}
	return NewStore(client, cfg.EventsCollection, cfg.AlertsCollection), nil
}

// NewStore wraps an existing client.
func NewStore(client *firestore.Client, eventsCollection, alertsCollection string) *Store {
	return &Store{
		client: client,
		events: &EventRepository{client: client, coll: eventsCollection, pageSize: DefaultScanPageSize},
		alerts: &AlertRepository{client: client, coll: alertsCollection},
	}
}

func (s *Store) Events() types.EventRepository { return s.events }
func (s *Store) Alerts() types.AlertRepository { return s.alerts }

// Ping reads at most one event document.
func (s *Store) Ping(ctx context.Context) error {
	it := s.client.Collection(s.events.coll).Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return storeError("firestore ping failed", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// storeError classifies a client error the same way the SQL backend does:
// transport-level failures are store unavailable, the rest internal.
func storeError(msg string, err error) *types.AppError {
	if isUnavailable(err) {
		return types.NewAppError(types.ErrCodeStoreUnavailable, msg, err)
	}
	return types.NewAppError(types.ErrCodeInternalDB, msg, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		return true
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Unauthenticated, codes.PermissionDenied, codes.ResourceExhausted:
		return true
	}
	return false
}
