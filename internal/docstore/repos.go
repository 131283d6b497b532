package docstore

import (
	"context"
	"errors"
	"iter"
	"sort"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	"caliseed/internal/types"
)

// DefaultScanPageSize is the number of documents fetched per query by All.
const DefaultScanPageSize = 500

// EventRepository reads and writes the events collection.
type EventRepository struct {
	client   *firestore.Client
	coll     string
	pageSize int
}

var _ types.EventRepository = (*EventRepository)(nil)

func (r *EventRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.coll)
}

// Insert creates a document with a generated ID and sets e.ID to it.
func (r *EventRepository) Insert(ctx context.Context, e *types.Event) error {
	ref := r.collection().NewDoc()
	if _, err := ref.Create(ctx, toEventDoc(*e)); err != nil {
		return storeError("failed to insert event", err)
	}
	e.ID = ref.ID
	return nil
}

// All yields every event ordered by document ID, one page query at a time.
func (r *EventRepository) All(ctx context.Context) iter.Seq2[types.Event, error] {
	return func(yield func(types.Event, error) bool) {
		after := ""
		for {
			q := r.collection().OrderBy(firestore.DocumentID, firestore.Asc).Limit(r.pageSize)
			if after != "" {
				q = q.StartAfter(after)
			}
			page, err := collect(ctx, q, func(doc *firestore.DocumentSnapshot) (types.Event, error) {
				var d eventDoc
				if err := doc.DataTo(&d); err != nil {
					return types.Event{}, err
				}
				return d.event(doc.Ref.ID), nil
			})
			if err != nil {
				yield(types.Event{}, storeError("failed to read events", err))
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
			after = page[len(page)-1].ID
		}
	}
}

// List returns events matching f, newest first.
func (r *EventRepository) List(ctx context.Context, f types.EventFilter) ([]types.Event, error) {
	q := r.collection().Query
	if f.Location != "" {
		q = q.Where("location", "==", f.Location)
	}
	if f.EventType != "" {
		q = q.Where("event_type", "==", f.EventType)
	}
	q = q.OrderBy("timestamp", firestore.Desc).Limit(types.EffectiveLimit(f.Limit))

	out, err := collect(ctx, q, func(doc *firestore.DocumentSnapshot) (types.Event, error) {
		var d eventDoc
		if err := doc.DataTo(&d); err != nil {
			return types.Event{}, err
		}
		return d.event(doc.Ref.ID), nil
	})
	if err != nil {
		return nil, storeError("failed to list events", err)
	}
	return out, nil
}

func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.collection().Query)
}

func (r *EventRepository) CountByLocation(ctx context.Context) ([]types.GroupCount, error) {
	return groupCount(ctx, r.collection().Query, "location")
}

func (r *EventRepository) CountByType(ctx context.Context) ([]types.GroupCount, error) {
	return groupCount(ctx, r.collection().Query, "event_type")
}

// DistinctLocations returns every location that has at least one event.
func (r *EventRepository) DistinctLocations(ctx context.Context) ([]string, error) {
	groups, err := groupCount(ctx, r.collection().Query, "location")
	if err != nil {
		return nil, err
	}
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Key
	}
	return out, nil
}

// AlertRepository appends to and reads the alert log collection.
type AlertRepository struct {
	client *firestore.Client
	coll   string
}

var _ types.AlertRepository = (*AlertRepository)(nil)

func (r *AlertRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.coll)
}

// Append creates a document for a and sets a.ID.
func (r *AlertRepository) Append(ctx context.Context, a *types.Alert) error {
	if len(a.DetectedAlerts) == 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidEvent, "alert has no detected labels", nil)
	}
	ref := r.collection().NewDoc()
	if _, err := ref.Create(ctx, toAlertDoc(*a)); err != nil {
		return storeError("failed to append alert", err)
	}
	a.ID = ref.ID
	return nil
}

// List returns alerts matching f, newest first.
func (r *AlertRepository) List(ctx context.Context, f types.AlertFilter) ([]types.Alert, error) {
	q := r.collection().Query
	if f.Location != "" {
		q = q.Where("location", "==", f.Location)
	}
	q = q.OrderBy("timestamp", firestore.Desc).Limit(types.EffectiveLimit(f.Limit))

	out, err := collect(ctx, q, func(doc *firestore.DocumentSnapshot) (types.Alert, error) {
		var d alertDoc
		if err := doc.DataTo(&d); err != nil {
			return types.Alert{}, err
		}
		return d.alert(doc.Ref.ID), nil
	})
	if err != nil {
		return nil, storeError("failed to list alerts", err)
	}
	return out, nil
}

func (r *AlertRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.collection().Query)
}

func (r *AlertRepository) CountByLocation(ctx context.Context) ([]types.GroupCount, error) {
	return groupCount(ctx, r.collection().Query, "location")
}

// collect drains q, decoding each document with decode. The result is never
// nil.
func collect[T any](ctx context.Context, q firestore.Query, decode func(*firestore.DocumentSnapshot) (T, error)) ([]T, error) {
	it := q.Documents(ctx)
	defer it.Stop()

	out := []T{}
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		v, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func count(ctx context.Context, q firestore.Query) (int64, error) {
	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, storeError("failed to count documents", err)
	}
	switch v := res["all"].(type) {
	case *firestorepb.Value:
		return v.GetIntegerValue(), nil
	case int64:
		return v, nil
	}
	return 0, types.NewAppError(types.ErrCodeInternalDB, "unexpected count aggregation result", nil)
}

// groupCount counts documents per distinct value of field. Firestore has no
// GROUP BY, so only the field is projected and counted client side.
func groupCount(ctx context.Context, q firestore.Query, field string) ([]types.GroupCount, error) {
	it := q.Select(field).Documents(ctx)
	defer it.Stop()

	counts := make(map[string]int64)
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, storeError("failed to group documents by "+field, err)
		}
		v, err := doc.DataAt(field)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok {
			counts[s]++
		}
	}

	out := make([]types.GroupCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, types.GroupCount{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
