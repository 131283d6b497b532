// Package queue fans produced alerts out to downstream consumers over SQS,
// Kafka or Pub/Sub. Delivery is best effort: the alert log is the record,
// and a failed notification never undoes an appended alert.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"caliseed/internal/types"
)

// SchemaVersion is carried in every message so consumers can reject payloads
// they do not understand.
const SchemaVersion = "1"

// AlertMessage is the payload published for each appended alert.
type AlertMessage struct {
	SchemaVersion string      `json:"schema_version"`
	RunID         string      `json:"run_id,omitempty"`
	Alert         types.Alert `json:"alert"`
}

// Notifier publishes alerts. Close releases the underlying client.
type Notifier interface {
	Notify(ctx context.Context, a types.Alert) error
	Close() error
}

func encode(ctx context.Context, a types.Alert) (AlertMessage, []byte, error) {
	msg := AlertMessage{
		SchemaVersion: SchemaVersion,
		RunID:         types.GetRunID(ctx),
		Alert:         a,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return msg, nil, fmt.Errorf("queue: marshal alert message: %w", err)
	}
	return msg, body, nil
}

// Nop discards every alert.
type Nop struct{}

func (Nop) Notify(context.Context, types.Alert) error { return nil }
func (Nop) Close() error                              { return nil }

// Multi publishes to every notifier in order and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a types.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Close())
	}
	return errors.Join(errs...)
}
