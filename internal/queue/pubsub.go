package queue

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"

	"caliseed/internal/types"
)

// PublishFunc publishes m and blocks until the server assigns an ID.
type PublishFunc func(ctx context.Context, m *pubsub.Message) (string, error)

// PubSubNotifier publishes one message per alert with routing attributes.
type PubSubNotifier struct {
	publish PublishFunc
	stop    func()
}

// NewPubSubNotifier publishes to topic. Close stops the topic's background
// publisher after flushing.
func NewPubSubNotifier(topic *pubsub.Topic) *PubSubNotifier {
	return &PubSubNotifier{
		publish: func(ctx context.Context, m *pubsub.Message) (string, error) {
			return topic.Publish(ctx, m).Get(ctx)
		},
		stop: topic.Stop,
	}
}

func (n *PubSubNotifier) Notify(ctx context.Context, a types.Alert) error {
	msg, body, err := encode(ctx, a)
	if err != nil {
		return err
	}

	attrs := map[string]string{
		"schema_version": SchemaVersion,
		"location":       a.Location,
		"event_type":     a.EventType,
	}
	if msg.RunID != "" {
		attrs["run_id"] = msg.RunID
	}

	if _, err := n.publish(ctx, &pubsub.Message{Data: body, Attributes: attrs}); err != nil {
		return fmt.Errorf("queue: publish alert %s to Pub/Sub: %w", a.ID, err)
	}
	return nil
}

func (n *PubSubNotifier) Close() error {
	if n.stop != nil {
		n.stop()
	}
	return nil
}
