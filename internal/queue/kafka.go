package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"caliseed/internal/types"
)

// KafkaWriter is the subset of *kafka.Writer used by KafkaNotifier.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a synchronous writer that hashes on the message key,
// so alerts for one location stay ordered within a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}
}

// KafkaNotifier writes one record per alert, keyed by location.
type KafkaNotifier struct {
	writer KafkaWriter
}

func NewKafkaNotifier(w KafkaWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

func (n *KafkaNotifier) Notify(ctx context.Context, a types.Alert) error {
	msg, body, err := encode(ctx, a)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: "schema_version", Value: []byte(SchemaVersion)},
		{Key: "event_type", Value: []byte(a.EventType)},
	}
	if msg.RunID != "" {
		headers = append(headers, kafka.Header{Key: "run_id", Value: []byte(msg.RunID)})
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(a.Location),
		Value:   body,
		Headers: headers,
		Time:    a.Timestamp.Time,
	})
	if err != nil {
		return fmt.Errorf("queue: write alert %s to Kafka: %w", a.ID, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
