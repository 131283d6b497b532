package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"caliseed/internal/types"
)

// SQSSender is the SendMessage subset of *sqs.Client.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier sends one SQS message per alert. Location and event type are
// copied into message attributes so subscriptions can filter without parsing
// the body.
type SQSNotifier struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

func NewSQSNotifier(client SQSSender, queueURL string, logger *slog.Logger) *SQSNotifier {
	return &SQSNotifier{client: client, queueURL: queueURL, logger: logger}
}

func (n *SQSNotifier) Notify(ctx context.Context, a types.Alert) error {
	msg, body, err := encode(ctx, a)
	if err != nil {
		return err
	}

	attrs := map[string]sqsTypes.MessageAttributeValue{
		"location":   stringAttr(a.Location),
		"event_type": stringAttr(a.EventType),
	}
	if msg.RunID != "" {
		attrs["run_id"] = stringAttr(msg.RunID)
	}

	out, err := n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(n.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("queue: send alert %s to SQS: %w", a.ID, err)
	}

	n.logger.DebugContext(ctx, "alert sent to SQS",
		"alert_id", a.ID,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

func (n *SQSNotifier) Close() error { return nil }

func stringAttr(v string) sqsTypes.MessageAttributeValue {
	return sqsTypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}
