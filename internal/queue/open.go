package queue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/pubsub"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"caliseed/internal/config"
)

// Open builds the notifier selected by cfg.Kind. The "none" kind returns Nop.
func Open(ctx context.Context, cfg config.PublisherConfig, awsCfg config.AWSConfig, logger *slog.Logger) (Notifier, error) {
	switch cfg.Kind {
	case config.PublisherNone, "":
		return Nop{}, nil

	case config.PublisherSQS:
		sdkCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsCfg.Region))
		if err != nil {
			return nil, fmt.Errorf("queue: load AWS config: %w", err)
		}
		client := sqs.NewFromConfig(sdkCfg, func(o *sqs.Options) {
			if awsCfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(awsCfg.EndpointURL)
			}
		})
		return NewSQSNotifier(client, cfg.SQSQueueURL, logger), nil

	case config.PublisherKafka:
		return NewKafkaNotifier(NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)), nil

	case config.PublisherPubSub:
		client, err := pubsub.NewClient(ctx, cfg.PubSubProjectID)
		if err != nil {
			return nil, fmt.Errorf("queue: create Pub/Sub client: %w", err)
		}
		n := NewPubSubNotifier(client.Topic(cfg.PubSubTopic))
		stopTopic := n.stop
		n.stop = func() {
			stopTopic()
			if err := client.Close(); err != nil {
				logger.Warn("failed to close Pub/Sub client", "error", err)
			}
		}
		return n, nil

	case config.PublisherWebhook:
		var httpClient *http.Client
		if cfg.WebhookAllowPrivate {
			logger.Warn("webhook publisher may reach private addresses", "url", cfg.WebhookURL)
			httpClient = &http.Client{Timeout: webhookTimeout}
		}
		return NewWebhookNotifier(httpClient, cfg.WebhookURL, cfg.WebhookSecret, logger, nil), nil
	}
	return nil, fmt.Errorf("queue: unknown publisher kind %q", cfg.Kind)
}
