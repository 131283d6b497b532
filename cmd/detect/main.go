// Package main runs one detection pass over the event store.
//
// Locally (APP_ENV=local) the pass runs once and the process exits with a
// non-zero status if it failed. Inside the Lambda runtime the pass runs on
// every scheduled invocation. Run metrics go to Prometheus, the log and,
// when enabled, CloudWatch; appended alerts are fanned out through the
// configured publisher.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"caliseed/internal/app"
	"caliseed/internal/config"
	"caliseed/internal/detection"
	"caliseed/internal/metrics"
	"caliseed/internal/queue"
	"caliseed/internal/scheduler"
	"caliseed/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := app.SignalContext()
	defer stop()

	cfg, logger, err := app.Load()
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	registry := metrics.New()
	publisher, err := newPublisher(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}

	notifier, err := queue.Open(ctx, cfg.Publisher, cfg.AWS, logger)
	if err != nil {
		return fmt.Errorf("opening alert publisher: %w", err)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("failed to close alert publisher", "error", err)
		}
	}()

	job := &scheduler.DetectionJob{
		Runner: &detection.Runner{
			Events:   store.Events(),
			Alerts:   store.Alerts(),
			Log:      logger,
			Metrics:  publisher,
			Notifier: notifier,
		},
		Logger: logger,
	}

	handle := newHandler(job, registry, cfg.Observability.PushgatewayURL, logger)

	if app.IsLambda() {
		logger.Info("detect function initialized", "store_backend", cfg.Store.Backend, "publisher", cfg.Publisher.Kind)
		lambda.Start(handle)
		return nil
	}

	res, err := handle(ctx, scheduler.DetectInput{})
	if err != nil {
		return err
	}
	fmt.Printf("Detection complete: %d events scanned, %d alerts produced, %d skipped (run %s)\n",
		res.Scanned, res.Produced, res.Skipped, res.RunID)
	return nil
}

// pushJob names the Pushgateway group the detect registry is pushed under.
const pushJob = "caliseed_detect"

// newHandler wraps job so the registry is pushed after every pass when
// pushURL is set. A failed push is logged and never fails the pass.
func newHandler(job *scheduler.DetectionJob, registry *metrics.Metrics, pushURL string, logger *slog.Logger) func(context.Context, scheduler.DetectInput) (detection.Result, error) {
	return func(ctx context.Context, input scheduler.DetectInput) (detection.Result, error) {
		res, err := job.Handle(ctx, input)
		if pushURL != "" {
			if pushErr := registry.Push(ctx, pushURL, pushJob); pushErr != nil {
				logger.WarnContext(ctx, "failed to push run metrics", "error", pushErr)
			}
		}
		return res, err
	}
}

// newPublisher always logs and counts runs in the Prometheus registry;
// CloudWatch is added when enabled.
func newPublisher(ctx context.Context, cfg *config.Config, registry *metrics.Metrics, logger *slog.Logger) (detection.MetricPublisher, error) {
	publishers := metrics.Publishers{
		metrics.LoggingPublisher{Logger: logger},
		registry,
	}
	if !cfg.Observability.EnableCloudWatch {
		return publishers, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	return append(publishers, metrics.NewCloudWatchPublisher(client, cfg.Observability.MetricNamespace)), nil
}
