package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"caliseed/internal/detection"
	"caliseed/internal/types"
)

// CloudWatchClient is the subset of the CloudWatch API used here.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchPublisher sends one PutMetricData call per detection pass.
//
// Metrics emitted:
//   - DetectionRun: Dims {Result}
//   - EventsScanned, AlertsProduced, EventsSkipped: counts
//   - DetectionDuration: milliseconds
type CloudWatchPublisher struct {
	client    CloudWatchClient
	namespace string
}

var _ detection.MetricPublisher = (*CloudWatchPublisher)(nil)

// NewCloudWatchPublisher publishes under namespace, or types.MetricNamespace
// when namespace is empty.
func NewCloudWatchPublisher(client CloudWatchClient, namespace string) *CloudWatchPublisher {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchPublisher{client: client, namespace: namespace}
}

func (p *CloudWatchPublisher) PublishRun(ctx context.Context, res detection.Result, runErr error) error {
	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(float64(v)),
			Unit:       cwtypes.StandardUnitCount,
		}
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricDetectionRun),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(types.DimResult), Value: aws.String(runResult(runErr))},
				},
			},
			count(types.MetricEventsScanned, res.Scanned),
			count(types.MetricAlertsProduced, res.Produced),
			count(types.MetricEventsSkipped, res.Skipped),
			{
				MetricName: aws.String(types.MetricDetectionDuration),
				Value:      aws.Float64(float64(res.Duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := p.client.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("metrics: put detection run metrics: %w", err)
	}
	return nil
}

// Publishers fans a run out to several publishers. Every publisher is
// called; the errors are joined.
type Publishers []detection.MetricPublisher

func (ps Publishers) PublishRun(ctx context.Context, res detection.Result, runErr error) error {
	var errs []error
	for _, p := range ps {
		if err := p.PublishRun(ctx, res, runErr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoggingPublisher writes the run summary as a structured log line. It is
// the publisher used for local runs without CloudWatch.
type LoggingPublisher struct {
	Logger *slog.Logger
}

func (p LoggingPublisher) PublishRun(ctx context.Context, res detection.Result, runErr error) error {
	p.Logger.InfoContext(ctx, "detection run metrics",
		"run_id", res.RunID,
		"result", runResult(runErr),
		"events_scanned", res.Scanned,
		"alerts_produced", res.Produced,
		"events_skipped", res.Skipped,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return nil
}
