package metrics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caliseed/internal/detection"
	"caliseed/internal/types"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func datum(t *testing.T, in *cloudwatch.PutMetricDataInput, name string) cwtypes.MetricDatum {
	t.Helper()
	for _, d := range in.MetricData {
		if aws.ToString(d.MetricName) == name {
			return d
		}
	}
	t.Fatalf("metric %s not found", name)
	return cwtypes.MetricDatum{}
}

func TestCloudWatchPublisher_PublishRun(t *testing.T) {
	client := &mockCloudWatch{}
	p := NewCloudWatchPublisher(client, "")

	err := p.PublishRun(context.Background(), detection.Result{
		Scanned:  12,
		Produced: 4,
		Skipped:  1,
		Duration: 250 * time.Millisecond,
	}, nil)

	require.NoError(t, err)
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, types.MetricNamespace, aws.ToString(in.Namespace))

	run := datum(t, in, types.MetricDetectionRun)
	require.Len(t, run.Dimensions, 1)
	assert.Equal(t, types.DimResult, aws.ToString(run.Dimensions[0].Name))
	assert.Equal(t, "success", aws.ToString(run.Dimensions[0].Value))

	assert.Equal(t, 12.0, aws.ToFloat64(datum(t, in, types.MetricEventsScanned).Value))
	assert.Equal(t, 4.0, aws.ToFloat64(datum(t, in, types.MetricAlertsProduced).Value))
	assert.Equal(t, 1.0, aws.ToFloat64(datum(t, in, types.MetricEventsSkipped).Value))

	dur := datum(t, in, types.MetricDetectionDuration)
	assert.Equal(t, 250.0, aws.ToFloat64(dur.Value))
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, dur.Unit)
}

func TestCloudWatchPublisher_FailureDimensionAndError(t *testing.T) {
	client := &mockCloudWatch{err: errors.New("Throttling")}
	p := NewCloudWatchPublisher(client, "CaliSeedStaging")

	err := p.PublishRun(context.Background(), detection.Result{}, errors.New("store unavailable"))

	require.Error(t, err)
	in := client.inputs[0]
	assert.Equal(t, "CaliSeedStaging", aws.ToString(in.Namespace))
	assert.Equal(t, "failure", aws.ToString(datum(t, in, types.MetricDetectionRun).Dimensions[0].Value))
}

func TestLoggingPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := LoggingPublisher{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	require.NoError(t, p.PublishRun(context.Background(), detection.Result{RunID: "run-1", Produced: 3}, nil))

	assert.Contains(t, buf.String(), `"run_id":"run-1"`)
	assert.Contains(t, buf.String(), `"alerts_produced":3`)
}
