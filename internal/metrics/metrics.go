// Package metrics exposes Prometheus collectors for the API and the
// detection and ingestion jobs, and a CloudWatch publisher for detection
// runs executed as scheduled functions.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"caliseed/internal/detection"
)

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DetectionRunsTotal *prometheus.CounterVec
	EventsScanned      prometheus.Counter
	AlertsProduced     prometheus.Counter
	EventsSkipped      prometheus.Counter
	DetectionDuration  prometheus.Histogram
	LastRunTimestamp   prometheus.Gauge

	ObservationsStored *prometheus.CounterVec
	ExternalFailures   *prometheus.CounterVec
	PanicsRecovered    *prometheus.CounterVec
}

var _ detection.MetricPublisher = (*Metrics)(nil)

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caliseed_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caliseed_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		DetectionRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caliseed_detection_runs_total",
			Help: "Detection passes by result",
		}, []string{"result"}),
		EventsScanned: f.NewCounter(prometheus.CounterOpts{
			Name: "caliseed_detection_events_scanned_total",
			Help: "Events read by detection passes",
		}),
		AlertsProduced: f.NewCounter(prometheus.CounterOpts{
			Name: "caliseed_detection_alerts_produced_total",
			Help: "Alerts appended by detection passes",
		}),
		EventsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "caliseed_detection_events_skipped_total",
			Help: "Events skipped because a required field was absent",
		}),
		DetectionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "caliseed_detection_duration_seconds",
			Help:    "Wall time of a detection pass",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "caliseed_detection_last_run_timestamp_seconds",
			Help: "Unix time at which the last detection pass started",
		}),

		ObservationsStored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caliseed_observations_stored_total",
			Help: "Live weather observations written to the event store",
		}, []string{"location"}),
		ExternalFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caliseed_external_failures_total",
			Help: "Failed calls to external providers",
		}, []string{"provider"}),
		PanicsRecovered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caliseed_panics_recovered_total",
			Help: "Panics recovered by middleware",
		}, []string{"component"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request count and latency. Requests are labelled with
// the matched chi route pattern so path parameters do not explode the label
// set; unmatched requests share the "unmatched" label.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// PublishRun records a finished detection pass.
func (m *Metrics) PublishRun(_ context.Context, res detection.Result, runErr error) error {
	m.DetectionRunsTotal.WithLabelValues(runResult(runErr)).Inc()
	m.EventsScanned.Add(float64(res.Scanned))
	m.AlertsProduced.Add(float64(res.Produced))
	m.EventsSkipped.Add(float64(res.Skipped))
	m.DetectionDuration.Observe(res.Duration.Seconds())
	if !res.StartedAt.IsZero() {
		m.LastRunTimestamp.Set(float64(res.StartedAt.Unix()))
	}
	return nil
}

func runResult(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Push sends the registry to a Prometheus Pushgateway under job, replacing
// the previous push for that job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to gateway: %w", err)
	}
	return nil
}
