package detection

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"caliseed/internal/types"
)

// EventSource yields the current contents of the event store.
type EventSource interface {
	All(ctx context.Context) iter.Seq2[types.Event, error]
}

// AlertSink appends one alert record per call.
type AlertSink interface {
	Append(ctx context.Context, a *types.Alert) error
}

// MetricPublisher reports the outcome of a pass. Failures are logged, never
// returned to the caller.
type MetricPublisher interface {
	PublishRun(ctx context.Context, res Result, runErr error) error
}

// AlertNotifier fans an appended alert out to downstream consumers.
type AlertNotifier interface {
	Notify(ctx context.Context, a types.Alert) error
}

// Result summarizes one detection pass.
type Result struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Scanned   int           `json:"events_scanned"`
	Produced  int           `json:"alerts_produced"`
	Skipped   int           `json:"events_skipped"`
}

// Runner performs detection passes over an event store.
//
// A pass is not idempotent: it reads every stored event and appends a new
// alert for each one that fires, with no record of earlier passes. Running
// twice over an unchanged store yields two alerts per alerting event.
type Runner struct {
	Events   EventSource
	Alerts   AlertSink
	Log      *slog.Logger    // optional
	Metrics  MetricPublisher // optional
	Notifier AlertNotifier   // optional

	// Now supplies the detection timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Run executes one pass. Events missing a rule input are logged and skipped.
// A store failure ends the pass immediately; alerts already appended stay
// appended and the returned Result reflects the work done up to that point.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}

	res := Result{
		RunID:     uuid.New().String(),
		StartedAt: now().UTC(),
	}
	ctx = types.WithRunID(ctx, res.RunID)
	base := r.Log
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}
	log := base.With("run_id", res.RunID)

	log.InfoContext(ctx, "detection pass started")

	runErr := r.scan(ctx, log, now, &res)
	res.Duration = now().UTC().Sub(res.StartedAt)

	if r.Metrics != nil {
		if err := r.Metrics.PublishRun(ctx, res, runErr); err != nil {
			log.WarnContext(ctx, "failed to publish detection metrics", "error", err)
		}
	}

	if runErr != nil {
		log.ErrorContext(ctx, "detection pass aborted",
			"error", runErr,
			"events_scanned", res.Scanned,
			"alerts_produced", res.Produced,
			"events_skipped", res.Skipped,
		)
		return res, runErr
	}

	log.InfoContext(ctx, "detection pass complete",
		"events_scanned", res.Scanned,
		"alerts_produced", res.Produced,
		"events_skipped", res.Skipped,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (r *Runner) scan(ctx context.Context, log *slog.Logger, now func() time.Time, res *Result) error {
	for event, err := range r.Events.All(ctx) {
		if err != nil {
			return storeUnavailable("read events", err)
		}
		res.Scanned++

		labels, err := Evaluate(event)
		if err != nil {
			var mf *MissingFieldError
			if errors.As(err, &mf) {
				res.Skipped++
				log.WarnContext(ctx, "skipping event with missing measurement",
					"event_id", mf.EventID,
					"field", mf.Field,
					"location", event.Location,
				)
				continue
			}
			return err
		}
		if len(labels) == 0 {
			continue
		}

		alert := NewAlert(event, labels, now())
		if err := r.Alerts.Append(ctx, &alert); err != nil {
			return storeUnavailable(fmt.Sprintf("append alert for event %s", event.ID), err)
		}
		res.Produced++

		log.InfoContext(ctx, "alert detected",
			"event_id", event.ID,
			"alert_id", alert.ID,
			"location", alert.Location,
			"event_type", alert.EventType,
			"detected_alerts", alert.DetectedAlerts,
		)

		if r.Notifier != nil {
			if err := r.Notifier.Notify(ctx, alert); err != nil {
				log.WarnContext(ctx, "failed to notify alert", "alert_id", alert.ID, "error", err)
			}
		}
	}
	return nil
}

// NewAlert builds the alert record for an event that fired labels at
// detectedAt. labels must be non-empty.
func NewAlert(e types.Event, labels []string, detectedAt time.Time) types.Alert {
	out := make([]string, len(labels))
	copy(out, labels)
	return types.Alert{
		Timestamp:      types.NewTimestamp(detectedAt),
		Location:       e.Location,
		EventType:      e.EventType,
		DetectedAlerts: out,
		OriginalID:     e.ID,
	}
}

// storeUnavailable tags err as a store failure unless a store already did.
func storeUnavailable(op string, err error) error {
	if types.IsStoreUnavailable(err) {
		return fmt.Errorf("detection: %s: %w", op, err)
	}
	return types.NewAppError(types.ErrCodeStoreUnavailable, "detection: "+op, err)
}
