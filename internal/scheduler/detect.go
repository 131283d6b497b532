package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"caliseed/internal/detection"
)

// DetectionJob adapts a detection.Runner to the scheduled-function shape.
type DetectionJob struct {
	Runner *detection.Runner
	Logger *slog.Logger
}

// Handle runs one detection pass and returns a one-line summary.
func (j *DetectionJob) Handle(ctx context.Context, _ DetectInput) (detection.Result, error) {
	res, err := j.Runner.Run(ctx)
	if err != nil {
		j.Logger.ErrorContext(ctx, "detection job failed",
			"run_id", res.RunID,
			"error", err,
			"alerts_before_error", res.Produced,
		)
		return res, fmt.Errorf("detection pass %s: %w", res.RunID, err)
	}
	return res, nil
}
