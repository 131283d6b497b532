// Package scheduler implements the scheduled jobs of the alert engine: the
// weather poller that ingests live observations and the detection job that
// turns stored events into alerts. Both run as Lambda handlers in the cloud
// and as one-shot commands locally.
package scheduler

import (
	"context"

	"caliseed/internal/types"
)

// PollerInput is the payload accepted by the weather-poller function. An
// empty Locations list polls the whole catalog.
type PollerInput struct {
	Locations []string `json:"locations,omitempty"`
}

// PollResult summarizes one poll cycle.
type PollResult struct {
	Requested int      `json:"requested"`
	Stored    int      `json:"stored"`
	Failed    []string `json:"failed,omitempty"`
}

// WeatherObserver fetches the current observation for one coordinate.
type WeatherObserver interface {
	Observe(ctx context.Context, location string, lat, lon float64) (types.Event, error)
}

// EventInserter stores one normalized observation.
type EventInserter interface {
	Insert(ctx context.Context, e *types.Event) error
}

// DetectInput is the payload accepted by the detect function. It carries no
// options today; the struct exists so scheduled rules can send "{}".
type DetectInput struct{}
