// Package generator produces synthetic environmental events for seeding a
// store and exercising the detector.
package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"caliseed/internal/types"
)

// EventTypes are the synthetic event categories. "hailstrom" is kept as
// spelled because stored data and dashboards already group by it.
var EventTypes = []string{"flood_warning", "hailstrom", "heatwave", "wildfire_risk", "storm_anomaly"}

// Generator draws events uniformly from fixed measurement ranges.
type Generator struct {
	locations []string
	rng       *rand.Rand
	now       func() time.Time
}

// New returns a generator over the given location names. A zero seed draws
// from a random source; any other seed yields a repeatable sequence.
func New(locations []string, seed uint64) *Generator {
	var src rand.Source
	if seed == 0 {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	} else {
		src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
	return &Generator{
		locations: append([]string(nil), locations...),
		rng:       rand.New(src),
		now:       time.Now,
	}
}

// Event returns one synthetic event. Every measurement is present.
func (g *Generator) Event() types.Event {
	return types.Event{
		Timestamp:      types.NewTimestamp(g.now()),
		Location:       g.locations[g.rng.IntN(len(g.locations))],
		EventType:      EventTypes[g.rng.IntN(len(EventTypes))],
		SoilMoisture:   types.Float64(g.uniform(3, 90, 2)),
		TemperatureC:   types.Float64(g.uniform(-5, 45, 1)),
		HumidityPct:    types.Float64(g.uniform(10, 100, 1)),
		RainfallMM:     types.Float64(g.uniform(0, 200, 1)),
		WindSpeedKmh:   types.Float64(g.uniform(0, 130, 1)),
		HailDetected:   types.Bool(g.rng.IntN(2) == 1),
		FloodRiskLevel: types.FloodRisk(types.FloodRiskLevels[g.rng.IntN(len(types.FloodRiskLevels))]),
		AnimalAlert:    types.Bool(g.rng.IntN(2) == 1),
		AlertTriggered: false,
		Source:         types.SourceSynthetic,
	}
}

func (g *Generator) uniform(lo, hi float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round((lo+g.rng.Float64()*(hi-lo))*p) / p
}

// EventInserter is the write side of an event repository.
type EventInserter interface {
	Insert(ctx context.Context, e *types.Event) error
}

// Seed inserts n generated events and returns the ones written. On error the
// events written so far are returned with it.
func (g *Generator) Seed(ctx context.Context, repo EventInserter, n int) ([]types.Event, error) {
	out := make([]types.Event, 0, n)
	for range n {
		e := g.Event()
		if err := repo.Insert(ctx, &e); err != nil {
			return out, fmt.Errorf("generator: insert event %d of %d: %w", len(out)+1, n, err)
		}
		out = append(out, e)
	}
	return out, nil
}
