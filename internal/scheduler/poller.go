package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"caliseed/internal/external"
	"caliseed/internal/locations"
	"caliseed/internal/metrics"
	"caliseed/internal/types"
)

// DefaultPollConcurrency bounds in-flight provider requests.
const DefaultPollConcurrency = 4

// WeatherPoller fetches the current weather for every catalog location and
// appends the normalized observations to the event store.
type WeatherPoller struct {
	observer    WeatherObserver
	events      EventInserter
	catalog     *locations.Catalog
	metrics     *metrics.Metrics
	concurrency int
	logger      *slog.Logger
}

// WeatherPollerConfig holds the dependencies of a WeatherPoller. Metrics is
// optional.
type WeatherPollerConfig struct {
	Observer    WeatherObserver
	Events      EventInserter
	Catalog     *locations.Catalog
	Metrics     *metrics.Metrics
	Concurrency int
	Logger      *slog.Logger
}

func NewWeatherPoller(cfg WeatherPollerConfig) *WeatherPoller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = locations.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultPollConcurrency
	}
	return &WeatherPoller{
		observer:    cfg.Observer,
		events:      cfg.Events,
		catalog:     catalog,
		metrics:     cfg.Metrics,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Poll observes the requested locations concurrently. A provider failure
// for one location is logged and recorded in PollResult.Failed; the others
// still complete. A store failure cancels the cycle and is returned.
// An unknown location name in input is a validation error and nothing is
// fetched.
func (p *WeatherPoller) Poll(ctx context.Context, input PollerInput) (PollResult, error) {
	targets, err := p.resolve(input.Locations)
	if err != nil {
		return PollResult{}, err
	}

	var (
		mu  sync.Mutex
		res = PollResult{Requested: len(targets)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, loc := range targets {
		g.Go(func() error {
			e, err := p.observer.Observe(gctx, loc.Name, loc.Lat, loc.Lon)
			if err != nil {
				p.logger.WarnContext(gctx, "weather observation failed",
					"location", loc.Name,
					"error", err,
				)
				if p.metrics != nil {
					p.metrics.ExternalFailures.WithLabelValues("openweathermap").Inc()
				}
				mu.Lock()
				res.Failed = append(res.Failed, loc.Name)
				mu.Unlock()
				return nil
			}

			if err := p.events.Insert(gctx, &e); err != nil {
				return fmt.Errorf("store observation for %s: %w", loc.Name, err)
			}
			if p.metrics != nil {
				p.metrics.ObservationsStored.WithLabelValues(loc.Name).Inc()
			}

			p.logger.InfoContext(gctx, "observation stored",
				"location", loc.Name,
				"event_id", e.ID,
				"temperature_c", e.TemperatureC,
				"flood_risk_level", e.FloodRiskLevel,
			)
			for _, advisory := range external.Advisories(e) {
				p.logger.InfoContext(gctx, "weather advisory",
					"location", loc.Name,
					"advisory", advisory,
				)
			}

			mu.Lock()
			res.Stored++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.logger.ErrorContext(ctx, "poll cycle aborted", "error", err, "stored_before_error", res.Stored)
		return res, err
	}

	p.logger.InfoContext(ctx, "poll cycle complete",
		"requested", res.Requested,
		"stored", res.Stored,
		"failed", len(res.Failed),
	)
	return res, nil
}

func (p *WeatherPoller) resolve(names []string) ([]locations.Location, error) {
	if len(names) == 0 {
		return p.catalog.All(), nil
	}
	out := make([]locations.Location, 0, len(names))
	for _, name := range names {
		loc, ok := p.catalog.Lookup(name)
		if !ok {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidLocation,
				fmt.Sprintf("unknown location %q", name), nil,
				map[string]any{"known": p.catalog.Names()})
		}
		out = append(out, loc)
	}
	return out, nil
}
