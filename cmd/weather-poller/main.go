// Package main ingests live OpenWeatherMap observations for every catalog
// location into the event store.
//
// Locally it polls once and exits. Inside the Lambda runtime each scheduled
// invocation polls the locations named in the payload, or the whole catalog
// when the payload is empty.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"caliseed/internal/app"
	"caliseed/internal/external"
	"caliseed/internal/locations"
	"caliseed/internal/metrics"
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
	if err := cfg.RequireWeather(); err != nil {
		return err
	}

	catalog, err := locations.Load(cfg.Weather.LocationsFile)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	registry := metrics.New()
	client := external.NewOpenWeatherClient(nil, external.OpenWeatherConfig{
		BaseURL:  cfg.Weather.BaseURL,
		APIKey:   cfg.Weather.APIKey,
		Language: cfg.Weather.Language,
		Timeout:  cfg.Weather.Timeout,
	}, external.WithLogger(logger))

	poller := scheduler.NewWeatherPoller(scheduler.WeatherPollerConfig{
		Observer: client,
		Events:   store.Events(),
		Catalog:  catalog,
		Metrics:  registry,
		Logger:   logger,
	})

	handle := newHandler(poller, registry, cfg.Observability.PushgatewayURL, logger)

	if app.IsLambda() {
		logger.Info("weather-poller function initialized", "locations", catalog.Names())
		lambda.Start(handle)
		return nil
	}

	res, err := handle(ctx, scheduler.PollerInput{})
	if err != nil {
		return err
	}
	fmt.Printf("Stored %d of %d observations\n", res.Stored, res.Requested)
	return nil
}

const pushJob = "caliseed_weather_poller"

// newHandler polls and then, when pushURL is set, pushes the registry.
func newHandler(poller *scheduler.WeatherPoller, registry *metrics.Metrics, pushURL string, logger *slog.Logger) func(context.Context, scheduler.PollerInput) (scheduler.PollResult, error) {
	return func(ctx context.Context, input scheduler.PollerInput) (scheduler.PollResult, error) {
		res, err := poller.Poll(ctx, input)
		if pushURL != "" {
			if pushErr := registry.Push(ctx, pushURL, pushJob); pushErr != nil {
				logger.WarnContext(ctx, "failed to push poll metrics", "error", pushErr)
			}
		}
		return res, err
	}
}
