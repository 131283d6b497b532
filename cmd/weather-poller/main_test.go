package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caliseed/internal/locations"
	"caliseed/internal/memstore"
	"caliseed/internal/metrics"
	"caliseed/internal/scheduler"
	"caliseed/internal/types"
)

// stubObserver fails for the locations in fail and returns a mild
// observation for every other one.
type stubObserver struct {
	fail map[string]bool
}

func (s stubObserver) Observe(_ context.Context, location string, _, _ float64) (types.Event, error) {
	if s.fail[location] {
		return types.Event{}, errors.New("openweathermap: 503")
	}
	return types.Event{
		Timestamp:    types.NewTimestamp(time.Now()),
		Location:     location,
		EventType:    "weather_observation",
		TemperatureC: types.Float64(21),
		HumidityPct:  types.Float64(50),
		RainfallMM:   types.Float64(0),
		WindSpeedKmh: types.Float64(8),
		Source:       "OpenWeatherMap",
	}, nil
}

func newPoller(store *memstore.Store, registry *metrics.Metrics, obs stubObserver) *scheduler.WeatherPoller {
	return scheduler.NewWeatherPoller(scheduler.WeatherPollerConfig{
		Observer: obs,
		Events:   store.Events(),
		Catalog:  locations.Default(),
		Metrics:  registry,
		Logger:   slog.New(slog.DiscardHandler),
	})
}

func TestHandler_PollsCatalogAndPushes(t *testing.T) {
	var pushedPath atomic.Value
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushedPath.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	store := memstore.New()
	registry := metrics.New()
	handle := newHandler(newPoller(store, registry, stubObserver{fail: map[string]bool{"Teruel": true}}), registry, gw.URL, slog.New(slog.DiscardHandler))

	res, err := handle(context.Background(), scheduler.PollerInput{})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, []string{"Teruel"}, res.Failed)
	assert.Equal(t, "/metrics/job/"+pushJob, pushedPath.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(registry.ExternalFailures.WithLabelValues("openweathermap")))

	n, err := store.Events().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestHandler_SelectedLocationWithoutPush(t *testing.T) {
	store := memstore.New()
	registry := metrics.New()
	handle := newHandler(newPoller(store, registry, stubObserver{}), registry, "", slog.New(slog.DiscardHandler))

	res, err := handle(context.Background(), scheduler.PollerInput{Locations: []string{"Huesca"}})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, float64(1), testutil.ToFloat64(registry.ObservationsStored.WithLabelValues("Huesca")))
}

func TestHandler_UnknownLocation(t *testing.T) {
	store := memstore.New()
	registry := metrics.New()
	handle := newHandler(newPoller(store, registry, stubObserver{}), registry, "", slog.New(slog.DiscardHandler))

	_, err := handle(context.Background(), scheduler.PollerInput{Locations: []string{"Madrid"}})

	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidLocation))
}
