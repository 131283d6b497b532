package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caliseed/internal/config"
	"caliseed/internal/memstore"
	"caliseed/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Build: config.BuildInfo{Version: "1.4.0", Commit: "abc1234"},
	}
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNewServer_MountsAllRoutes(t *testing.T) {
	store := memstore.New()
	e := types.Event{
		Timestamp:    types.NewTimestamp(time.Date(2025, 10, 3, 8, 0, 0, 0, time.UTC)),
		Location:     "Huesca",
		EventType:    "hailstrom",
		TemperatureC: types.Float64(12),
	}
	require.NoError(t, store.Events().Insert(context.Background(), &e))

	srv, err := newServer(testConfig(), store, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	h := srv.Handler()

	for _, path := range []string{"/", "/api", "/api/events", "/api/alerts", "/api/stats", "/api/locations", "/health", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(t, h, path)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}

func TestNewServer_InfoCarriesBuild(t *testing.T) {
	srv, err := newServer(testConfig(), memstore.New(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	rec := serve(t, srv.Handler(), "/api")

	var body struct {
		Status string           `json:"status"`
		Build  config.BuildInfo `json:"build"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "online", body.Status)
	assert.Equal(t, "abc1234", body.Build.Commit)
}

func TestNewServer_InfoReportsClosedStore(t *testing.T) {
	store := memstore.New()
	srv, err := newServer(testConfig(), store, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	rec := serve(t, srv.Handler(), "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"database unavailable"`)
}

func TestNewServer_MetricsCountRequests(t *testing.T) {
	srv, err := newServer(testConfig(), memstore.New(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	h := srv.Handler()

	serve(t, h, "/api/alerts")
	rec := serve(t, h, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `caliseed_http_requests_total{method="GET",route="/api/alerts",status="200"} 1`),
		"metrics output missing the alerts request counter")
}

func TestNewServer_UnknownRoute(t *testing.T) {
	srv, err := newServer(testConfig(), memstore.New(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	rec := serve(t, srv.Handler(), "/api/forecasts")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewServer_RejectsNilStore(t *testing.T) {
	_, err := newServer(testConfig(), nil, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
