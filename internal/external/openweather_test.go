package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caliseed/internal/types"
)

const zaragozaResponse = `{
  "coord": {"lon": -0.8891, "lat": 41.6488},
  "weather": [{"id": 500, "main": "Rain", "description": "lluvia ligera", "icon": "10d"}],
  "main": {"temp": 18.46, "feels_like": 18.04, "pressure": 1012, "humidity": 72},
  "visibility": 8000,
  "wind": {"speed": 5.5, "deg": 310},
  "clouds": {"all": 75},
  "rain": {"1h": 12.4},
  "dt": 1759482000,
  "sys": {"sunrise": 1759471200, "sunset": 1759513200},
  "name": "Zaragoza"
}`

var pollTime = time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC)

func newWeatherServer(t *testing.T, status int, body string, check func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newWeatherClient(baseURL, key string) *OpenWeatherClient {
	c := NewOpenWeatherClient(nil, OpenWeatherConfig{
		BaseURL: baseURL,
		APIKey:  types.SecretString(key),
		Timeout: 5 * time.Second,
	}, WithSleepFunc(noopSleep))
	c.now = func() time.Time { return pollTime }
	return c
}

func TestObserve_NormalizesReading(t *testing.T) {
	srv := newWeatherServer(t, http.StatusOK, zaragozaResponse, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "41.6488", q.Get("lat"))
		assert.Equal(t, "-0.8891", q.Get("lon"))
		assert.Equal(t, "owm-key", q.Get("appid"))
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "es", q.Get("lang"))
	})

	e, err := newWeatherClient(srv.URL, "owm-key").Observe(context.Background(), "Zaragoza", 41.6488, -0.8891)
	require.NoError(t, err)

	assert.Equal(t, "Zaragoza", e.Location)
	assert.Equal(t, EventTypeWeatherObservation, e.EventType)
	assert.Equal(t, types.SourceOpenWeatherMap, e.Source)
	assert.Equal(t, "2025-10-03T09:00:00.000000", e.Timestamp.String())
	assert.Equal(t, 18.5, *e.TemperatureC)
	assert.Equal(t, 72.0, *e.HumidityPct)
	assert.Equal(t, 12.4, *e.RainfallMM)
	assert.Equal(t, 19.8, *e.WindSpeedKmh)
	assert.False(t, *e.HailDetected)
	assert.Equal(t, types.FloodRiskModerate, *e.FloodRiskLevel)
	assert.False(t, *e.AnimalAlert)
	assert.Nil(t, e.SoilMoisture)
	assert.False(t, e.AlertTriggered)

	require.NotNil(t, e.Observation)
	assert.Equal(t, 18.0, e.Observation.FeelsLikeC)
	assert.Equal(t, 1012.0, e.Observation.PressureHPa)
	assert.Equal(t, 310.0, e.Observation.WindDirectionDeg)
	assert.Equal(t, 75.0, e.Observation.CloudsPercent)
	assert.Equal(t, 8.0, e.Observation.VisibilityKm)
	assert.Equal(t, "Rain", e.Observation.WeatherMain)
	assert.Equal(t, "lluvia ligera", e.Observation.WeatherDescription)
	assert.Equal(t, "10d", e.Observation.WeatherIcon)
	assert.True(t, e.Observation.IsRealTime)
	assert.Equal(t, time.Unix(1759471200, 0).UTC(), e.Observation.Sunrise.Time)
}

func TestObserve_DefaultsForMissingFields(t *testing.T) {
	body := `{
	  "weather": [{"id": 906, "main": "Extreme", "description": "hail", "icon": "09d"}],
	  "main": {"temp": 36.2, "feels_like": 38, "pressure": 1003, "humidity": 18},
	  "wind": {"speed": 2},
	  "clouds": {"all": 0},
	  "sys": {"sunrise": 0, "sunset": 0}
	}`
	srv := newWeatherServer(t, http.StatusOK, body, nil)

	e, err := newWeatherClient(srv.URL, "owm-key").Observe(context.Background(), "Teruel", 40.3456, -1.1065)
	require.NoError(t, err)

	assert.Equal(t, 0.0, *e.RainfallMM)
	assert.Equal(t, types.FloodRiskLow, *e.FloodRiskLevel)
	assert.Equal(t, 10.0, e.Observation.VisibilityKm)
	assert.True(t, *e.HailDetected)
	assert.True(t, *e.AnimalAlert)
	assert.True(t, e.Observation.Sunrise.IsZero())
}

func TestObserve_HailInSpanishDescription(t *testing.T) {
	body := `{"weather":[{"id":511,"main":"Rain","description":"lluvia con granizo","icon":"13d"}],"main":{"temp":4,"humidity":90}}`
	srv := newWeatherServer(t, http.StatusOK, body, nil)

	e, err := newWeatherClient(srv.URL, "owm-key").Observe(context.Background(), "Huesca", 42.1401, -0.4080)
	require.NoError(t, err)
	assert.True(t, *e.HailDetected)
}

func TestObserve_ProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   types.ErrorCode
	}{
		{"invalid key", http.StatusUnauthorized, types.ErrCodeUpstreamAuth},
		{"unknown coordinates", http.StatusBadRequest, types.ErrCodeUpstreamWeather},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newWeatherServer(t, tt.status, `{"cod":401,"message":"Invalid API key"}`, nil)

			_, err := newWeatherClient(srv.URL, "bad").Observe(context.Background(), "Zaragoza", 41.6, -0.8)

			require.Error(t, err)
			assert.True(t, types.HasCode(err, tt.want), "got %v", err)
		})
	}
}

func TestObserve_MalformedBody(t *testing.T) {
	srv := newWeatherServer(t, http.StatusOK, `<html>maintenance</html>`, nil)

	_, err := newWeatherClient(srv.URL, "owm-key").Observe(context.Background(), "Zaragoza", 41.6, -0.8)

	assert.True(t, types.HasCode(err, types.ErrCodeUpstreamWeather))
}

func TestObserve_MissingKeySkipsRequest(t *testing.T) {
	called := false
	srv := newWeatherServer(t, http.StatusOK, zaragozaResponse, func(*http.Request) { called = true })

	_, err := newWeatherClient(srv.URL, "").Observe(context.Background(), "Zaragoza", 41.6, -0.8)

	assert.True(t, types.HasCode(err, types.ErrCodeUpstreamAuth))
	assert.False(t, called)
}

func TestFloodRiskFromRain(t *testing.T) {
	tests := []struct {
		mm   float64
		want types.FloodRiskLevel
	}{
		{0, types.FloodRiskLow},
		{9.9, types.FloodRiskLow},
		{10, types.FloodRiskModerate},
		{29.9, types.FloodRiskModerate},
		{30, types.FloodRiskHigh},
		{59.9, types.FloodRiskHigh},
		{60, types.FloodRiskExtreme},
		{180, types.FloodRiskExtreme},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FloodRiskFromRain(tt.mm), "rain %.1f", tt.mm)
	}
}

func TestAdvisories(t *testing.T) {
	hot := types.Event{
		TemperatureC: types.Float64(36),
		HumidityPct:  types.Float64(15),
		WindSpeedKmh: types.Float64(75),
		RainfallMM:   types.Float64(25),
	}
	assert.Equal(t, []string{AdvisoryHeat, AdvisoryDryAir, AdvisoryHighWind, AdvisoryHeavyRain}, Advisories(hot))

	frost := types.Event{TemperatureC: types.Float64(-2), HumidityPct: types.Float64(60)}
	assert.Equal(t, []string{AdvisoryFrost}, Advisories(frost))

	calm := types.Event{TemperatureC: types.Float64(35), HumidityPct: types.Float64(20), WindSpeedKmh: types.Float64(70), RainfallMM: types.Float64(20)}
	assert.Empty(t, Advisories(calm))

	assert.Empty(t, Advisories(types.Event{}))
}
