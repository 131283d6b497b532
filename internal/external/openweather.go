package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"caliseed/internal/types"
)

// EventTypeWeatherObservation is the event type of every reading ingested
// from a live weather provider.
const EventTypeWeatherObservation = "weather_observation"

// owmHailCode is the legacy OpenWeatherMap condition id for hail.
const owmHailCode = 906

// defaultVisibilityM is used when the provider omits visibility.
const defaultVisibilityM = 10000

// OpenWeatherConfig holds the settings NewOpenWeatherClient needs.
type OpenWeatherConfig struct {
	BaseURL  string
	APIKey   types.SecretString
	Language string
	Timeout  time.Duration
}

// OpenWeatherClient reads current conditions from the OpenWeatherMap
// "current weather" endpoint.
type OpenWeatherClient struct {
	*BaseClient
	baseURL  string
	apiKey   types.SecretString
	language string
	now      func() time.Time
}

// NewOpenWeatherClient creates a client. httpClient may be nil, in which case
// one with cfg.Timeout is created.
func NewOpenWeatherClient(httpClient *http.Client, cfg OpenWeatherConfig, opts ...BaseClientOption) *OpenWeatherClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	lang := cfg.Language
	if lang == "" {
		lang = "es"
	}
	return &OpenWeatherClient{
		BaseClient: NewBaseClient(httpClient, "openweathermap", DefaultRetryPolicy(), "CaliSeed-Poller/1.0", opts...),
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		language:   lang,
		now:        time.Now,
	}
}

// owmCurrent is the subset of the current weather response that is used.
type owmCurrent struct {
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Visibility *float64 `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

// owmError is the body OpenWeatherMap sends with non-2xx responses.
type owmError struct {
	Message string `json:"message"`
}

// Observe fetches current conditions at lat/lon and returns them as an event
// for location, timestamped with the poll time.
func (c *OpenWeatherClient) Observe(ctx context.Context, location string, lat, lon float64) (types.Event, error) {
	if c.apiKey.IsEmpty() {
		return types.Event{}, types.NewAppError(types.ErrCodeUpstreamAuth, "OpenWeatherMap API key is not configured", nil)
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey.Unmask())
	q.Set("units", "metric")
	q.Set("lang", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return types.Event{}, fmt.Errorf("external: build weather request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return types.Event{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Event{}, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to read weather response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oe owmError
		_ = json.Unmarshal(body, &oe)
		code := types.ErrCodeUpstreamWeather
		if resp.StatusCode == http.StatusUnauthorized {
			code = types.ErrCodeUpstreamAuth
		}
		return types.Event{}, types.NewAppErrorWithDetails(code,
			fmt.Sprintf("OpenWeatherMap returned %d for %s", resp.StatusCode, location), nil,
			map[string]any{"status": resp.StatusCode, "provider_message": oe.Message},
		)
	}

	var cur owmCurrent
	if err := json.Unmarshal(body, &cur); err != nil {
		return types.Event{}, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode weather response", err)
	}
	return normalize(location, cur, c.now()), nil
}

func normalize(location string, cur owmCurrent, at time.Time) types.Event {
	temp := round1(cur.Main.Temp)
	rain := cur.Rain.OneHour

	visibility := float64(defaultVisibilityM)
	if cur.Visibility != nil {
		visibility = *cur.Visibility
	}

	obs := &types.ObservationDetails{
		FeelsLikeC:       round1(cur.Main.FeelsLike),
		PressureHPa:      cur.Main.Pressure,
		WindDirectionDeg: cur.Wind.Deg,
		CloudsPercent:    cur.Clouds.All,
		VisibilityKm:     visibility / 1000,
		Sunrise:          unixTimestamp(cur.Sys.Sunrise),
		Sunset:           unixTimestamp(cur.Sys.Sunset),
		IsRealTime:       true,
	}
	hail := false
	if len(cur.Weather) > 0 {
		w := cur.Weather[0]
		obs.WeatherMain = w.Main
		obs.WeatherDescription = w.Description
		obs.WeatherIcon = w.Icon
		desc := strings.ToLower(w.Description)
		hail = w.ID == owmHailCode || strings.Contains(desc, "granizo") || strings.Contains(desc, "hail")
	}

	return types.Event{
		Timestamp:      types.NewTimestamp(at),
		Location:       location,
		EventType:      EventTypeWeatherObservation,
		TemperatureC:   types.Float64(temp),
		HumidityPct:    types.Float64(cur.Main.Humidity),
		RainfallMM:     types.Float64(rain),
		WindSpeedKmh:   types.Float64(round1(cur.Wind.Speed * 3.6)),
		HailDetected:   types.Bool(hail),
		FloodRiskLevel: types.FloodRisk(FloodRiskFromRain(rain)),
		AnimalAlert:    types.Bool(temp > 35 || temp < 0),
		Source:         types.SourceOpenWeatherMap,
		Observation:    obs,
	}
}

// FloodRiskFromRain grades one hour of rainfall in millimetres.
func FloodRiskFromRain(mm float64) types.FloodRiskLevel {
	switch {
	case mm < 10:
		return types.FloodRiskLow
	case mm < 30:
		return types.FloodRiskModerate
	case mm < 60:
		return types.FloodRiskHigh
	default:
		return types.FloodRiskExtreme
	}
}

func unixTimestamp(sec int64) types.Timestamp {
	if sec == 0 {
		return types.Timestamp{}
	}
	return types.NewTimestamp(time.Unix(sec, 0))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Advisory texts for live readings. These are operator hints logged by the
// poller; they are not alerts and are never written to the alert log.
const (
	AdvisoryHeat      = "Temperatura alta - Riesgo de ola de calor"
	AdvisoryFrost     = "Temperatura bajo cero - Riesgo de heladas"
	AdvisoryDryAir    = "Humedad muy baja - Riesgo de incendios"
	AdvisoryHighWind  = "Vientos fuertes - Posible tormenta"
	AdvisoryHeavyRain = "Lluvia intensa - Riesgo de inundación"
)

// Advisories returns the advisory texts that apply to e. Absent readings
// never trigger an advisory.
func Advisories(e types.Event) []string {
	var out []string
	if t := e.TemperatureC; t != nil {
		if *t > 35 {
			out = append(out, AdvisoryHeat)
		}
		if *t < 0 {
			out = append(out, AdvisoryFrost)
		}
	}
	if h := e.HumidityPct; h != nil && *h < 20 {
		out = append(out, AdvisoryDryAir)
	}
	if w := e.WindSpeedKmh; w != nil && *w > 70 {
		out = append(out, AdvisoryHighWind)
	}
	if r := e.RainfallMM; r != nil && *r > 20 {
		out = append(out, AdvisoryHeavyRain)
	}
	return out
}
