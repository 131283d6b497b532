package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FloodRiskLevel is the categorical flood risk reported with an event.
type FloodRiskLevel string

const (
	FloodRiskLow      FloodRiskLevel = "low"
	FloodRiskModerate FloodRiskLevel = "moderate"
	FloodRiskHigh     FloodRiskLevel = "high"
	FloodRiskExtreme  FloodRiskLevel = "extreme"
)

// FloodRiskLevels lists the known levels from lowest to highest.
var FloodRiskLevels = []FloodRiskLevel{FloodRiskLow, FloodRiskModerate, FloodRiskHigh, FloodRiskExtreme}

// Valid reports whether l is one of the known levels. Unknown levels are
// stored as-is; they just never satisfy a flood predicate.
func (l FloodRiskLevel) Valid() bool {
	switch l {
	case FloodRiskLow, FloodRiskModerate, FloodRiskHigh, FloodRiskExtreme:
		return true
	}
	return false
}

// Event sources.
const (
	SourceSynthetic      = "synthetic"
	SourceOpenWeatherMap = "OpenWeatherMap"
)

// Field names as they appear on the wire and in storage.
const (
	FieldSoilMoisture   = "soil_moisture"
	FieldTemperatureC   = "temperature_c"
	FieldHumidity       = "humidity_percent"
	FieldRainfallMM     = "rainfall_mm"
	FieldWindSpeedKmh   = "wind_speed_kmh"
	FieldHailDetected   = "hail_detected"
	FieldFloodRiskLevel = "flood_risk_level"
	FieldAnimalAlert    = "animal_alert"
)

// Event is one environmental observation. It is written once by a producer
// (generator or weather poller) and never updated afterwards.
//
// Measurements are pointers so that a reading absent from the stored record
// stays distinguishable from a zero reading.
type Event struct {
	ID        string    `json:"_id"`
	Timestamp Timestamp `json:"timestamp"`
	Location  string    `json:"location"`
	EventType string    `json:"event_type"`

	SoilMoisture   *float64        `json:"soil_moisture,omitempty"`
	TemperatureC   *float64        `json:"temperature_c,omitempty"`
	HumidityPct    *float64        `json:"humidity_percent,omitempty"`
	RainfallMM     *float64        `json:"rainfall_mm,omitempty"`
	WindSpeedKmh   *float64        `json:"wind_speed_kmh,omitempty"`
	HailDetected   *bool           `json:"hail_detected,omitempty"`
	FloodRiskLevel *FloodRiskLevel `json:"flood_risk_level,omitempty"`
	AnimalAlert    *bool           `json:"animal_alert,omitempty"`

	AlertTriggered bool                `json:"alert_triggered"`
	Source         string              `json:"source,omitempty"`
	Observation    *ObservationDetails `json:"observation,omitempty"`
}

// ObservationDetails carries the provider fields a live weather reading has
// beyond the common event shape. Stored as JSONB.
type ObservationDetails struct {
	FeelsLikeC         float64   `json:"feels_like_c"`
	PressureHPa        float64   `json:"pressure_hpa"`
	WindDirectionDeg   float64   `json:"wind_direction"`
	CloudsPercent      float64   `json:"clouds_percent"`
	VisibilityKm       float64   `json:"visibility_km"`
	WeatherMain        string    `json:"weather_main"`
	WeatherDescription string    `json:"weather_description"`
	WeatherIcon        string    `json:"weather_icon"`
	Sunrise            Timestamp `json:"sunrise"`
	Sunset             Timestamp `json:"sunset"`
	IsRealTime         bool      `json:"is_real_time"`
}

var (
	_ sql.Scanner   = (*ObservationDetails)(nil)
	_ driver.Valuer = ObservationDetails{}
)

// Value implements driver.Valuer for JSONB storage.
func (o ObservationDetails) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (o *ObservationDetails) Scan(value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("observation: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, o)
}

// Float64 returns a pointer to v. Producers use it to fill measurements.
func Float64(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// FloodRisk returns a pointer to l.
func FloodRisk(l FloodRiskLevel) *FloodRiskLevel { return &l }
