package docstore

import (
	"time"

	"caliseed/internal/types"
)

// eventDoc is the stored shape of an event. Absent measurements are omitted
// so they read back as nil.
type eventDoc struct {
	Timestamp      time.Time       `firestore:"timestamp"`
	Location       string          `firestore:"location"`
	EventType      string          `firestore:"event_type"`
	SoilMoisture   *float64        `firestore:"soil_moisture,omitempty"`
	TemperatureC   *float64        `firestore:"temperature_c,omitempty"`
	HumidityPct    *float64        `firestore:"humidity_percent,omitempty"`
	RainfallMM     *float64        `firestore:"rainfall_mm,omitempty"`
	WindSpeedKmh   *float64        `firestore:"wind_speed_kmh,omitempty"`
	HailDetected   *bool           `firestore:"hail_detected,omitempty"`
	FloodRiskLevel *string         `firestore:"flood_risk_level,omitempty"`
	AnimalAlert    *bool           `firestore:"animal_alert,omitempty"`
	AlertTriggered bool            `firestore:"alert_triggered"`
	Source         string          `firestore:"source,omitempty"`
	Observation    *observationDoc `firestore:"observation,omitempty"`
}

type observationDoc struct {
	FeelsLikeC         float64   `firestore:"feels_like_c"`
	PressureHPa        float64   `firestore:"pressure_hpa"`
	WindDirectionDeg   float64   `firestore:"wind_direction_deg"`
	CloudsPercent      float64   `firestore:"clouds_percent"`
	VisibilityKm       float64   `firestore:"visibility_km"`
	WeatherMain        string    `firestore:"weather_main"`
	WeatherDescription string    `firestore:"weather_description"`
	WeatherIcon        string    `firestore:"weather_icon"`
	Sunrise            time.Time `firestore:"sunrise,omitempty"`
	Sunset             time.Time `firestore:"sunset,omitempty"`
	IsRealTime         bool      `firestore:"is_real_time"`
}

type alertDoc struct {
	Timestamp      time.Time `firestore:"timestamp"`
	Location       string    `firestore:"location"`
	EventType      string    `firestore:"event_type"`
	DetectedAlerts []string  `firestore:"detected_alerts"`
	OriginalID     string    `firestore:"original_id"`
}

func toEventDoc(e types.Event) eventDoc {
	d := eventDoc{
		Timestamp:      e.Timestamp.UTC(),
		Location:       e.Location,
		EventType:      e.EventType,
		SoilMoisture:   e.SoilMoisture,
		TemperatureC:   e.TemperatureC,
		HumidityPct:    e.HumidityPct,
		RainfallMM:     e.RainfallMM,
		WindSpeedKmh:   e.WindSpeedKmh,
		HailDetected:   e.HailDetected,
		AnimalAlert:    e.AnimalAlert,
		AlertTriggered: e.AlertTriggered,
		Source:         e.Source,
	}
	if e.FloodRiskLevel != nil {
		s := string(*e.FloodRiskLevel)
		d.FloodRiskLevel = &s
	}
	if o := e.Observation; o != nil {
		d.Observation = &observationDoc{
			FeelsLikeC:         o.FeelsLikeC,
			PressureHPa:        o.PressureHPa,
			WindDirectionDeg:   o.WindDirectionDeg,
			CloudsPercent:      o.CloudsPercent,
			VisibilityKm:       o.VisibilityKm,
			WeatherMain:        o.WeatherMain,
			WeatherDescription: o.WeatherDescription,
			WeatherIcon:        o.WeatherIcon,
			Sunrise:            o.Sunrise.Time,
			Sunset:             o.Sunset.Time,
			IsRealTime:         o.IsRealTime,
		}
	}
	return d
}

func (d eventDoc) event(id string) types.Event {
	e := types.Event{
		ID:             id,
		Timestamp:      types.NewTimestamp(d.Timestamp),
		Location:       d.Location,
		EventType:      d.EventType,
		SoilMoisture:   d.SoilMoisture,
		TemperatureC:   d.TemperatureC,
		HumidityPct:    d.HumidityPct,
		RainfallMM:     d.RainfallMM,
		WindSpeedKmh:   d.WindSpeedKmh,
		HailDetected:   d.HailDetected,
		AnimalAlert:    d.AnimalAlert,
		AlertTriggered: d.AlertTriggered,
		Source:         d.Source,
	}
	if d.FloodRiskLevel != nil {
		e.FloodRiskLevel = types.FloodRisk(types.FloodRiskLevel(*d.FloodRiskLevel))
	}
	if o := d.Observation; o != nil {
		e.Observation = &types.ObservationDetails{
			FeelsLikeC:         o.FeelsLikeC,
			PressureHPa:        o.PressureHPa,
			WindDirectionDeg:   o.WindDirectionDeg,
			CloudsPercent:      o.CloudsPercent,
			VisibilityKm:       o.VisibilityKm,
			WeatherMain:        o.WeatherMain,
			WeatherDescription: o.WeatherDescription,
			WeatherIcon:        o.WeatherIcon,
			IsRealTime:         o.IsRealTime,
		}
		if !o.Sunrise.IsZero() {
			e.Observation.Sunrise = types.NewTimestamp(o.Sunrise)
		}
		if !o.Sunset.IsZero() {
			e.Observation.Sunset = types.NewTimestamp(o.Sunset)
		}
	}
	return e
}

func toAlertDoc(a types.Alert) alertDoc {
	return alertDoc{
		Timestamp:      a.Timestamp.UTC(),
		Location:       a.Location,
		EventType:      a.EventType,
		DetectedAlerts: append([]string(nil), a.DetectedAlerts...),
		OriginalID:     a.OriginalID,
	}
}

func (d alertDoc) alert(id string) types.Alert {
	return types.Alert{
		ID:             id,
		Timestamp:      types.NewTimestamp(d.Timestamp),
		Location:       d.Location,
		EventType:      d.EventType,
		DetectedAlerts: d.DetectedAlerts,
		OriginalID:     d.OriginalID,
	}
}
