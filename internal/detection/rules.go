// Package detection classifies environmental events against the fixed alert
// rule table and materializes the resulting alerts.
//
// The rule table is a build-time constant. Adding or removing a rule is an
// edit to the rules slice; the evaluation loop never changes.
package detection

import (
	"errors"
	"fmt"

	"caliseed/internal/types"
)

// Thresholds.
const (
	TemperatureMaxC    = 40.0
	HumidityMinPercent = 15.0
	RainfallMaxMM      = 120.0
	WindMaxKmh         = 80.0
)

// Labels are user-facing and stored verbatim in detected_alerts.
const (
	LabelExtremeTemperature = "Temperatura extrema"
	LabelCriticalHumidity   = "Humedad Crítica"
	LabelSevereStorm        = "Posible DANA(tormenta grave)"
	LabelHail               = "Granizo Detectado"
	LabelFloodRisk          = "Riesgo de inundación"
	LabelAnimalRisk         = "Riesgo para animales"
)

// ErrMissingField is matched by errors.Is for any MissingFieldError.
var ErrMissingField = errors.New("missing field")

// MissingFieldError reports that an event lacks a measurement the rules need.
type MissingFieldError struct {
	EventID string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("detection: event %s: missing field %q", e.EventID, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

// AppError converts the failure into the application error taxonomy.
func (e *MissingFieldError) AppError() *types.AppError {
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"event is missing a required measurement",
		e,
		map[string]any{"event_id": e.EventID, "field": e.Field},
	)
}

// reading is an event with every rule input resolved.
type reading struct {
	temperatureC float64
	humidityPct  float64
	rainfallMM   float64
	windKmh      float64
	hail         bool
	floodLevel   types.FloodRiskLevel
	animal       bool
}

// rule pairs a predicate with the label it contributes.
type rule struct {
	Name  string
	Label string
	Match func(r reading) bool
}

// rules is evaluated top to bottom. Output order follows this slice.
var rules = []rule{
	{
		Name:  "extreme_temperature",
		Label: LabelExtremeTemperature,
		Match: func(r reading) bool { return r.temperatureC > TemperatureMaxC },
	},
	{
		Name:  "critical_humidity",
		Label: LabelCriticalHumidity,
		Match: func(r reading) bool { return r.humidityPct < HumidityMinPercent },
	},
	{
		Name:  "severe_storm",
		Label: LabelSevereStorm,
		Match: func(r reading) bool { return r.rainfallMM > RainfallMaxMM && r.windKmh > WindMaxKmh },
	},
	{
		Name:  "hail",
		Label: LabelHail,
		Match: func(r reading) bool { return r.hail },
	},
	{
		Name:  "flood_risk",
		Label: LabelFloodRisk,
		Match: func(r reading) bool {
			return r.floodLevel == types.FloodRiskHigh || r.floodLevel == types.FloodRiskExtreme
		},
	},
	{
		Name:  "animal_risk",
		Label: LabelAnimalRisk,
		Match: func(r reading) bool { return r.animal },
	},
}

// Labels returns every label the rule table can produce, in check order.
func Labels() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Label
	}
	return out
}

// Evaluate returns the labels of every rule e satisfies, in table order. The
// result is empty (not nil) when nothing fires. A nil rule input yields a
// *MissingFieldError and no labels.
func Evaluate(e types.Event) ([]string, error) {
	r, err := resolve(e)
	if err != nil {
		return nil, err
	}

	labels := []string{}
	for _, rl := range rules {
		if rl.Match(r) {
			labels = append(labels, rl.Label)
		}
	}
	return labels, nil
}

// resolve dereferences the rule inputs in check order so the first absent one
// is the one reported.
func resolve(e types.Event) (reading, error) {
	missing := func(field string) (reading, error) {
		return reading{}, &MissingFieldError{EventID: e.ID, Field: field}
	}

	switch {
	case e.TemperatureC == nil:
		return missing(types.FieldTemperatureC)
	case e.HumidityPct == nil:
		return missing(types.FieldHumidity)
	case e.RainfallMM == nil:
		return missing(types.FieldRainfallMM)
	case e.WindSpeedKmh == nil:
		return missing(types.FieldWindSpeedKmh)
	case e.HailDetected == nil:
		return missing(types.FieldHailDetected)
	case e.FloodRiskLevel == nil:
		return missing(types.FieldFloodRiskLevel)
	case e.AnimalAlert == nil:
		return missing(types.FieldAnimalAlert)
	}

	return reading{
		temperatureC: *e.TemperatureC,
		humidityPct:  *e.HumidityPct,
		rainfallMM:   *e.RainfallMM,
		windKmh:      *e.WindSpeedKmh,
		hail:         *e.HailDetected,
		floodLevel:   *e.FloodRiskLevel,
		animal:       *e.AnimalAlert,
	}, nil
}
