package types

// Telemetry metric names for CloudWatch. All components use these constants.
const (
	MetricDetectionRun       = "DetectionRun"
	MetricEventsScanned      = "EventsScanned"
	MetricAlertsProduced     = "AlertsProduced"
	MetricEventsSkipped      = "EventsSkipped"
	MetricDetectionDuration  = "DetectionDuration"
	MetricObservationsStored = "ObservationsStored"
	MetricExternalAPIFailure = "ExternalAPIFailure"

	DimResult   = "Result"
	DimProvider = "Provider"
	DimLocation = "Location"

	MetricNamespace = "CaliSeed"
)
