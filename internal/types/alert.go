package types

// Alert is one detection outcome. DetectedAlerts is never empty: a record is
// only created when at least one rule fired. OriginalID is a back-reference to
// Event.ID and is not enforced as a foreign key.
type Alert struct {
	ID             string    `json:"_id"`
	Timestamp      Timestamp `json:"timestamp"`
	Location       string    `json:"location"`
	EventType      string    `json:"event_type"`
	DetectedAlerts []string  `json:"detected_alerts"`
	OriginalID     string    `json:"original_id"`
}

// DefaultListLimit is applied when a list query does not specify one.
const DefaultListLimit = 50

// MaxListLimit bounds list queries.
const MaxListLimit = 1000

// EventFilter selects events by exact match. Empty fields do not filter.
// Results are ordered by timestamp, newest first.
type EventFilter struct {
	Location  string
	EventType string
	Limit     int
}

// AlertFilter selects alerts by exact location match, newest first.
type AlertFilter struct {
	Location string
	Limit    int
}

// EffectiveLimit returns limit, or DefaultListLimit when limit is not positive.
func EffectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// GroupCount is one bucket of a grouped count. The JSON shape matches the
// document-store aggregation output consumers already parse.
type GroupCount struct {
	Key   string `json:"_id"`
	Count int64  `json:"count"`
}

// Stats is the aggregate view served by the stats endpoint.
type Stats struct {
	TotalEvents      int64        `json:"total_events"`
	TotalAlerts      int64        `json:"total_alerts"`
	EventsByLocation []GroupCount `json:"events_by_location"`
	AlertsByLocation []GroupCount `json:"alerts_by_location"`
	EventsByType     []GroupCount `json:"events_by_type"`
}
