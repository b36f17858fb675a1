package analytics

import "time"

type EventType string

const (
	EventRecommendation EventType = "recommendation"
	EventNotFound       EventType = "not_found"
	EventError          EventType = "error"
)

// RecommendationEvent records the outcome of one recommendation query.
type RecommendationEvent struct {
	Type      EventType `json:"type"`
	Movie     string    `json:"movie"`
	Limit     int       `json:"limit"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
