package types

import "time"

// Tier orders resource types within a collection run. Critical types
// are processed first so the highest-value resources are visible even
// if later tiers fail entirely.
type Tier int

const (
	TierCritical Tier = iota
	TierGlobal
	TierRegional
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierGlobal:
		return "global"
	case TierRegional:
		return "regional"
	default:
		return "unknown"
	}
}

// PermissionError records a failed (service, region) collection unit.
// It lives only in the run's response payload, it is never persisted.
type PermissionError struct {
	ResourceType       string   `json:"resource_type"`
	Region             string   `json:"region"`
	Error              string   `json:"error"`
	MissingPermissions []string `json:"missing_permissions"`
}

// CollectionResult aggregates one orchestrator invocation.
type CollectionResult struct {
	Success          bool              `json:"success"`
	ResourcesFound   int               `json:"resources_found"`
	MetricsCollected int               `json:"metrics_collected"`
	PermissionErrors []PermissionError `json:"permission_errors,omitempty"`
	StartTime        time.Time         `json:"start_time"`
	Duration         time.Duration     `json:"duration"`
}

// Event is one normalized CloudTrail audit event.
type Event struct {
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	EventTime  time.Time `json:"event_time"`
	Username   string    `json:"username"`
	Source     string    `json:"event_source,omitempty"`
	Region     string    `json:"aws_region,omitempty"`
	SourceIP   string    `json:"source_ip,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
}

// EventLookupResult is the response payload for a CloudTrail lookup.
type EventLookupResult struct {
	Success bool    `json:"success"`
	Events  []Event `json:"events"`
	Count   int     `json:"count"`
}
