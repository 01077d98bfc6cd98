package types

import (
	"fmt"
	"time"
)

// MetricPoint is one CloudWatch datapoint bound to a collected resource.
type MetricPoint struct {
	AccountID  string             `json:"aws_account_id"`
	ResourceID string             `json:"resource_id"`
	MetricName string             `json:"metric_name"`
	Value      float64            `json:"value"`
	Unit       string             `json:"unit"`
	Timestamp  time.Time          `json:"timestamp"`
	Additional map[string]float64 `json:"additional_metrics,omitempty"`
}

// NaturalKey returns the uniqueness key for a datapoint. Overlapping
// timestamps across runs upsert instead of duplicating.
func (m MetricPoint) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s|%d", m.AccountID, m.ResourceID, m.MetricName, m.Timestamp.UTC().Unix())
}
