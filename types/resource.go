package types

import (
	"fmt"
	"time"
)

// RegionGlobal is the normalized region for CloudFront and
// CLOUDFRONT-scoped WAF resources.
const RegionGlobal = "global"

// Resource represents one collected AWS resource (EC2 instance,
// RDS database, load balancer, ...).
type Resource struct {
	AccountID      string            `json:"aws_account_id"`
	OrganizationID string            `json:"organization_id"`
	Type           string            `json:"resource_type"`
	ID             string            `json:"resource_id"`
	Name           string            `json:"resource_name"`
	Region         string            `json:"region"`
	Status         string            `json:"status"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	LastSeenAt     time.Time         `json:"last_seen_at"`
}

// NaturalKey returns the uniqueness key for a resource. Re-collection
// upserts on this key, it never duplicates rows.
func (r Resource) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.AccountID, r.Type, r.ID, r.Region)
}

// Meta reads a metadata value, "" when absent.
func (r Resource) Meta(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}

// ResourceFilter selects resources when reading back from storage.
type ResourceFilter struct {
	Type   string `json:"type,omitempty"`
	Region string `json:"region,omitempty"`
}

// Matches checks if a resource matches the filter criteria.
func (r Resource) Matches(filter ResourceFilter) bool {
	if filter.Type != "" && r.Type != filter.Type {
		return false
	}
	if filter.Region != "" && r.Region != filter.Region {
		return false
	}
	return true
}
