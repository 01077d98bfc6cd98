// Package classify maps raw AWS error text to a missing-permission
// set and a transient/fatal classification.
package classify

import (
	"regexp"
	"strings"
)

// Classification is the outcome for one raw error.
type Classification struct {
	MissingPermissions []string
	Transient          bool
}

// notAuthorizedRe extracts the exact IAM action from the standard
// IAM denial message.
var notAuthorizedRe = regexp.MustCompile(`not authorized to perform: ([A-Za-z0-9-]+:[A-Za-z0-9*]+)`)

// permissionTable maps a resource type to the IAM actions its
// enumeration and metric calls need. Used when AWS denies access
// without naming the action.
var permissionTable = map[string][]string{
	"ec2":          {"ec2:DescribeInstances"},
	"rds":          {"rds:DescribeDBInstances"},
	"alb":          {"elasticloadbalancing:DescribeLoadBalancers"},
	"nlb":          {"elasticloadbalancing:DescribeLoadBalancers"},
	"loadbalancer": {"elasticloadbalancing:DescribeLoadBalancers"},
	"ecs":          {"ecs:ListClusters", "ecs:ListServices"},
	"lambda":       {"lambda:ListFunctions"},
	"apigateway":   {"apigateway:GET"},
	"s3":           {"s3:ListAllMyBuckets"},
	"cloudfront":   {"cloudfront:ListDistributions"},
	"waf":          {"wafv2:ListWebACLs"},
	"dynamodb":     {"dynamodb:ListTables"},
	"sqs":          {"sqs:ListQueues"},
	"cloudwatch":   {"cloudwatch:GetMetricStatistics"},
	"cloudtrail":   {"cloudtrail:LookupEvents"},
}

var transientMarkers = []string{
	"context deadline exceeded",
	"client.timeout",
	"connection refused",
	"connection reset",
	"no such host",
	"throttl",
	"rate exceeded",
	"serviceunavailable",
	"requesttimeout",
}

var denialMarkers = []string{
	"accessdenied",
	"access denied",
	"unauthorizedoperation",
	"accessdeniedexception",
	"authorization",
	"403",
}

// Classify maps raw error text to a classification. The precedence is:
// exact IAM action from the denial message, then the static per-service
// table for generic denials, otherwise transient/unknown with no
// permission inferred.
func Classify(resourceType, rawError string) Classification {
	lower := strings.ToLower(rawError)

	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return Classification{Transient: true}
		}
	}

	if m := notAuthorizedRe.FindStringSubmatch(rawError); m != nil {
		return Classification{MissingPermissions: []string{m[1]}}
	}

	for _, marker := range denialMarkers {
		if strings.Contains(lower, marker) {
			if actions, ok := permissionTable[resourceType]; ok {
				return Classification{MissingPermissions: actions}
			}
			return Classification{MissingPermissions: nil}
		}
	}

	return Classification{Transient: true}
}

// KnownPermissions returns the static permission set for a resource
// type (nil for unknown types).
func KnownPermissions(resourceType string) []string {
	return permissionTable[resourceType]
}
