// Package collect enumerates live AWS resources per service type and
// normalizes them into the common Resource shape.
package collect

import (
	"context"
	"strings"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// Lister enumerates one AWS resource type. Adding a service means
// adding a Lister and registering it, nothing else.
type Lister interface {
	// Type is the persisted resource type ("ec2", "rds", ...).
	Type() string
	// Tier decides when in the run this lister executes.
	Tier() types.Tier
	// List returns the live resources in the given region. Global
	// listers ignore the region argument and pin us-east-1 themselves.
	List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error)
}

// Registry returns all listers in tier order: critical first, then
// global, then regional.
func Registry() []Lister {
	return []Lister{
		// Critical - highest-value, most commonly misconfigured.
		&EC2Lister{},
		&RDSLister{},

		// Global - queried once per run, pinned to us-east-1.
		&CloudFrontLister{},
		&WAFLister{Scope: WAFScopeCloudFront},
		&S3Lister{},

		// Regional - everything else, per configured region.
		&LoadBalancerLister{},
		&ECSLister{},
		&LambdaLister{},
		&APIGatewayLister{},
		&WAFLister{Scope: WAFScopeRegional},
		&DynamoDBLister{},
		&SQSLister{},
	}
}

// ByTier filters the registry down to one tier, preserving order.
func ByTier(listers []Lister, tier types.Tier) []Lister {
	var out []Lister
	for _, l := range listers {
		if l.Tier() == tier {
			out = append(out, l)
		}
	}
	return out
}

// arnSuffix returns the portion of an ARN after the given marker, or
// the whole ARN when the marker is absent.
func arnSuffix(arn, marker string) string {
	if at := strings.Index(arn, marker); at >= 0 {
		return arn[at+len(marker):]
	}
	return arn
}

// lastSegment returns the text after the final "/" (queue URLs,
// service ARNs).
func lastSegment(s string) string {
	if at := strings.LastIndex(s, "/"); at >= 0 {
		return s[at+1:]
	}
	return s
}
