package collect

import (
	"context"
	"fmt"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// LoadBalancerLister enumerates ALBs and NLBs. Both come back from a
// single DescribeLoadBalancers call and are disambiguated client-side
// by the Type field.
type LoadBalancerLister struct{}

func (l *LoadBalancerLister) Type() string     { return "loadbalancer" }
func (l *LoadBalancerLister) Tier() types.Tier { return types.TierRegional }

func (l *LoadBalancerLister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error) {
	body, err := client.Query(ctx, creds, "elasticloadbalancing", region, "DescribeLoadBalancers", "2015-12-01", nil)
	if err != nil {
		return nil, fmt.Errorf("describe load balancers: %w", err)
	}

	section, ok := awsxml.Section(body, "LoadBalancers")
	if !ok {
		return nil, nil
	}

	var resources []types.Resource
	for _, block := range awsxml.Blocks(section, "LoadBalancerArn") {
		arn := awsxml.Field(block, "LoadBalancerArn")
		if arn == "" {
			continue
		}

		resourceType := "alb"
		if awsxml.Field(block, "Type") == "network" {
			resourceType = "nlb"
		}

		// CloudWatch dimensions an LB by the ARN's loadbalancer/ suffix;
		// it also substitutes for a missing name field.
		dimension := arnSuffix(arn, "loadbalancer/")
		name := awsxml.FieldOr(block, "LoadBalancerName", dimension)

		resources = append(resources, types.Resource{
			Type:   resourceType,
			ID:     dimension,
			Name:   name,
			Region: region,
			Status: awsxml.FieldOr(block, "Code", "unknown"),
			Metadata: map[string]string{
				"arn":      arn,
				"dns_name": awsxml.Field(block, "DNSName"),
				"scheme":   awsxml.Field(block, "Scheme"),
			},
		})
	}
	return resources, nil
}
