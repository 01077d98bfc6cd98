package collect

import (
	"context"
	"fmt"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// EC2Lister enumerates EC2 instances.
type EC2Lister struct{}

func (l *EC2Lister) Type() string     { return "ec2" }
func (l *EC2Lister) Tier() types.Tier { return types.TierCritical }

func (l *EC2Lister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error) {
	body, err := client.Query(ctx, creds, "ec2", region, "DescribeInstances", "2016-11-15", nil)
	if err != nil {
		return nil, fmt.Errorf("describe instances: %w", err)
	}

	section, ok := awsxml.Section(body, "reservationSet")
	if !ok {
		return nil, nil
	}

	var resources []types.Resource
	for _, block := range awsxml.Blocks(section, "instanceId") {
		id := awsxml.Field(block, "instanceId")
		if id == "" {
			continue
		}

		name := awsxml.TagValue(block, "Name")
		if name == "" {
			name = id
		}

		resources = append(resources, types.Resource{
			Type:   l.Type(),
			ID:     id,
			Name:   name,
			Region: region,
			Status: awsxml.FieldOr(block, "name", "unknown"),
			Metadata: map[string]string{
				"instance_type":     awsxml.Field(block, "instanceType"),
				"availability_zone": awsxml.Field(block, "availabilityZone"),
				"private_ip":        awsxml.Field(block, "privateIpAddress"),
				"launch_time":       awsxml.Field(block, "launchTime"),
			},
		})
	}
	return resources, nil
}
