package collect

import (
	"context"
	"fmt"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// RDSLister enumerates RDS database instances.
type RDSLister struct{}

func (l *RDSLister) Type() string     { return "rds" }
func (l *RDSLister) Tier() types.Tier { return types.TierCritical }

func (l *RDSLister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error) {
	body, err := client.Query(ctx, creds, "rds", region, "DescribeDBInstances", "2014-10-31", nil)
	if err != nil {
		return nil, fmt.Errorf("describe db instances: %w", err)
	}

	section, ok := awsxml.Section(body, "DBInstances")
	if !ok {
		return nil, nil
	}

	var resources []types.Resource
	for _, block := range awsxml.Blocks(section, "DBInstanceIdentifier", "DBInstance") {
		id := awsxml.Field(block, "DBInstanceIdentifier")
		if id == "" {
			continue
		}

		resources = append(resources, types.Resource{
			Type:   l.Type(),
			ID:     id,
			Name:   id,
			Region: region,
			Status: awsxml.FieldOr(block, "DBInstanceStatus", "unknown"),
			Metadata: map[string]string{
				"engine":         awsxml.Field(block, "Engine"),
				"engine_version": awsxml.Field(block, "EngineVersion"),
				"instance_class": awsxml.Field(block, "DBInstanceClass"),
				"endpoint":       awsxml.Field(block, "Address"),
				"multi_az":       awsxml.Field(block, "MultiAZ"),
			},
		})
	}
	return resources, nil
}
