package collect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// DynamoDBLister enumerates DynamoDB tables.
type DynamoDBLister struct{}

func (l *DynamoDBLister) Type() string     { return "dynamodb" }
func (l *DynamoDBLister) Tier() types.Tier { return types.TierRegional }

func (l *DynamoDBLister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error) {
	body, err := client.JSONTarget(ctx, creds, "dynamodb", region, "DynamoDB_20120810.ListTables", nil)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode table list: %w", err)
	}

	var resources []types.Resource
	for _, name := range awsxml.StrList(out, "TableNames") {
		resources = append(resources, types.Resource{
			Type:     l.Type(),
			ID:       name,
			Name:     name,
			Region:   region,
			Status:   "active",
			Metadata: map[string]string{},
		})
	}
	return resources, nil
}
