package collect

import (
	"context"
	"fmt"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// CloudFrontLister enumerates distributions. CloudFront is global:
// calls are always signed for us-east-1 regardless of the account's
// configured regions, and rows persist with region "global".
type CloudFrontLister struct{}

func (l *CloudFrontLister) Type() string     { return "cloudfront" }
func (l *CloudFrontLister) Tier() types.Tier { return types.TierGlobal }

func (l *CloudFrontLister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, _ string) ([]types.Resource, error) {
	body, err := client.REST(ctx, creds, "cloudfront", "us-east-1", "GET", "/2020-05-31/distribution", nil)
	if err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}

	section, ok := awsxml.Section(string(body), "DistributionList")
	if !ok {
		return nil, nil
	}

	var resources []types.Resource
	for _, block := range awsxml.Blocks(section, "Id", "DistributionSummary") {
		id := awsxml.Field(block, "Id")
		if id == "" {
			continue
		}

		name := awsxml.FieldOr(block, "DomainName", id)
		resources = append(resources, types.Resource{
			Type:   l.Type(),
			ID:     id,
			Name:   name,
			Region: types.RegionGlobal,
			Status: awsxml.FieldOr(block, "Status", "unknown"),
			Metadata: map[string]string{
				"domain_name": awsxml.Field(block, "DomainName"),
				"enabled":     awsxml.Field(block, "Enabled"),
				"comment":     awsxml.Field(block, "Comment"),
			},
		})
	}
	return resources, nil
}
