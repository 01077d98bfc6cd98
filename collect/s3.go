package collect

import (
	"context"
	"fmt"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// S3Lister enumerates buckets. ListAllMyBuckets is account-wide, so
// it runs in the global tier: signed once for us-east-1 and persisted
// with region "global" to keep one row per bucket.
type S3Lister struct{}

func (l *S3Lister) Type() string     { return "s3" }
func (l *S3Lister) Tier() types.Tier { return types.TierGlobal }

func (l *S3Lister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, _ string) ([]types.Resource, error) {
	body, err := client.REST(ctx, creds, "s3", "us-east-1", "GET", "/", nil)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	section, ok := awsxml.Section(string(body), "Buckets")
	if !ok {
		return nil, nil
	}

	var resources []types.Resource
	for _, block := range awsxml.Blocks(section, "Name", "Bucket") {
		name := awsxml.Field(block, "Name")
		if name == "" {
			continue
		}

		resources = append(resources, types.Resource{
			Type:   l.Type(),
			ID:     name,
			Name:   name,
			Region: types.RegionGlobal,
			Status: "active",
			Metadata: map[string]string{
				"creation_date": awsxml.Field(block, "CreationDate"),
			},
		})
	}
	return resources, nil
}
