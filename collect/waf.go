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

// WAF scopes. CLOUDFRONT-scoped ACLs live in a global namespace served
// from us-east-1; REGIONAL ACLs exist per region. The two namespaces
// are independent, so results merge without deduplication.
const (
	WAFScopeCloudFront = "CLOUDFRONT"
	WAFScopeRegional   = "REGIONAL"
)

// WAFLister enumerates WAFv2 web ACLs for one scope.
type WAFLister struct {
	Scope string
}

func (l *WAFLister) Type() string { return "waf" }

func (l *WAFLister) Tier() types.Tier {
	if l.Scope == WAFScopeCloudFront {
		return types.TierGlobal
	}
	return types.TierRegional
}

func (l *WAFLister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error) {
	persistRegion := region
	if l.Scope == WAFScopeCloudFront {
		region = "us-east-1"
		persistRegion = types.RegionGlobal
	}

	body, err := client.JSONTarget(ctx, creds, "wafv2", region, "AWSWAF_20190729.ListWebACLs",
		map[string]any{"Scope": l.Scope, "Limit": 100})
	if err != nil {
		return nil, fmt.Errorf("list web acls (%s): %w", l.Scope, err)
	}

	var out struct {
		WebACLs []map[string]any `json:"WebACLs"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode web acl list: %w", err)
	}

	var resources []types.Resource
	for _, acl := range out.WebACLs {
		id := awsxml.Str(acl, "Id")
		name := awsxml.Str(acl, "Name")
		if id == "" {
			continue
		}
		if name == "" {
			name = id
		}

		resources = append(resources, types.Resource{
			Type:   l.Type(),
			ID:     id,
			Name:   name,
			Region: persistRegion,
			Status: "active",
			Metadata: map[string]string{
				"scope": l.Scope,
				"arn":   awsxml.Str(acl, "ARN"),
			},
		})
	}
	return resources, nil
}
