package collect

import (
	"context"
	"fmt"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// APIGatewayLister enumerates REST APIs expanded per deployed stage,
// because CloudWatch dimensions an API by (ApiName, Stage). The
// resource id is "{apiName}::{stage}".
type APIGatewayLister struct{}

func (l *APIGatewayLister) Type() string     { return "apigateway" }
func (l *APIGatewayLister) Tier() types.Tier { return types.TierRegional }

func (l *APIGatewayLister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error) {
	body, err := client.REST(ctx, creds, "apigateway", region, "GET", "/restapis", nil)
	if err != nil {
		return nil, fmt.Errorf("list rest apis: %w", err)
	}

	apis, err := awsxml.UnwrapJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decode rest api list: %w", err)
	}

	var resources []types.Resource
	for _, api := range apis {
		apiID := awsxml.Str(api, "id")
		apiName := awsxml.Str(api, "name")
		if apiID == "" {
			continue
		}
		if apiName == "" {
			apiName = apiID
		}

		stages := l.listStages(ctx, client, creds, region, apiID)
		for _, stage := range stages {
			resources = append(resources, types.Resource{
				Type:   l.Type(),
				ID:     apiName + "::" + stage,
				Name:   apiName,
				Region: region,
				Status: "available",
				Metadata: map[string]string{
					"api_id":   apiID,
					"api_name": apiName,
					"stage":    stage,
				},
			})
		}
	}
	return resources, nil
}

// listStages returns the deployed stage names of one API. Stage
// discovery failure falls back to a single synthetic "prod" stage so
// the API is reported rather than dropped.
func (l *APIGatewayLister) listStages(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region, apiID string) []string {
	body, err := client.REST(ctx, creds, "apigateway", region, "GET", "/restapis/"+apiID+"/stages", nil)
	if err != nil {
		return []string{"prod"}
	}

	items, err := awsxml.UnwrapJSON(body)
	if err != nil || len(items) == 0 {
		return []string{"prod"}
	}

	var stages []string
	for _, item := range items {
		if name := awsxml.Str(item, "stageName"); name != "" {
			stages = append(stages, name)
		}
	}
	if len(stages) == 0 {
		return []string{"prod"}
	}
	return stages
}
