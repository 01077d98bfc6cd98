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

const ecsTarget = "AmazonEC2ContainerServiceV20141113"

// ECSLister enumerates ECS services. Clusters are listed first; each
// cluster ARN is then expanded into its services. An empty cluster
// list means no resources - there is no "default" cluster guess.
type ECSLister struct{}

func (l *ECSLister) Type() string     { return "ecs" }
func (l *ECSLister) Tier() types.Tier { return types.TierRegional }

func (l *ECSLister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error) {
	clusters, err := l.listClusters(ctx, client, creds, region)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, nil
	}

	var resources []types.Resource
	for _, clusterArn := range clusters {
		services, err := l.listServices(ctx, client, creds, region, clusterArn)
		if err != nil {
			return nil, err
		}

		clusterName := lastSegment(clusterArn)
		for _, serviceArn := range services {
			serviceName := lastSegment(serviceArn)
			resources = append(resources, types.Resource{
				Type:   l.Type(),
				ID:     serviceName,
				Name:   serviceName,
				Region: region,
				Status: "active",
				Metadata: map[string]string{
					"cluster_name": clusterName,
					"cluster_arn":  clusterArn,
					"service_arn":  serviceArn,
				},
			})
		}
	}
	return resources, nil
}

func (l *ECSLister) listClusters(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]string, error) {
	body, err := client.JSONTarget(ctx, creds, "ecs", region, ecsTarget+".ListClusters", nil)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode cluster list: %w", err)
	}
	return awsxml.StrList(out, "clusterArns"), nil
}

func (l *ECSLister) listServices(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region, clusterArn string) ([]string, error) {
	body, err := client.JSONTarget(ctx, creds, "ecs", region, ecsTarget+".ListServices",
		map[string]string{"cluster": clusterArn})
	if err != nil {
		return nil, fmt.Errorf("list services for %s: %w", lastSegment(clusterArn), err)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode service list: %w", err)
	}
	return awsxml.StrList(out, "serviceArns"), nil
}
