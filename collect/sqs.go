package collect

import (
	"context"
	"fmt"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// SQSLister enumerates SQS queues.
type SQSLister struct{}

func (l *SQSLister) Type() string     { return "sqs" }
func (l *SQSLister) Tier() types.Tier { return types.TierRegional }

func (l *SQSLister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error) {
	body, err := client.Query(ctx, creds, "sqs", region, "ListQueues", "2012-11-05", nil)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}

	section, ok := awsxml.Section(body, "ListQueuesResult")
	if !ok {
		return nil, nil
	}

	var resources []types.Resource
	for _, queueURL := range awsxml.Values(section, "QueueUrl") {
		name := lastSegment(queueURL)
		resources = append(resources, types.Resource{
			Type:   l.Type(),
			ID:     name,
			Name:   name,
			Region: region,
			Status: "active",
			Metadata: map[string]string{
				"queue_url": queueURL,
			},
		})
	}
	return resources, nil
}
