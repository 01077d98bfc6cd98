package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// LambdaLister enumerates Lambda functions via the path-based REST API.
type LambdaLister struct{}

func (l *LambdaLister) Type() string     { return "lambda" }
func (l *LambdaLister) Tier() types.Tier { return types.TierRegional }

func (l *LambdaLister) List(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) ([]types.Resource, error) {
	body, err := client.REST(ctx, creds, "lambda", region, "GET", "/2015-03-31/functions/", nil)
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}

	var out struct {
		Functions []map[string]any `json:"Functions"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode function list: %w", err)
	}

	var resources []types.Resource
	for _, fn := range out.Functions {
		name := awsxml.Str(fn, "FunctionName")
		if name == "" {
			continue
		}

		memory := ""
		if v, ok := fn["MemorySize"].(float64); ok {
			memory = strconv.Itoa(int(v))
		}

		resources = append(resources, types.Resource{
			Type:   l.Type(),
			ID:     name,
			Name:   name,
			Region: region,
			Status: "active",
			Metadata: map[string]string{
				"runtime":     awsxml.Str(fn, "Runtime"),
				"memory_mb":   memory,
				"arn":         awsxml.Str(fn, "FunctionArn"),
				"last_update": awsxml.Str(fn, "LastModified"),
			},
		})
	}
	return resources, nil
}
