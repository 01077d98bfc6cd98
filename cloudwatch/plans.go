package cloudwatch

import "github.com/rafaesapata/AWS-EVO-sub014/types"

// MetricSpec names one metric to fetch for a resource type.
type MetricSpec struct {
	Namespace     string
	MetricName    string
	DimensionName string
}

// plans maps a resource type to the metrics collected for it.
var plans = map[string][]MetricSpec{
	"ec2": {
		{"AWS/EC2", "CPUUtilization", "InstanceId"},
		{"AWS/EC2", "NetworkIn", "InstanceId"},
		{"AWS/EC2", "NetworkOut", "InstanceId"},
	},
	"rds": {
		{"AWS/RDS", "CPUUtilization", "DBInstanceIdentifier"},
		{"AWS/RDS", "DatabaseConnections", "DBInstanceIdentifier"},
		{"AWS/RDS", "FreeableMemory", "DBInstanceIdentifier"},
	},
	"alb": {
		{"AWS/ApplicationELB", "RequestCount", "LoadBalancer"},
		{"AWS/ApplicationELB", "TargetResponseTime", "LoadBalancer"},
		{"AWS/ApplicationELB", "HTTPCode_Target_5XX_Count", "LoadBalancer"},
	},
	"nlb": {
		{"AWS/NetworkELB", "ActiveFlowCount", "LoadBalancer"},
		{"AWS/NetworkELB", "ProcessedBytes", "LoadBalancer"},
	},
	"ecs": {
		{"AWS/ECS", "CPUUtilization", "ServiceName"},
		{"AWS/ECS", "MemoryUtilization", "ServiceName"},
	},
	"lambda": {
		{"AWS/Lambda", "Invocations", "FunctionName"},
		{"AWS/Lambda", "Errors", "FunctionName"},
		{"AWS/Lambda", "Duration", "FunctionName"},
	},
	"apigateway": {
		{"AWS/ApiGateway", "Count", "ApiName"},
		{"AWS/ApiGateway", "Latency", "ApiName"},
		{"AWS/ApiGateway", "5XXError", "ApiName"},
	},
	"s3": {
		{"AWS/S3", "BucketSizeBytes", "BucketName"},
		{"AWS/S3", "NumberOfObjects", "BucketName"},
	},
	"cloudfront": {
		{"AWS/CloudFront", "Requests", "DistributionId"},
		{"AWS/CloudFront", "BytesDownloaded", "DistributionId"},
	},
	"waf": {
		{"AWS/WAFV2", "AllowedRequests", "WebACL"},
		{"AWS/WAFV2", "BlockedRequests", "WebACL"},
	},
	"dynamodb": {
		{"AWS/DynamoDB", "ConsumedReadCapacityUnits", "TableName"},
		{"AWS/DynamoDB", "ConsumedWriteCapacityUnits", "TableName"},
	},
	"sqs": {
		{"AWS/SQS", "NumberOfMessagesSent", "QueueName"},
		{"AWS/SQS", "ApproximateNumberOfMessagesVisible", "QueueName"},
	},
}

// PlansFor returns the metric specs for a resource type, nil when the
// type has no metric plan.
func PlansFor(resourceType string) []MetricSpec {
	return plans[resourceType]
}

// DimensionValue returns the primary dimension value for a resource.
// API Gateway is dimensioned by the API name, never by the synthetic
// "{apiName}::{stage}" composite id, and AWS/WAFV2 keys WebACL by the
// ACL name rather than its id.
func DimensionValue(r types.Resource) string {
	switch r.Type {
	case "apigateway":
		if name := r.Meta("api_name"); name != "" {
			return name
		}
		return r.Name
	case "waf":
		if r.Name != "" {
			return r.Name
		}
	}
	return r.ID
}

// ExtraDimensions returns additional dimensions some namespaces
// require to address a resource.
func ExtraDimensions(r types.Resource) map[string]string {
	switch r.Type {
	case "ecs":
		if cluster := r.Meta("cluster_name"); cluster != "" {
			return map[string]string{"ClusterName": cluster}
		}
	case "apigateway":
		if stage := r.Meta("stage"); stage != "" {
			return map[string]string{"Stage": stage}
		}
	case "s3":
		return map[string]string{"StorageType": "StandardStorage"}
	case "waf":
		return map[string]string{"Rule": "ALL"}
	case "cloudfront":
		// AWS/CloudFront series exist only under Region=Global.
		return map[string]string{"Region": "Global"}
	}
	return nil
}

// MetricRegion maps a resource's persisted region to the region its
// metrics live in. Global resources publish to us-east-1.
func MetricRegion(r types.Resource) string {
	if r.Region == types.RegionGlobal {
		return "us-east-1"
	}
	return r.Region
}
