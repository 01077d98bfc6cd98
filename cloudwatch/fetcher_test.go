package cloudwatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

var testCreds = sigv4.Credentials{
	AccessKeyID:     "AKIDEXAMPLE",
	SecretAccessKey: "test-secret",
}

func TestPeriodStaysUnderDatapointCeiling(t *testing.T) {
	// The period/window pair must respect the per-call ceiling by
	// construction. Changing either constant means re-deriving the
	// pair, which is exactly what this test enforces.
	datapoints := int(LookbackWindow / Period)
	assert.Less(t, datapoints, MaxDatapointsPerCall)
	assert.Equal(t, 1008, datapoints)

	// A 300s period over the same window would burst the ceiling.
	assert.Greater(t, int(LookbackWindow/(300*time.Second)), MaxDatapointsPerCall)
}

func TestStatistics(t *testing.T) {
	assert.Equal(t, []string{"Sum"}, Statistics("Count"))
	assert.Equal(t, []string{"Sum"}, Statistics("RequestCount"))
	assert.Equal(t, []string{"Sum"}, Statistics("Invocations"))
	assert.Equal(t, []string{"Sum"}, Statistics("BytesDownloaded"))
	assert.Equal(t, []string{"Sum"}, Statistics("AllowedRequests"))

	assert.Equal(t, []string{"Average", "Maximum", "Minimum"}, Statistics("CPUUtilization"))
	assert.Equal(t, []string{"Average", "Maximum", "Minimum"}, Statistics("Latency"))
}

func datapointXML(ts time.Time, stat string, value float64) string {
	return fmt.Sprintf("<member><Timestamp>%s</Timestamp><%s>%g</%s><Unit>Count</Unit></member>",
		ts.UTC().Format(time.RFC3339), stat, value, stat)
}

func metricServer(t *testing.T, onQuery func(params url.Values), payload func() string) *awsclient.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		params, _ := url.ParseQuery(string(raw))
		if onQuery != nil {
			onQuery(params)
		}
		_, _ = fmt.Fprintf(w, `<GetMetricStatisticsResponse>
		  <GetMetricStatisticsResult>
		    <Label>x</Label>
		    <Datapoints>%s</Datapoints>
		  </GetMetricStatisticsResult>
		</GetMetricStatisticsResponse>`, payload())
	}))
	t.Cleanup(server.Close)
	return awsclient.New().WithBaseURL(server.URL)
}

func TestGetMetric_CounterUsesSum(t *testing.T) {
	var got url.Values
	client := metricServer(t, func(p url.Values) { got = p }, func() string {
		return datapointXML(time.Now(), "Sum", 120)
	})

	series, err := NewFetcher(client).GetMetric(context.Background(), testCreds,
		"us-east-1", "AWS/ApiGateway", "Count", "ApiName", "orders-api",
		map[string]string{"Stage": "prod"})
	require.NoError(t, err)
	require.NotNil(t, series)

	assert.Equal(t, "Sum", got.Get("Statistics.member.1"))
	assert.Empty(t, got.Get("Statistics.member.2"))
	assert.Equal(t, "600", got.Get("Period"))
	assert.Equal(t, "ApiName", got.Get("Dimensions.member.1.Name"))
	assert.Equal(t, "orders-api", got.Get("Dimensions.member.1.Value"))
	assert.Equal(t, "Stage", got.Get("Dimensions.member.2.Name"))
	assert.Equal(t, "prod", got.Get("Dimensions.member.2.Value"))

	require.Len(t, series.Datapoints, 1)
	assert.Equal(t, 120.0, series.Datapoints[0].Value)
}

func TestGetMetric_GaugeUsesAverageMaxMin(t *testing.T) {
	var got url.Values
	client := metricServer(t, func(p url.Values) { got = p }, func() string {
		ts := time.Now()
		return "<member><Timestamp>" + ts.UTC().Format(time.RFC3339) +
			"</Timestamp><Average>41.5</Average><Maximum>90</Maximum><Minimum>3</Minimum><Unit>Percent</Unit></member>"
	})

	series, err := NewFetcher(client).GetMetric(context.Background(), testCreds,
		"us-east-1", "AWS/EC2", "CPUUtilization", "InstanceId", "i-0aaa", nil)
	require.NoError(t, err)
	require.NotNil(t, series)

	stats := []string{
		got.Get("Statistics.member.1"),
		got.Get("Statistics.member.2"),
		got.Get("Statistics.member.3"),
	}
	assert.Equal(t, []string{"Average", "Maximum", "Minimum"}, stats)

	require.Len(t, series.Datapoints, 1)
	point := series.Datapoints[0]
	assert.Equal(t, 41.5, point.Value, "gauge point value is the Average")
	assert.Equal(t, 90.0, point.Additional["maximum"])
	assert.Equal(t, 3.0, point.Additional["minimum"])
	assert.Equal(t, "Percent", point.Unit)
}

func TestGetMetric_SevenDayWindow(t *testing.T) {
	anchor := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	var got url.Values
	client := metricServer(t, func(p url.Values) { got = p }, func() string { return "" })

	_, err := NewFetcher(client).WithClock(func() time.Time { return anchor }).
		GetMetric(context.Background(), testCreds, "us-east-1", "AWS/EC2", "NetworkIn", "InstanceId", "i-1", nil)
	require.NoError(t, err)

	assert.Equal(t, anchor.Format(time.RFC3339), got.Get("EndTime"))
	assert.Equal(t, anchor.Add(-7*24*time.Hour).Format(time.RFC3339), got.Get("StartTime"))
}

func TestGetMetric_TruncatesToNewestPoints(t *testing.T) {
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	client := metricServer(t, nil, func() string {
		// 60 points served newest-first: ordering must not matter.
		var sb strings.Builder
		for i := 59; i >= 0; i-- {
			sb.WriteString(datapointXML(base.Add(time.Duration(i)*10*time.Minute), "Sum", float64(i)))
		}
		return sb.String()
	})

	series, err := NewFetcher(client).GetMetric(context.Background(), testCreds,
		"us-east-1", "AWS/Lambda", "Invocations", "FunctionName", "fn", nil)
	require.NoError(t, err)
	require.NotNil(t, series)

	require.Len(t, series.Datapoints, PersistedPointCap, "only the newest points are forwarded")
	for i := 1; i < len(series.Datapoints); i++ {
		assert.True(t, series.Datapoints[i-1].Timestamp.Before(series.Datapoints[i].Timestamp),
			"datapoints must be chronologically ascending")
	}
	// Truncation removes the oldest points, so the last value is the
	// newest sample (59) and the first is 60-cap.
	assert.Equal(t, float64(59), series.Datapoints[len(series.Datapoints)-1].Value)
	assert.Equal(t, float64(60-PersistedPointCap), series.Datapoints[0].Value)
}

func TestGetMetric_EmptyDatapoints(t *testing.T) {
	client := metricServer(t, nil, func() string { return "" })

	series, err := NewFetcher(client).GetMetric(context.Background(), testCreds,
		"us-east-1", "AWS/EC2", "CPUUtilization", "InstanceId", "i-1", nil)
	require.NoError(t, err)
	require.NotNil(t, series)
	assert.Empty(t, series.Datapoints)
}

func TestPlansFor(t *testing.T) {
	assert.NotEmpty(t, PlansFor("ec2"))
	assert.NotEmpty(t, PlansFor("apigateway"))
	assert.Nil(t, PlansFor("unknown-type"))
}

func TestDimensionValue_APIGatewayUsesName(t *testing.T) {
	r := types.Resource{
		Type: "apigateway",
		ID:   "orders-api::prod",
		Name: "orders-api",
		Metadata: map[string]string{
			"api_name": "orders-api",
			"stage":    "prod",
		},
	}
	assert.Equal(t, "orders-api", DimensionValue(r),
		"API Gateway dimensions by api name, not the composite id")
	assert.Equal(t, map[string]string{"Stage": "prod"}, ExtraDimensions(r))
}

func TestExtraDimensions_ECSCluster(t *testing.T) {
	r := types.Resource{
		Type:     "ecs",
		ID:       "api",
		Metadata: map[string]string{"cluster_name": "prod"},
	}
	assert.Equal(t, map[string]string{"ClusterName": "prod"}, ExtraDimensions(r))
}

func TestDimensionValue_WAFUsesACLName(t *testing.T) {
	r := types.Resource{Type: "waf", ID: "a1b2c3d4", Name: "edge-acl"}
	assert.Equal(t, "edge-acl", DimensionValue(r),
		"AWS/WAFV2 keys WebACL by the ACL name, not its id")
	assert.Equal(t, "a1b2c3d4", DimensionValue(types.Resource{Type: "waf", ID: "a1b2c3d4"}))
}

func TestExtraDimensions_CloudFrontGlobalRegion(t *testing.T) {
	r := types.Resource{Type: "cloudfront", ID: "E1ABCDEF", Region: types.RegionGlobal}
	assert.Equal(t, map[string]string{"Region": "Global"}, ExtraDimensions(r))
}

func TestMetricRegion_GlobalPinsUsEast1(t *testing.T) {
	assert.Equal(t, "us-east-1", MetricRegion(types.Resource{Type: "cloudfront", Region: types.RegionGlobal}))
	assert.Equal(t, "eu-west-1", MetricRegion(types.Resource{Type: "ec2", Region: "eu-west-1"}))
}
