// Package cloudwatch retrieves metric statistics for collected
// resources with the correct dimensioning, statistic selection and
// datapoint ceiling.
package cloudwatch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/telemetry"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// Sampling policy. CloudWatch rejects GetMetricStatistics calls asking
// for more than MaxDatapointsPerCall points, so the period/window pair
// must stay under the ceiling by construction: 7d at 600s is 1008
// samples, where 300s would burst it.
const (
	Period               = 600 * time.Second
	LookbackWindow       = 7 * 24 * time.Hour
	MaxDatapointsPerCall = 1440

	// PersistedPointCap bounds storage growth: only the newest points
	// of each series are forwarded to persistence.
	PersistedPointCap = 48
)

// counterMetrics are queried with Statistics=[Sum]; everything else
// defaults to [Average, Maximum, Minimum].
var counterMetrics = map[string]bool{
	"Count":                      true,
	"RequestCount":               true,
	"Invocations":                true,
	"Errors":                     true,
	"Throttles":                  true,
	"BytesDownloaded":            true,
	"BytesUploaded":              true,
	"Requests":                   true,
	"AllowedRequests":            true,
	"BlockedRequests":            true,
	"HTTPCode_Target_5XX_Count":  true,
	"HTTPCode_Target_4XX_Count":  true,
	"5XXError":                   true,
	"4XXError":                   true,
	"ProcessedBytes":             true,
	"NumberOfMessagesSent":       true,
	"NumberOfMessagesReceived":   true,
	"ConsumedReadCapacityUnits":  true,
	"ConsumedWriteCapacityUnits": true,
}

// IsCounter reports whether a metric is queried as a Sum.
func IsCounter(metricName string) bool { return counterMetrics[metricName] }

// Statistics returns the statistic set requested for a metric.
func Statistics(metricName string) []string {
	if IsCounter(metricName) {
		return []string{"Sum"}
	}
	return []string{"Average", "Maximum", "Minimum"}
}

// Series is one retrieved metric, chronologically ascending.
type Series struct {
	MetricName string
	Unit       string
	Datapoints []types.MetricPoint
}

// Fetcher issues GetMetricStatistics calls.
type Fetcher struct {
	client *awsclient.Client
	logger *telemetry.Logger
	now    func() time.Time
}

// NewFetcher creates a fetcher over the given client.
func NewFetcher(client *awsclient.Client) *Fetcher {
	return &Fetcher{
		client: client,
		logger: telemetry.NewLogger("cloudwatch"),
		now:    time.Now,
	}
}

// WithClock fixes the lookback window anchor.
func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// GetMetric retrieves one metric for one resource dimension. Extra
// dimensions (ClusterName for ECS, Stage for API Gateway) are added on
// top of the primary one. A nil series with nil error means the metric
// exists but returned no datapoints.
func (f *Fetcher) GetMetric(ctx context.Context, creds sigv4.Credentials, region, namespace, metricName, dimensionName, dimensionValue string, extraDimensions map[string]string) (*Series, error) {
	end := f.now().UTC()
	start := end.Add(-LookbackWindow)

	dimensions := []map[string]string{{"Name": dimensionName, "Value": dimensionValue}}
	for name, value := range extraDimensions {
		dimensions = append(dimensions, map[string]string{"Name": name, "Value": value})
	}

	params := map[string]any{
		"Namespace":  namespace,
		"MetricName": metricName,
		"StartTime":  start.Format(time.RFC3339),
		"EndTime":    end.Format(time.RFC3339),
		"Period":     strconv.Itoa(int(Period.Seconds())),
		"Statistics": sigv4.Member(Statistics(metricName)...),
		"Dimensions": dimensions,
	}

	body, err := f.client.Query(ctx, creds, "monitoring", region, "GetMetricStatistics", "2010-08-01", params)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", namespace, metricName, err)
	}

	return f.parseSeries(body, metricName), nil
}

// parseSeries extracts datapoints from the XML response. Points come
// back unordered; they are sorted ascending and truncated from the
// head so only the newest PersistedPointCap survive.
func (f *Fetcher) parseSeries(body, metricName string) *Series {
	section, ok := awsxml.Section(body, "Datapoints")
	if !ok {
		return nil
	}

	useSum := IsCounter(metricName)
	series := &Series{MetricName: metricName}

	for _, block := range awsxml.Blocks(section, "Timestamp") {
		ts, err := time.Parse(time.RFC3339, awsxml.Field(block, "Timestamp"))
		if err != nil {
			continue
		}

		point := types.MetricPoint{
			MetricName: metricName,
			Unit:       awsxml.Field(block, "Unit"),
			Timestamp:  ts,
		}

		if useSum {
			v, err := strconv.ParseFloat(awsxml.Field(block, "Sum"), 64)
			if err != nil {
				continue
			}
			point.Value = v
		} else {
			v, err := strconv.ParseFloat(awsxml.Field(block, "Average"), 64)
			if err != nil {
				continue
			}
			point.Value = v
			point.Additional = map[string]float64{}
			if max, err := strconv.ParseFloat(awsxml.Field(block, "Maximum"), 64); err == nil {
				point.Additional["maximum"] = max
			}
			if min, err := strconv.ParseFloat(awsxml.Field(block, "Minimum"), 64); err == nil {
				point.Additional["minimum"] = min
			}
		}

		series.Datapoints = append(series.Datapoints, point)
		if series.Unit == "" {
			series.Unit = point.Unit
		}
	}

	if len(series.Datapoints) == 0 {
		return series
	}

	sort.Slice(series.Datapoints, func(i, j int) bool {
		return series.Datapoints[i].Timestamp.Before(series.Datapoints[j].Timestamp)
	})
	if len(series.Datapoints) > PersistedPointCap {
		series.Datapoints = series.Datapoints[len(series.Datapoints)-PersistedPointCap:]
	}
	return series
}
