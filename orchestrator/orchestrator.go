// Package orchestrator runs one collection pass over an AWS account:
// tiered enumeration, per-resource metric retrieval and batched
// persistence, accumulating permission failures instead of aborting.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/classify"
	"github.com/rafaesapata/AWS-EVO-sub014/cloudwatch"
	"github.com/rafaesapata/AWS-EVO-sub014/collect"
	"github.com/rafaesapata/AWS-EVO-sub014/credentials"
	"github.com/rafaesapata/AWS-EVO-sub014/storage"
	"github.com/rafaesapata/AWS-EVO-sub014/telemetry"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// MetricFanOut bounds concurrent metric fetches within one resource.
const MetricFanOut = 3

// Orchestrator sequences one collection run.
type Orchestrator struct {
	client  *awsclient.Client
	store   *storage.Store
	fetcher *cloudwatch.Fetcher
	listers []collect.Lister
	logger  *telemetry.Logger

	retention time.Duration
	now       func() time.Time
}

// New creates an orchestrator over the full lister registry.
func New(client *awsclient.Client, store *storage.Store) *Orchestrator {
	return &Orchestrator{
		client:    client,
		store:     store,
		fetcher:   cloudwatch.NewFetcher(client),
		listers:   collect.Registry(),
		logger:    telemetry.NewLogger("orchestrator"),
		retention: storage.DefaultRetentionDays * 24 * time.Hour,
		now:       time.Now,
	}
}

// WithListers overrides the lister registry.
func (o *Orchestrator) WithListers(listers []collect.Lister) *Orchestrator {
	o.listers = listers
	return o
}

// WithRetention overrides the metric TTL.
func (o *Orchestrator) WithRetention(d time.Duration) *Orchestrator {
	o.retention = d
	return o
}

// run carries the mutable state of one collection pass. The
// accumulator is mutex-guarded and append-only.
type run struct {
	mu        sync.Mutex
	resources int
	metrics   int
	failures  []types.PermissionError
}

func (r *run) fail(resourceType, region string, err error) {
	c := classify.Classify(resourceType, err.Error())
	r.mu.Lock()
	r.failures = append(r.failures, types.PermissionError{
		ResourceType:       resourceType,
		Region:             region,
		Error:              err.Error(),
		MissingPermissions: c.MissingPermissions,
	})
	r.mu.Unlock()
}

// Collect runs the three tiers in order and returns the aggregate.
// Unit failures never abort the run; only a cancelled context does.
func (o *Orchestrator) Collect(ctx context.Context, resolved *credentials.Resolved) (*types.CollectionResult, error) {
	start := o.now()
	state := &run{}

	// TTL sweep first so a failing run still bounds storage growth.
	cutoff := start.Add(-o.retention)
	if _, err := o.store.EvictMetricsOlderThan(ctx, resolved.AccountID, cutoff); err != nil {
		o.logger.WithContext(ctx).Warn().Err(err).Msg("eviction failed, continuing")
	}

	// Critical tier runs region by region, persisting each region
	// before moving on so the highest-value resources survive a
	// mid-run failure.
	for _, region := range resolved.Regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var resources []types.Resource
		var points []types.MetricPoint
		for _, lister := range collect.ByTier(o.listers, types.TierCritical) {
			r, p := o.collectUnit(ctx, state, resolved, lister, region)
			resources = append(resources, r...)
			points = append(points, p...)
		}
		o.persist(ctx, state, resources, points)
	}

	// Global tier runs exactly once, independent of the region list.
	var globalResources []types.Resource
	var globalPoints []types.MetricPoint
	for _, lister := range collect.ByTier(o.listers, types.TierGlobal) {
		r, p := o.collectUnit(ctx, state, resolved, lister, "us-east-1")
		globalResources = append(globalResources, r...)
		globalPoints = append(globalPoints, p...)
	}
	o.persist(ctx, state, globalResources, globalPoints)

	// Regional tier covers the remaining services per region,
	// persisted per unit.
	for _, region := range resolved.Regions {
		for _, lister := range collect.ByTier(o.listers, types.TierRegional) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, p := o.collectUnit(ctx, state, resolved, lister, region)
			o.persist(ctx, state, r, p)
		}
	}

	duration := o.now().Sub(start)
	o.recordRun(ctx, state, duration)

	return &types.CollectionResult{
		Success:          true,
		ResourcesFound:   state.resources,
		MetricsCollected: state.metrics,
		PermissionErrors: state.failures,
		StartTime:        start,
		Duration:         duration,
	}, nil
}

// collectUnit enumerates one (lister, region) unit and fetches the
// metrics of every resource it finds. Enumeration failure is recorded
// and the unit yields nothing.
func (o *Orchestrator) collectUnit(ctx context.Context, state *run, resolved *credentials.Resolved, lister collect.Lister, region string) ([]types.Resource, []types.MetricPoint) {
	resources, err := lister.List(ctx, o.client, resolved.Credentials, region)
	if err != nil {
		o.logger.LogUnitFailure(ctx, lister.Type(), region, err)
		state.fail(lister.Type(), region, err)
		return nil, nil
	}

	stamp := o.now().UTC()
	for i := range resources {
		resources[i].AccountID = resolved.AccountID
		resources[i].OrganizationID = resolved.OrganizationID
		resources[i].LastSeenAt = stamp
	}

	var points []types.MetricPoint
	for _, resource := range resources {
		points = append(points, o.fetchMetrics(ctx, resolved, resource)...)
	}
	return resources, points
}

// fetchMetrics retrieves the resource's planned metrics with bounded
// fan-out. A failed or empty metric is dropped, never fatal.
func (o *Orchestrator) fetchMetrics(ctx context.Context, resolved *credentials.Resolved, resource types.Resource) []types.MetricPoint {
	plans := cloudwatch.PlansFor(resource.Type)
	if len(plans) == 0 {
		return nil
	}

	region := cloudwatch.MetricRegion(resource)
	dimValue := cloudwatch.DimensionValue(resource)
	extra := cloudwatch.ExtraDimensions(resource)

	sem := make(chan struct{}, MetricFanOut)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var points []types.MetricPoint

	for _, plan := range plans {
		sem <- struct{}{}
		wg.Add(1)
		go func(plan cloudwatch.MetricSpec) {
			defer wg.Done()
			defer func() { <-sem }()

			series, err := o.fetcher.GetMetric(ctx, resolved.Credentials, region,
				plan.Namespace, plan.MetricName, plan.DimensionName, dimValue, extra)
			if err != nil {
				o.logger.WithContext(ctx).Debug().
					Str("resource_id", resource.ID).
					Str("metric", plan.MetricName).
					Err(err).
					Msg("metric fetch skipped")
				return
			}
			if series == nil || len(series.Datapoints) == 0 {
				return
			}

			mu.Lock()
			for _, point := range series.Datapoints {
				point.AccountID = resource.AccountID
				point.ResourceID = resource.ID
				points = append(points, point)
			}
			mu.Unlock()
		}(plan)
	}
	wg.Wait()
	return points
}

// persist upserts one unit's output and folds the counts in.
func (o *Orchestrator) persist(ctx context.Context, state *run, resources []types.Resource, points []types.MetricPoint) {
	if len(resources) == 0 && len(points) == 0 {
		return
	}

	written, err := o.store.UpsertResources(ctx, resources)
	if err != nil {
		o.logger.LogStorageError(ctx, "upsert_resources", err)
		return
	}
	metricCount, err := o.store.UpsertMetrics(ctx, points)
	if err != nil {
		o.logger.LogStorageError(ctx, "upsert_metrics", err)
		return
	}

	state.mu.Lock()
	state.resources += written
	state.metrics += metricCount
	state.mu.Unlock()

	if telemetry.StorageWrites != nil {
		telemetry.StorageWrites.Add(ctx, int64(written+metricCount))
	}
}

func (o *Orchestrator) recordRun(ctx context.Context, state *run, duration time.Duration) {
	o.logger.WithContext(ctx).Info().
		Int("resources", state.resources).
		Int("metrics", state.metrics).
		Int("permission_errors", len(state.failures)).
		Dur("duration", duration).
		Msg("collection run complete")

	if telemetry.ResourcesCollected != nil {
		telemetry.ResourcesCollected.Add(ctx, int64(state.resources))
	}
	if telemetry.MetricsCollected != nil {
		telemetry.MetricsCollected.Add(ctx, int64(state.metrics))
	}
	if telemetry.PermissionErrors != nil {
		for _, failure := range state.failures {
			telemetry.PermissionErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("resource_type", failure.ResourceType),
				attribute.String("region", failure.Region),
			))
		}
	}
	if telemetry.CollectionDuration != nil {
		telemetry.CollectionDuration.Record(ctx, duration.Seconds())
	}
}
