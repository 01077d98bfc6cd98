package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testResource(id string) types.Resource {
	return types.Resource{
		AccountID:  "123456789012",
		Type:       "ec2",
		ID:         id,
		Name:       "web-" + id,
		Region:     "us-east-1",
		Status:     "running",
		LastSeenAt: time.Now().UTC(),
	}
}

func TestStore_UpsertResourcesIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	resources := []types.Resource{testResource("i-111"), testResource("i-222")}

	written, err := store.UpsertResources(ctx, resources)
	if err != nil {
		t.Fatalf("UpsertResources failed: %v", err)
	}
	if written != 2 {
		t.Errorf("written = %d, want 2", written)
	}

	// Same natural keys again must not duplicate rows.
	if _, err := store.UpsertResources(ctx, resources); err != nil {
		t.Fatalf("Second UpsertResources failed: %v", err)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Resources != 2 {
		t.Errorf("stored resources = %d, want 2", stats.Resources)
	}
	if store.IndexedResourceCount() != 2 {
		t.Errorf("index size = %d, want 2", store.IndexedResourceCount())
	}
}

func TestStore_UpsertResourcesReplacesChangedFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testResource("i-111")
	first.Status = "running"
	if _, err := store.UpsertResources(ctx, []types.Resource{first}); err != nil {
		t.Fatalf("UpsertResources failed: %v", err)
	}

	second := first
	second.Status = "stopped"
	if _, err := store.UpsertResources(ctx, []types.Resource{second}); err != nil {
		t.Fatalf("UpsertResources failed: %v", err)
	}

	got, err := store.Resources("123456789012")
	if err != nil {
		t.Fatalf("Resources failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("resource count = %d, want 1", len(got))
	}
	if got[0].Status != "stopped" {
		t.Errorf("Status = %q, want stopped", got[0].Status)
	}
}

func TestStore_UpsertManyChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Enough rows to force multiple chunk waves.
	var resources []types.Resource
	for i := 0; i < ChunkSize*2+37; i++ {
		resources = append(resources, testResource(fmt.Sprintf("i-%05d", i)))
	}

	written, err := store.UpsertResources(ctx, resources)
	if err != nil {
		t.Fatalf("UpsertResources failed: %v", err)
	}
	if written != len(resources) {
		t.Errorf("written = %d, want %d", written, len(resources))
	}

	stats, _ := store.GetStats()
	if stats.Resources != len(resources) {
		t.Errorf("stored = %d, want %d", stats.Resources, len(resources))
	}
}

func TestStore_MetricsUpsertAndSelect(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var points []types.MetricPoint
	for i := 0; i < 10; i++ {
		points = append(points, types.MetricPoint{
			AccountID:  "123456789012",
			ResourceID: "i-111",
			MetricName: "CPUUtilization",
			Value:      float64(i),
			Unit:       "Percent",
			Timestamp:  base.Add(time.Duration(i) * 10 * time.Minute),
		})
	}

	if _, err := store.UpsertMetrics(ctx, points); err != nil {
		t.Fatalf("UpsertMetrics failed: %v", err)
	}
	// Overlapping timestamps upsert, not duplicate.
	if _, err := store.UpsertMetrics(ctx, points[:5]); err != nil {
		t.Fatalf("Second UpsertMetrics failed: %v", err)
	}

	got, err := store.Metrics("123456789012", "i-111")
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("metric count = %d, want 10", len(got))
	}
}

func TestStore_EvictMetricsOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	points := []types.MetricPoint{
		{AccountID: "123456789012", ResourceID: "i-1", MetricName: "Count", Timestamp: cutoff.Add(-time.Hour)},
		{AccountID: "123456789012", ResourceID: "i-1", MetricName: "Count", Timestamp: cutoff.Add(-time.Second)},
		{AccountID: "123456789012", ResourceID: "i-1", MetricName: "Count", Timestamp: cutoff},
		{AccountID: "123456789012", ResourceID: "i-1", MetricName: "Count", Timestamp: cutoff.Add(time.Hour)},
		// Different account, older than cutoff, must survive.
		{AccountID: "999999999999", ResourceID: "i-9", MetricName: "Count", Timestamp: cutoff.Add(-time.Hour)},
	}
	if _, err := store.UpsertMetrics(ctx, points); err != nil {
		t.Fatalf("UpsertMetrics failed: %v", err)
	}

	deleted, err := store.EvictMetricsOlderThan(ctx, "123456789012", cutoff)
	if err != nil {
		t.Fatalf("EvictMetricsOlderThan failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2 (strictly older than cutoff)", deleted)
	}

	kept, _ := store.Metrics("123456789012", "i-1")
	if len(kept) != 2 {
		t.Fatalf("kept = %d, want 2", len(kept))
	}
	for _, p := range kept {
		if p.Timestamp.Before(cutoff) {
			t.Errorf("point at %v survived eviction before cutoff %v", p.Timestamp, cutoff)
		}
	}

	other, _ := store.Metrics("999999999999", "i-9")
	if len(other) != 1 {
		t.Errorf("other account lost %d points to eviction", 1-len(other))
	}
}

func TestStore_ResourcesMatching(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ec2 := testResource("i-111")
	rds := testResource("db-1")
	rds.Type = "rds"
	rds.Region = "eu-west-1"
	if _, err := store.UpsertResources(ctx, []types.Resource{ec2, rds}); err != nil {
		t.Fatalf("UpsertResources failed: %v", err)
	}

	got, err := store.ResourcesMatching("123456789012", types.ResourceFilter{Type: "rds"})
	if err != nil {
		t.Fatalf("ResourcesMatching failed: %v", err)
	}
	if len(got) != 1 || got[0].Type != "rds" {
		t.Errorf("filter by type returned %+v", got)
	}

	got, _ = store.ResourcesMatching("123456789012", types.ResourceFilter{Region: "us-east-1"})
	if len(got) != 1 || got[0].ID != "i-111" {
		t.Errorf("filter by region returned %+v", got)
	}
}

func TestStore_IndexRebuiltOnReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if _, err := store.UpsertResources(context.Background(), []types.Resource{testResource("i-111")}); err != nil {
		t.Fatalf("UpsertResources failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if reopened.IndexedResourceCount() != 1 {
		t.Errorf("index size after reopen = %d, want 1", reopened.IndexedResourceCount())
	}
}
