// Package storage persists collected resources and metric points in
// bbolt, keyed by natural keys so repeated collection runs upsert
// instead of duplicating rows.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/rafaesapata/AWS-EVO-sub014/telemetry"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

const (
	// ChunkSize bounds how many rows a single write transaction
	// carries.
	ChunkSize = 500

	// WaveConcurrency bounds how many chunk writes run at once.
	WaveConcurrency = 3

	// DefaultRetentionDays is the metric TTL applied before each
	// collection run.
	DefaultRetentionDays = 8
)

// Bucket names in bbolt
var (
	bucketResources = []byte("resources")
	bucketMetrics   = []byte("metrics")
)

// indexEntry tracks a resource in the in-memory index.
type indexEntry struct {
	Key        string
	Type       string
	Region     string
	LastSeenAt time.Time
}

// Store is a bbolt-backed resource and metric store with a btree
// index over resource natural keys.
type Store struct {
	mu     sync.RWMutex
	index  *btree.BTreeG[*indexEntry]
	db     *bbolt.DB
	logger *telemetry.Logger
}

// New opens (or creates) the store under dir.
func New(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "evo.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketResources, bucketMetrics} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{
		index: btree.NewG[*indexEntry](32, func(a, b *indexEntry) bool {
			return a.Key < b.Key
		}),
		db:     db,
		logger: telemetry.NewLogger("storage"),
	}

	if err := store.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebuildIndex reloads the btree from disk on open.
func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketResources).ForEach(func(k, v []byte) error {
			var r types.Resource
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt resource row %s: %w", k, err)
			}
			s.index.ReplaceOrInsert(&indexEntry{
				Key:        string(k),
				Type:       r.Type,
				Region:     r.Region,
				LastSeenAt: r.LastSeenAt,
			})
			return nil
		})
	})
}

// UpsertResources writes resources in bounded chunks, at most
// WaveConcurrency chunk transactions in flight at a time. The
// natural-key upsert is idempotent, so re-running a collection
// produces the same rows.
func (s *Store) UpsertResources(ctx context.Context, resources []types.Resource) (int, error) {
	if len(resources) == 0 {
		return 0, nil
	}

	err := s.runWaves(ctx, len(resources), func(lo, hi int) error {
		chunk := resources[lo:hi]
		err := s.db.Update(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket(bucketResources)
			for _, r := range chunk {
				value, err := json.Marshal(r)
				if err != nil {
					return err
				}
				if err := bucket.Put([]byte(r.NaturalKey()), value); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.mu.Lock()
		for _, r := range chunk {
			s.index.ReplaceOrInsert(&indexEntry{
				Key:        r.NaturalKey(),
				Type:       r.Type,
				Region:     r.Region,
				LastSeenAt: r.LastSeenAt,
			})
		}
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		s.logger.LogStorageError(ctx, "upsert_resources", err)
		return 0, err
	}

	s.logger.LogBatchOperation(ctx, "upsert_resources", len(resources))
	return len(resources), nil
}

// UpsertMetrics writes metric points with the same chunk and wave
// bounds as resources.
func (s *Store) UpsertMetrics(ctx context.Context, points []types.MetricPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	err := s.runWaves(ctx, len(points), func(lo, hi int) error {
		chunk := points[lo:hi]
		return s.db.Update(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket(bucketMetrics)
			for _, p := range chunk {
				value, err := json.Marshal(p)
				if err != nil {
					return err
				}
				if err := bucket.Put([]byte(p.NaturalKey()), value); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		s.logger.LogStorageError(ctx, "upsert_metrics", err)
		return 0, err
	}

	s.logger.LogBatchOperation(ctx, "upsert_metrics", len(points))
	return len(points), nil
}

// runWaves splits n rows into ChunkSize pieces and runs write in
// waves of at most WaveConcurrency goroutines. The first error wins;
// later chunks still drain.
func (s *Store) runWaves(ctx context.Context, n int, write func(lo, hi int) error) error {
	sem := make(chan struct{}, WaveConcurrency)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for lo := 0; lo < n; lo += ChunkSize {
		if err := ctx.Err(); err != nil {
			once.Do(func() { firstErr = err })
			break
		}
		hi := lo + ChunkSize
		if hi > n {
			hi = n
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := write(lo, hi); err != nil {
				once.Do(func() { firstErr = err })
			}
		}(lo, hi)
	}

	wg.Wait()
	return firstErr
}

// EvictMetricsOlderThan deletes the account's metric points strictly
// older than cutoff. Points at or after cutoff are untouched.
func (s *Store) EvictMetricsOlderThan(ctx context.Context, accountID string, cutoff time.Time) (int, error) {
	start := time.Now()
	prefix := []byte(accountID + "|")
	deleted := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketMetrics).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = cursor.Next() {
			var p types.MetricPoint
			if err := json.Unmarshal(v, &p); err != nil {
				continue
			}
			if p.Timestamp.Before(cutoff) {
				if err := cursor.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
	if err != nil {
		s.logger.LogStorageError(ctx, "evict_metrics", err)
		return 0, err
	}

	s.logger.LogEviction(ctx, accountID, deleted, float64(time.Since(start).Milliseconds()))
	if telemetry.MetricsEvicted != nil {
		telemetry.MetricsEvicted.Add(ctx, int64(deleted))
	}
	return deleted, nil
}

// Resources returns the account's stored resources.
func (s *Store) Resources(accountID string) ([]types.Resource, error) {
	return s.selectResources(accountID, func(types.Resource) bool { return true })
}

// ResourcesMatching returns the account's resources passing the filter.
func (s *Store) ResourcesMatching(accountID string, filter types.ResourceFilter) ([]types.Resource, error) {
	return s.selectResources(accountID, func(r types.Resource) bool { return r.Matches(filter) })
}

func (s *Store) selectResources(accountID string, keep func(types.Resource) bool) ([]types.Resource, error) {
	prefix := []byte(accountID + "|")
	var out []types.Resource

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketResources).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = cursor.Next() {
			var r types.Resource
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt resource row %s: %w", k, err)
			}
			if keep(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

// Metrics returns the stored points for one resource, grouped by
// metric name through the key layout.
func (s *Store) Metrics(accountID, resourceID string) ([]types.MetricPoint, error) {
	prefix := []byte(accountID + "|" + resourceID + "|")
	var out []types.MetricPoint

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketMetrics).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = cursor.Next() {
			var p types.MetricPoint
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("corrupt metric row %s: %w", k, err)
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// Stats summarizes stored row counts.
type Stats struct {
	Resources int `json:"resources"`
	Metrics   int `json:"metrics"`
}

// GetStats counts stored rows.
func (s *Store) GetStats() (Stats, error) {
	var stats Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		stats.Resources = tx.Bucket(bucketResources).Stats().KeyN
		stats.Metrics = tx.Bucket(bucketMetrics).Stats().KeyN
		return nil
	})
	return stats, err
}

// IndexedResourceCount reports the in-memory index size.
func (s *Store) IndexedResourceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}
