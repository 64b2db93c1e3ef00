package store

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"github.com/atmx/predengine/internal/audit"
)

// L1CachedStore adds an in-process ristretto cache in front of another
// Store (typically a CachedStore backed by Redis and PostgreSQL), for
// snapshot reads that would otherwise cross the network on every call.
// Concurrent misses for the same engine id are deduplicated with
// singleflight so a burst of readers triggers one fill, not one per
// caller.
type L1CachedStore struct {
	next  Store
	cache *ristretto.Cache
	group singleflight.Group
}

// NewL1CachedStore wraps next with an in-process cache that holds up to
// maxCost snapshots (each cached snapshot is charged a cost of 1).
func NewL1CachedStore(next Store, maxCost int64) (*L1CachedStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("new l1 cache: %w", err)
	}
	return &L1CachedStore{next: next, cache: cache}, nil
}

func (s *L1CachedStore) AppendRecords(ctx context.Context, engineID string, records []audit.Record) error {
	return s.next.AppendRecords(ctx, engineID, records)
}

func (s *L1CachedStore) GetRecords(ctx context.Context, engineID string) ([]audit.Record, error) {
	return s.next.GetRecords(ctx, engineID)
}

func (s *L1CachedStore) SaveSnapshot(ctx context.Context, engineID string, snap Snapshot) error {
	if err := s.next.SaveSnapshot(ctx, engineID, snap); err != nil {
		return err
	}
	s.cache.Del(engineID)
	return nil
}

func (s *L1CachedStore) GetLatestSnapshot(ctx context.Context, engineID string) (*Snapshot, error) {
	if v, ok := s.cache.Get(engineID); ok {
		snap := v.(Snapshot)
		return &snap, nil
	}

	v, err, _ := s.group.Do(engineID, func() (any, error) {
		snap, err := s.next.GetLatestSnapshot(ctx, engineID)
		if err != nil {
			return nil, err
		}
		s.cache.SetWithTTL(engineID, *snap, 1, 0)
		s.cache.Wait()
		return *snap, nil
	})
	if err != nil {
		return nil, err
	}
	snap := v.(Snapshot)
	return &snap, nil
}

func (s *L1CachedStore) ListEngines(ctx context.Context) ([]string, error) {
	return s.next.ListEngines(ctx)
}
