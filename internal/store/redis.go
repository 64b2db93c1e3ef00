package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/predengine/internal/audit"
)

// CachedStore wraps a primary Store (PostgreSQL, typically) with a Redis
// read-through cache for snapshot lookups, the hot path a front end
// polls on every page load. Audit records are append-mostly and read
// rarely enough in bulk that caching them buys little, so they pass
// straight through to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

func (s *CachedStore) AppendRecords(ctx context.Context, engineID string, records []audit.Record) error {
	return s.primary.AppendRecords(ctx, engineID, records)
}

func (s *CachedStore) GetRecords(ctx context.Context, engineID string) ([]audit.Record, error) {
	return s.primary.GetRecords(ctx, engineID)
}

func (s *CachedStore) SaveSnapshot(ctx context.Context, engineID string, snap Snapshot) error {
	if err := s.primary.SaveSnapshot(ctx, engineID, snap); err != nil {
		return err
	}
	// Invalidate; next read repopulates from the primary.
	s.rdb.Del(ctx, snapshotKey(engineID))
	return nil
}

func (s *CachedStore) GetLatestSnapshot(ctx context.Context, engineID string) (*Snapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(engineID)).Bytes()
	if err == nil {
		var snap Snapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	snap, err := s.primary.GetLatestSnapshot(ctx, engineID)
	if err != nil {
		return nil, err
	}
	s.cacheSnapshot(ctx, snap)
	return snap, nil
}

func (s *CachedStore) ListEngines(ctx context.Context) ([]string, error) {
	return s.primary.ListEngines(ctx)
}

func (s *CachedStore) cacheSnapshot(ctx context.Context, snap *Snapshot) {
	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, snapshotKey(snap.EngineID), data, s.ttl)
	}
}

func snapshotKey(engineID string) string { return fmt.Sprintf("snapshot:%s", engineID) }
