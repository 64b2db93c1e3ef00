package store

import (
	"context"
	"sync"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/ledger"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// local development. Not suitable for production: nothing survives a
// restart.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string][]audit.Record
	snapshots map[string]Snapshot
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string][]audit.Record),
		snapshots: make(map[string]Snapshot),
	}
}

func (s *MemoryStore) AppendRecords(_ context.Context, engineID string, records []audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[engineID] = append(s.records[engineID], records...)
	return nil
}

func (s *MemoryStore) GetRecords(_ context.Context, engineID string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Record, len(s.records[engineID]))
	copy(out, s.records[engineID])
	return out, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, engineID string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.EngineID = engineID
	s.snapshots[engineID] = snap
	return nil
}

func (s *MemoryStore) GetLatestSnapshot(_ context.Context, engineID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[engineID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	cp := snap
	cp.Traders = append([]ledger.TraderAccount(nil), snap.Traders...)
	return &cp, nil
}

func (s *MemoryStore) ListEngines(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for id := range s.records {
		seen[id] = true
	}
	for id := range s.snapshots {
		seen[id] = true
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}
