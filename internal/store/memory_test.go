package store

import (
	"context"
	"testing"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/ledger"
)

func TestMemoryStore_AppendAndGetRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	records := []audit.Record{
		{Timestamp: 1, Type: audit.OrderPlaced},
		{Timestamp: 2, Type: audit.Trade},
	}
	if err := s.AppendRecords(ctx, "mkt-1", records); err != nil {
		t.Fatalf("AppendRecords failed: %v", err)
	}

	got, err := s.GetRecords(ctx, "mkt-1")
	if err != nil {
		t.Fatalf("GetRecords failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Timestamp != 1 || got[1].Timestamp != 2 {
		t.Error("records out of order")
	}
}

func TestMemoryStore_GetRecords_UnknownEngine(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.GetRecords(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty slice, got %d records", len(got))
	}
}

func TestMemoryStore_SnapshotRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	snap := Snapshot{
		SequenceNo: 5,
		Settled:    false,
		Traders:    []ledger.TraderAccount{{ID: "alice"}},
	}
	if err := s.SaveSnapshot(ctx, "mkt-1", snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := s.GetLatestSnapshot(ctx, "mkt-1")
	if err != nil {
		t.Fatalf("GetLatestSnapshot failed: %v", err)
	}
	if got.EngineID != "mkt-1" || got.SequenceNo != 5 {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if len(got.Traders) != 1 || got.Traders[0].ID != "alice" {
		t.Errorf("traders not round-tripped: %+v", got.Traders)
	}
}

func TestMemoryStore_GetLatestSnapshot_NotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetLatestSnapshot(context.Background(), "nope"); err != ErrSnapshotNotFound {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestMemoryStore_SaveSnapshot_ReplacesPrevious(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.SaveSnapshot(ctx, "mkt-1", Snapshot{SequenceNo: 1})
	s.SaveSnapshot(ctx, "mkt-1", Snapshot{SequenceNo: 2})

	got, err := s.GetLatestSnapshot(ctx, "mkt-1")
	if err != nil {
		t.Fatalf("GetLatestSnapshot failed: %v", err)
	}
	if got.SequenceNo != 2 {
		t.Errorf("expected latest snapshot (seq 2), got seq %d", got.SequenceNo)
	}
}

func TestMemoryStore_ListEngines(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.AppendRecords(ctx, "mkt-1", []audit.Record{{Timestamp: 1}})
	s.SaveSnapshot(ctx, "mkt-2", Snapshot{SequenceNo: 1})

	engines, err := s.ListEngines(ctx)
	if err != nil {
		t.Fatalf("ListEngines failed: %v", err)
	}
	seen := map[string]bool{}
	for _, id := range engines {
		seen[id] = true
	}
	if !seen["mkt-1"] || !seen["mkt-2"] {
		t.Errorf("expected both engines listed, got %v", engines)
	}
}

func TestMemoryStore_ImplementsStore(t *testing.T) {
	var _ Store = NewMemoryStore()
}
