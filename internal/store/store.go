// Package store persists audit trails and point-in-time ledger snapshots
// for replay and debugging. It is never consulted by the engines
// themselves during a trade — per spec.md §3 and SPEC_FULL.md §3, LMSR
// and CLOB ledgers live entirely in process memory, and store only
// observes them from the outside via internal/audit records and
// snapshots a caller chooses to save. PostgreSQL is the source of truth
// for long-lived deployments; Redis and an in-process ristretto cache
// sit in front of it for read traffic, and a local SQLite store is a
// dependency-free single-binary alternative.
package store

import (
	"context"
	"errors"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/ledger"
)

// ErrSnapshotNotFound is returned by GetLatestSnapshot when an engine id
// has no saved snapshot.
var ErrSnapshotNotFound = errors.New("store: no snapshot found")

// Snapshot is a point-in-time capture of one engine ledger's trader
// balances, sufficient to resume audit-trail analysis or a scenario
// replay without re-deriving state from the full record history.
type Snapshot struct {
	EngineID   string
	SequenceNo uint64
	Settled    bool
	Traders    []ledger.TraderAccount
}

// Store is the persistence interface shared by every backend. EngineID
// namespaces records and snapshots by the ledger they came from (e.g. a
// market id or scenario name) — the store itself is ledger-agnostic.
type Store interface {
	// AppendRecords appends audit records for engineID, in order.
	AppendRecords(ctx context.Context, engineID string, records []audit.Record) error

	// GetRecords returns every audit record stored for engineID, oldest
	// first.
	GetRecords(ctx context.Context, engineID string) ([]audit.Record, error)

	// SaveSnapshot stores snap, replacing any previous snapshot with the
	// same EngineID.
	SaveSnapshot(ctx context.Context, engineID string, snap Snapshot) error

	// GetLatestSnapshot returns the most recently saved snapshot for
	// engineID, or ErrSnapshotNotFound if none exists.
	GetLatestSnapshot(ctx context.Context, engineID string) (*Snapshot, error)

	// ListEngines returns the ids of every engine with at least one
	// stored record or snapshot.
	ListEngines(ctx context.Context) ([]string, error)
}
