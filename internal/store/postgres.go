package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/ledger"
)

// PostgresStore implements Store using PostgreSQL as the source of
// truth. Audit records and snapshots are stored as JSONB, since their
// shape varies by event type and engine rather than following a fixed
// relational schema; decimal fields inside that JSON round-trip through
// shopspring/decimal's own (string-preserving) marshaling.
//
// Expected schema:
//
//	CREATE TABLE audit_records (
//	    engine_id TEXT NOT NULL,
//	    seq       BIGINT NOT NULL,
//	    data      JSONB NOT NULL,
//	    PRIMARY KEY (engine_id, seq)
//	);
//	CREATE TABLE ledger_snapshots (
//	    engine_id   TEXT PRIMARY KEY,
//	    sequence_no BIGINT NOT NULL,
//	    settled     BOOLEAN NOT NULL,
//	    traders     JSONB NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) AppendRecords(ctx context.Context, engineID string, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("append records %s: begin: %w", engineID, err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("append records %s: marshal record: %w", engineID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO audit_records (engine_id, seq, data) VALUES ($1, $2, $3)
			 ON CONFLICT (engine_id, seq) DO NOTHING`,
			engineID, r.Timestamp, data); err != nil {
			return fmt.Errorf("append records %s: insert: %w", engineID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("append records %s: commit: %w", engineID, err)
	}
	return nil
}

func (s *PostgresStore) GetRecords(ctx context.Context, engineID string) ([]audit.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM audit_records WHERE engine_id = $1 ORDER BY seq ASC`, engineID)
	if err != nil {
		return nil, fmt.Errorf("get records %s: %w", engineID, err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("get records %s: scan: %w", engineID, err)
		}
		var r audit.Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("get records %s: unmarshal: %w", engineID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, engineID string, snap Snapshot) error {
	traders, err := json.Marshal(snap.Traders)
	if err != nil {
		return fmt.Errorf("save snapshot %s: marshal traders: %w", engineID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ledger_snapshots (engine_id, sequence_no, settled, traders)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (engine_id) DO UPDATE
		 SET sequence_no = EXCLUDED.sequence_no, settled = EXCLUDED.settled, traders = EXCLUDED.traders`,
		engineID, snap.SequenceNo, snap.Settled, traders)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", engineID, err)
	}
	return nil
}

func (s *PostgresStore) GetLatestSnapshot(ctx context.Context, engineID string) (*Snapshot, error) {
	var snap Snapshot
	var traders []byte
	err := s.pool.QueryRow(ctx,
		`SELECT sequence_no, settled, traders FROM ledger_snapshots WHERE engine_id = $1`, engineID).
		Scan(&snap.SequenceNo, &snap.Settled, &traders)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotNotFound, engineID, err)
	}
	var accounts []ledger.TraderAccount
	if err := json.Unmarshal(traders, &accounts); err != nil {
		return nil, fmt.Errorf("get latest snapshot %s: unmarshal traders: %w", engineID, err)
	}
	snap.EngineID = engineID
	snap.Traders = accounts
	return &snap, nil
}

func (s *PostgresStore) ListEngines(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT engine_id FROM audit_records
		 UNION
		 SELECT engine_id FROM ledger_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("list engines: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list engines: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
