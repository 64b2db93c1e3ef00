package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/ledger"
)

// SQLiteStore implements Store using an embedded modernc.org/sqlite
// database, a dependency-free alternative to PostgreSQL for a
// single-binary deployment or local development box. Schema mirrors
// PostgresStore's, with JSON stored as TEXT.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) a SQLite database at dsn
// and ensures its schema exists.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_records (
			engine_id TEXT NOT NULL,
			seq       INTEGER NOT NULL,
			data      TEXT NOT NULL,
			PRIMARY KEY (engine_id, seq)
		);
		CREATE TABLE IF NOT EXISTS ledger_snapshots (
			engine_id   TEXT PRIMARY KEY,
			sequence_no INTEGER NOT NULL,
			settled     INTEGER NOT NULL,
			traders     TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate sqlite store: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) AppendRecords(ctx context.Context, engineID string, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append records %s: begin: %w", engineID, err)
	}
	defer tx.Rollback()

	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("append records %s: marshal record: %w", engineID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO audit_records (engine_id, seq, data) VALUES (?, ?, ?)`,
			engineID, r.Timestamp, string(data)); err != nil {
			return fmt.Errorf("append records %s: insert: %w", engineID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append records %s: commit: %w", engineID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRecords(ctx context.Context, engineID string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM audit_records WHERE engine_id = ? ORDER BY seq ASC`, engineID)
	if err != nil {
		return nil, fmt.Errorf("get records %s: %w", engineID, err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("get records %s: scan: %w", engineID, err)
		}
		var r audit.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("get records %s: unmarshal: %w", engineID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, engineID string, snap Snapshot) error {
	traders, err := json.Marshal(snap.Traders)
	if err != nil {
		return fmt.Errorf("save snapshot %s: marshal traders: %w", engineID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_snapshots (engine_id, sequence_no, settled, traders) VALUES (?, ?, ?, ?)
		 ON CONFLICT(engine_id) DO UPDATE SET sequence_no = excluded.sequence_no,
		 settled = excluded.settled, traders = excluded.traders`,
		engineID, snap.SequenceNo, snap.Settled, string(traders))
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", engineID, err)
	}
	return nil
}

func (s *SQLiteStore) GetLatestSnapshot(ctx context.Context, engineID string) (*Snapshot, error) {
	var snap Snapshot
	var settled int
	var traders string
	err := s.db.QueryRowContext(ctx,
		`SELECT sequence_no, settled, traders FROM ledger_snapshots WHERE engine_id = ?`, engineID).
		Scan(&snap.SequenceNo, &settled, &traders)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotNotFound, engineID, err)
	}
	var accounts []ledger.TraderAccount
	if err := json.Unmarshal([]byte(traders), &accounts); err != nil {
		return nil, fmt.Errorf("get latest snapshot %s: unmarshal traders: %w", engineID, err)
	}
	snap.EngineID = engineID
	snap.Settled = settled != 0
	snap.Traders = accounts
	return &snap, nil
}

func (s *SQLiteStore) ListEngines(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
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
