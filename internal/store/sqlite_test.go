package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/atmx/predengine/internal/audit"
)

func TestSQLiteStore_AppendRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db}
	ctx := context.Background()

	records := []audit.Record{
		{Timestamp: 1, Type: audit.OrderPlaced, Data: "x"},
		{Timestamp: 2, Type: audit.Trade, Data: "y"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT OR IGNORE INTO audit_records").
		WithArgs("mkt-1", uint64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT OR IGNORE INTO audit_records").
		WithArgs("mkt-1", uint64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.AppendRecords(ctx, "mkt-1", records); err != nil {
		t.Fatalf("AppendRecords failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLiteStore_AppendRecords_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db}
	if err := s.AppendRecords(context.Background(), "mkt-1", nil); err != nil {
		t.Fatalf("expected no error for empty records, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLiteStore_GetLatestSnapshot_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db}
	mock.ExpectQuery("SELECT sequence_no, settled, traders FROM ledger_snapshots").
		WithArgs("mkt-1").
		WillReturnError(sqlmock.ErrCancelled)

	_, err = s.GetLatestSnapshot(context.Background(), "mkt-1")
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func TestSQLiteStore_SaveSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db}
	mock.ExpectExec("INSERT INTO ledger_snapshots").
		WithArgs("mkt-1", uint64(3), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = s.SaveSnapshot(context.Background(), "mkt-1", Snapshot{SequenceNo: 3, Settled: true})
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLiteStore_ImplementsStore(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	var _ Store = &SQLiteStore{db: db}
}
