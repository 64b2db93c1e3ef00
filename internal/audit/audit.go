// Package audit is the append-only event log both engines' callers use
// to record order placements, trades, cancellations, and book snapshots,
// per spec.md §4.4. Logging is optional — a nil *Log is a valid no-op
// logger, so callers that don't care about the audit trail pay nothing
// for it.
package audit

import (
	"encoding/json"
	"sync"
)

// EventType identifies the kind of audit record.
type EventType string

const (
	OrderPlaced    EventType = "ORDER_PLACED"
	Trade          EventType = "TRADE"
	OrderCancelled EventType = "ORDER_CANCELLED"
	BookSnapshot   EventType = "BOOK_SNAPSHOT"
	MarketData     EventType = "MARKET_DATA"
)

// Record is one append-only log entry. Data is whatever the emitting
// call site passes — typically an engine result struct or a market-data
// snapshot.
type Record struct {
	Timestamp uint64    `json:"timestamp"`
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
}

// Log is a thread-safe append-only event log. The zero value is ready to
// use; a nil *Log is also safe to call methods on (every method no-ops).
type Log struct {
	mu      sync.Mutex
	records []Record
	seq     uint64
}

// New returns an empty Log.
func New() *Log {
	return &Log{}
}

// Record appends a new entry with the given type and data, stamped with
// this log's own monotonic sequence counter (not wall-clock time, so
// replays stay deterministic). No-ops on a nil Log.
func (l *Log) Record(eventType EventType, data any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.records = append(l.records, Record{Timestamp: l.seq, Type: eventType, Data: data})
}

// GetLogs returns a snapshot copy of every recorded event, in order.
// Returns nil on a nil Log.
func (l *Log) GetLogs() []Record {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Clear removes every recorded event. No-ops on a nil Log.
func (l *Log) Clear() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.seq = 0
}

// ExportJSON renders the full log as a JSON array of records. Returns
// "[]" on a nil Log.
func (l *Log) ExportJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.GetLogs())
}
