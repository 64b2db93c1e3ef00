// Package ledger defines the trader-account vocabulary shared by the LMSR
// and CLOB engines: non-negative cash and share balances, keyed by an
// opaque trader id. Neither engine mutates a ledger concurrently with
// itself — see the concurrency model in SPEC_FULL.md §5 — so this package
// does no locking of its own; callers serialize calls to a given ledger.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownTrader is returned whenever an operation names a trader id
// that was not present at ledger creation. This is a structural
// precondition violation (a caller bug), not a policy rejection.
var ErrUnknownTrader = errors.New("ledger: unknown trader")

// TraderAccount holds one trader's cash and share balances. Cash,
// YesShares, and NoShares are never negative outside of the atomic
// engine transition that might transiently compute a negative candidate
// before rejecting it.
type TraderAccount struct {
	ID        string
	Cash      decimal.Decimal
	YesShares decimal.Decimal
	NoShares  decimal.Decimal
}

// Seed is the input shape for creating a trader at ledger init time:
// an id and an optional starting cash balance.
type Seed struct {
	ID   string
	Cash decimal.Decimal
}

// Book is a map of trader id to account, the common substrate both
// engines' ledgers embed.
type Book struct {
	traders map[string]*TraderAccount
}

// NewBook creates a Book from a set of initial traders. Traders are not
// added after creation — this mirrors spec.md §3's ledger lifecycle.
func NewBook(seeds []Seed) (*Book, error) {
	traders := make(map[string]*TraderAccount, len(seeds))
	for _, s := range seeds {
		if s.ID == "" {
			return nil, errors.New("ledger: trader id must not be empty")
		}
		if _, exists := traders[s.ID]; exists {
			return nil, fmt.Errorf("ledger: duplicate trader id %q", s.ID)
		}
		cash := s.Cash
		if cash.IsZero() {
			cash = decimal.Zero
		}
		if cash.IsNegative() {
			return nil, fmt.Errorf("ledger: trader %q seeded with negative cash", s.ID)
		}
		traders[s.ID] = &TraderAccount{
			ID:        s.ID,
			Cash:      cash,
			YesShares: decimal.Zero,
			NoShares:  decimal.Zero,
		}
	}
	return &Book{traders: traders}, nil
}

// Get returns the trader account for id, or ErrUnknownTrader.
func (b *Book) Get(id string) (*TraderAccount, error) {
	t, ok := b.traders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrader, id)
	}
	return t, nil
}

// Has reports whether id names a known trader.
func (b *Book) Has(id string) bool {
	_, ok := b.traders[id]
	return ok
}

// All returns a stable-ordered snapshot of every trader account. The
// returned accounts are copies; mutating them does not affect the ledger.
func (b *Book) All() []TraderAccount {
	out := make([]TraderAccount, 0, len(b.traders))
	for _, id := range b.sortedIDs() {
		out = append(out, *b.traders[id])
	}
	return out
}

// sortedIDs returns trader ids in a deterministic (lexicographic) order
// so ledger-wide snapshots/iteration are reproducible across instances.
func (b *Book) sortedIDs() []string {
	ids := make([]string, 0, len(b.traders))
	for id := range b.traders {
		ids = append(ids, id)
	}
	// Simple insertion sort: trader counts in this domain are small
	// (test fixtures, demo scenarios), and avoiding a sort.Strings import
	// keeps this file import-light; correctness, not micro-performance,
	// is what matters here.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// TotalCash sums cash across every trader, used by cash-conservation
// invariant checks.
func (b *Book) TotalCash() decimal.Decimal {
	total := decimal.Zero
	for _, t := range b.traders {
		total = total.Add(t.Cash)
	}
	return total
}

// TotalShares sums YesShares (or NoShares) across every trader, used by
// share-conservation invariant checks.
func (b *Book) TotalShares(yes bool) decimal.Decimal {
	total := decimal.Zero
	for _, t := range b.traders {
		if yes {
			total = total.Add(t.YesShares)
		} else {
			total = total.Add(t.NoShares)
		}
	}
	return total
}
