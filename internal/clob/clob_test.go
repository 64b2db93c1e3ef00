package clob

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/predengine/internal/ledger"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// S4 — three SELLs at 0.50 (Alice 5, Bob 3, Carol 2 in that order), an
// incoming BUY 0.55 x 6 fills Alice fully, Bob partially, leaving Bob 2
// and Carol 2 resting at 0.50.
func TestPlaceLimitOrder_PriceTimePriority(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{
		{ID: "alice", Cash: d(0)},
		{ID: "bob", Cash: d(0)},
		{ID: "carol", Cash: d(0)},
		{ID: "dave", Cash: d(100)},
	})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	seedShares(t, l, "alice", d(5))
	seedShares(t, l, "bob", d(3))
	seedShares(t, l, "carol", d(2))

	mustPlaceLimit(t, l, "alice", SELL, d(0.50), d(5))
	mustPlaceLimit(t, l, "bob", SELL, d(0.50), d(3))
	mustPlaceLimit(t, l, "carol", SELL, d(0.50), d(2))

	res, err := PlaceLimitOrder(l, "dave", BUY, d(0.55), d(6))
	if err != nil {
		t.Fatalf("PlaceLimitOrder failed: %v", err)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(res.Trades))
	}
	if !res.Trades[0].Qty.Equal(d(5)) || res.Trades[0].SellTraderID != "alice" {
		t.Errorf("trade0 = %+v, want alice for 5", res.Trades[0])
	}
	if !res.Trades[1].Qty.Equal(d(1)) || res.Trades[1].SellTraderID != "bob" {
		t.Errorf("trade1 = %+v, want bob for 1", res.Trades[1])
	}
	for _, tr := range res.Trades {
		if !tr.Price.Equal(d(0.50)) {
			t.Errorf("trade executed at %s, want resting price 0.50", tr.Price)
		}
	}

	remaining := GetOrdersAtPrice(l.Book, SELL, d(0.50))
	if len(remaining) != 2 {
		t.Fatalf("expected 2 resting orders at 0.50, got %d", len(remaining))
	}
	if remaining[0].TraderID != "bob" || !remaining[0].Qty.Equal(d(2)) {
		t.Errorf("remaining[0] = %+v, want bob qty 2", remaining[0])
	}
	if remaining[1].TraderID != "carol" || !remaining[1].Qty.Equal(d(2)) {
		t.Errorf("remaining[1] = %+v, want carol qty 2", remaining[1])
	}
}

// S5 — a market BUY walks three ask levels, paying each level's own
// price (price improvement to the aggressor), weighted-averaging to
// 0.5375.
func TestPlaceMarketOrder_WalksMultipleLevels(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{
		{ID: "maker", Cash: d(0)},
		{ID: "taker", Cash: d(100)},
	})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	seedShares(t, l, "maker", d(15))

	mustPlaceLimit(t, l, "maker", SELL, d(0.50), d(5))
	mustPlaceLimit(t, l, "maker", SELL, d(0.55), d(5))
	mustPlaceLimit(t, l, "maker", SELL, d(0.60), d(5))

	res, err := PlaceMarketOrder(l, "taker", BUY, d(12))
	if err != nil {
		t.Fatalf("PlaceMarketOrder failed: %v", err)
	}
	if len(res.Trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(res.Trades))
	}
	if !res.FilledQty.Equal(d(12)) {
		t.Errorf("FilledQty = %s, want 12", res.FilledQty)
	}
	want := d(0.5375)
	if res.AvgFillPrice.Sub(want).Abs().GreaterThan(decimal.New(1, -9)) {
		t.Errorf("AvgFillPrice = %s, want %s", res.AvgFillPrice, want)
	}
}

// S6 — selling without sufficient shares is a policy rejection, not a
// structural error.
func TestPlaceLimitOrder_RejectsSellWithoutShares(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "bob", Cash: d(0)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	res, err := PlaceLimitOrder(l, "bob", SELL, d(0.50), d(10))
	if err != nil {
		t.Fatalf("unexpected structural error: %v", err)
	}
	if res.Status != StatusRejected {
		t.Fatalf("expected REJECTED, got %s", res.Status)
	}
	if !containsSubstring(res.RejectionReason, "Insufficient shares") {
		t.Errorf("RejectionReason = %q, want substring 'Insufficient shares'", res.RejectionReason)
	}
}

// S7 — Alice sells 100 shares @0.60 to Bob; settlement at YES pays out
// Alice's remaining 100 and Bob's new 100.
func TestSettle_PaysWinningShares(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{
		{ID: "alice", Cash: d(9900)},
		{ID: "bob", Cash: d(10000)},
	})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	seedShares(t, l, "alice", d(200))

	mustPlaceLimit(t, l, "alice", SELL, d(0.60), d(100))
	res, err := PlaceLimitOrder(l, "bob", BUY, d(0.60), d(100))
	if err != nil {
		t.Fatalf("PlaceLimitOrder failed: %v", err)
	}
	if res.Status != StatusFilled {
		t.Fatalf("expected bob's order FILLED, got %s", res.Status)
	}

	alice, _ := l.Traders.Get("alice")
	bob, _ := l.Traders.Get("bob")
	if !alice.Cash.Equal(d(9960)) {
		t.Errorf("alice cash after trade = %s, want 9960", alice.Cash)
	}
	if !bob.Cash.Equal(d(9940)) {
		t.Errorf("bob cash after trade = %s, want 9940", bob.Cash)
	}
	if !alice.YesShares.Equal(d(100)) || !bob.YesShares.Equal(d(100)) {
		t.Errorf("expected alice/bob to hold 100 shares each, got alice=%s bob=%s", alice.YesShares, bob.YesShares)
	}

	settleRes, err := Settle(l, YES)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !settleRes.TotalPayout.Equal(d(200)) {
		t.Errorf("TotalPayout = %s, want 200", settleRes.TotalPayout)
	}

	aliceAfter, _ := l.Traders.Get("alice")
	bobAfter, _ := l.Traders.Get("bob")
	if !aliceAfter.Cash.Equal(d(10060)) {
		t.Errorf("alice finalCash = %s, want 10060", aliceAfter.Cash)
	}
	if !bobAfter.Cash.Equal(d(10040)) {
		t.Errorf("bob finalCash = %s, want 10040", bobAfter.Cash)
	}
	if !aliceAfter.YesShares.IsZero() || !bobAfter.YesShares.IsZero() {
		t.Error("expected share balances zeroed after settlement")
	}
}

func TestCancelOrder_Idempotent(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "alice", Cash: d(100)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	res, err := CancelOrder(l, "ORD-nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusCancelled {
		t.Errorf("expected CANCELLED for unknown orderId, got %s", res.Status)
	}
}

func TestCancelOrder_RemovesFromBook(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "alice", Cash: d(100)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	placeRes := mustPlaceLimit(t, l, "alice", BUY, d(0.40), d(10))

	cancelRes, err := CancelOrder(l, placeRes.OrderID)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if cancelRes.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelRes.Status)
	}
	if _, ok := BestBid(l.Book); ok {
		t.Error("expected empty bid book after cancelling the only order")
	}
}

func TestCancelOrder_RejectsAfterSettlement(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "alice", Cash: d(100)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	placeRes := mustPlaceLimit(t, l, "alice", BUY, d(0.40), d(10))
	if _, err := Settle(l, YES); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if _, err := CancelOrder(l, placeRes.OrderID); err != ErrMarketSettled {
		t.Errorf("expected ErrMarketSettled, got %v", err)
	}
}

// Uncrossed invariant: after every operation, bestBid <= bestAsk or at
// least one side is empty.
func TestOrderBook_StaysUncrossed(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{
		{ID: "alice", Cash: d(0)},
		{ID: "bob", Cash: d(1000)},
	})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	seedShares(t, l, "alice", d(50))

	mustPlaceLimit(t, l, "alice", SELL, d(0.60), d(10))
	mustPlaceLimit(t, l, "bob", BUY, d(0.40), d(10))

	bid, okB := BestBid(l.Book)
	ask, okA := BestAsk(l.Book)
	if okB && okA && bid.GreaterThan(ask) {
		t.Errorf("book is crossed: bestBid=%s bestAsk=%s", bid, ask)
	}
}

// Cash and share conservation across a matched trade: total cash and
// total shares in the ledger are unchanged (shares/cash move
// trader-to-trader, nothing is minted or destroyed).
func TestMatchedTrade_ConservesCashAndShares(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{
		{ID: "alice", Cash: d(100)},
		{ID: "bob", Cash: d(900)},
	})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	seedShares(t, l, "alice", d(20))

	cashBefore := l.Traders.TotalCash()
	sharesBefore := l.Traders.TotalShares(true)

	mustPlaceLimit(t, l, "alice", SELL, d(0.50), d(20))
	mustPlaceLimit(t, l, "bob", BUY, d(0.50), d(20))

	cashAfter := l.Traders.TotalCash()
	sharesAfter := l.Traders.TotalShares(true)
	if !cashAfter.Equal(cashBefore) {
		t.Errorf("total cash changed: before=%s after=%s", cashBefore, cashAfter)
	}
	if !sharesAfter.Equal(sharesBefore) {
		t.Errorf("total shares changed: before=%s after=%s", sharesBefore, sharesAfter)
	}
}

func TestGetAvailableShares_SubtractsOpenSellOrders(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "alice", Cash: d(0)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	seedShares(t, l, "alice", d(10))
	mustPlaceLimit(t, l, "alice", SELL, d(0.50), d(6))

	available, err := GetAvailableShares(l, "alice")
	if err != nil {
		t.Fatalf("GetAvailableShares failed: %v", err)
	}
	if !available.Equal(d(4)) {
		t.Errorf("available = %s, want 4", available)
	}
}

func TestGetAvailableCash_SubtractsOpenBuyOrders(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "alice", Cash: d(100)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	mustPlaceLimit(t, l, "alice", BUY, d(0.60), d(100))

	available, err := GetAvailableCash(l, "alice")
	if err != nil {
		t.Fatalf("GetAvailableCash failed: %v", err)
	}
	if !available.Equal(d(40)) {
		t.Errorf("available = %s, want 40", available)
	}
}

// A trader's cash committed by one resting BUY order must be reflected
// against their next BUY, so two resting orders can never together
// overcommit the trader's cash when both fill.
func TestPlaceLimitOrder_RejectsSecondBuyThatWouldOvercommitCash(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "alice", Cash: d(100)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	mustPlaceLimit(t, l, "alice", BUY, d(0.60), d(100))

	res, err := PlaceLimitOrder(l, "alice", BUY, d(0.50), d(100))
	if err != nil {
		t.Fatalf("unexpected structural error: %v", err)
	}
	if res.Status != StatusRejected {
		t.Fatalf("expected REJECTED, got %s", res.Status)
	}
	if !containsSubstring(res.RejectionReason, "Insufficient cash") {
		t.Errorf("RejectionReason = %q, want substring 'Insufficient cash'", res.RejectionReason)
	}
}

func TestGetDepth_SumsTopNLevels(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "alice", Cash: d(0)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	seedShares(t, l, "alice", d(30))
	mustPlaceLimit(t, l, "alice", SELL, d(0.50), d(5))
	mustPlaceLimit(t, l, "alice", SELL, d(0.55), d(5))
	mustPlaceLimit(t, l, "alice", SELL, d(0.60), d(5))

	depth := GetDepth(l.Book, SELL, 2)
	if !depth.Equal(d(10)) {
		t.Errorf("GetDepth(2) = %s, want 10", depth)
	}
}

func TestGetTraderPortfolioValue(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "alice", Cash: d(50)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	seedShares(t, l, "alice", d(10))
	value, err := GetTraderPortfolioValue(l, "alice", d(0.7))
	if err != nil {
		t.Fatalf("GetTraderPortfolioValue failed: %v", err)
	}
	// cash(50) + 10 yes @ 0.7 + 0 no @ 0.3 = 57
	if !value.Equal(d(57)) {
		t.Errorf("portfolio value = %s, want 57", value)
	}
}

func TestGetSettlementPreview_DoesNotMutate(t *testing.T) {
	l, err := InitLedger([]ledger.Seed{{ID: "alice", Cash: d(100)}})
	if err != nil {
		t.Fatalf("InitLedger failed: %v", err)
	}
	seedShares(t, l, "alice", d(10))

	preview := GetSettlementPreview(l)
	if preview[YES]["alice"].FinalCash.Cmp(d(110)) != 0 {
		t.Errorf("preview YES finalCash = %s, want 110", preview[YES]["alice"].FinalCash)
	}
	if l.Settled {
		t.Error("GetSettlementPreview must not mutate ledger state")
	}
	alice, _ := l.Traders.Get("alice")
	if !alice.YesShares.Equal(d(10)) {
		t.Error("GetSettlementPreview must not mutate trader balances")
	}
}

// --- helpers ---

func mustPlaceLimit(t *testing.T, l *Ledger, traderID string, side Side, price, qty decimal.Decimal) *OrderResult {
	t.Helper()
	res, err := PlaceLimitOrder(l, traderID, side, price, qty)
	if err != nil {
		t.Fatalf("PlaceLimitOrder(%s) failed: %v", traderID, err)
	}
	return res
}

// seedShares grants a trader yesShares directly, standing in for the
// out-of-scope external market-maker bootstrapping policy (spec.md §9).
func seedShares(t *testing.T, l *Ledger, traderID string, qty decimal.Decimal) {
	t.Helper()
	trader, err := l.Traders.Get(traderID)
	if err != nil {
		t.Fatalf("seedShares: unknown trader %s", traderID)
	}
	trader.YesShares = trader.YesShares.Add(qty)
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
