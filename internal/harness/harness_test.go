package harness

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/clob"
	"github.com/atmx/predengine/internal/ledger"
	"github.com/atmx/predengine/internal/lmsr"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestGetPreset_KnownName(t *testing.T) {
	p, err := GetPreset("small-market")
	if err != nil {
		t.Fatalf("GetPreset failed: %v", err)
	}
	if len(p.Seeds) != 2 {
		t.Errorf("expected 2 seed traders, got %d", len(p.Seeds))
	}
}

func TestGetPreset_UnknownName(t *testing.T) {
	if _, err := GetPreset("does-not-exist"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestClassify_StructuralVsPolicy(t *testing.T) {
	if Classify(lmsr.ErrInsufficientCash) != CategoryPolicy {
		t.Error("expected insufficient cash to classify as POLICY")
	}
	if Classify(lmsr.ErrMarketSettled) != CategoryStructural {
		t.Error("expected settled-market error to classify as STRUCTURAL")
	}
	if Classify(ledger.ErrUnknownTrader) != CategoryStructural {
		t.Error("expected unknown-trader error to classify as STRUCTURAL")
	}
}

func TestFormatError_IncludesCategory(t *testing.T) {
	msg := FormatError(lmsr.ErrInsufficientCash)
	if msg == "" {
		t.Fatal("expected non-empty message")
	}
	if !contains(msg, "POLICY") {
		t.Errorf("FormatError = %q, want it to mention POLICY", msg)
	}
}

func TestReplayLMSRScenario_SingleBuyRecordsTrade(t *testing.T) {
	preset := Preset{Liquidity: d(100), Seeds: []ledger.Seed{{ID: "alice", Cash: d(1000)}}}
	res, err := ReplayLMSRScenario(preset, []Op{
		{Kind: OpLMSRBuy, TraderID: "alice", Outcome: "YES", Qty: d(10)},
	}, audit.New())
	if err != nil {
		t.Fatalf("ReplayLMSRScenario failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(res.Records))
	}
	buyResult, ok := res.LastResult.(*lmsr.BuyResult)
	if !ok {
		t.Fatalf("expected *lmsr.BuyResult, got %T", res.LastResult)
	}
	if !buyResult.Qty.Equal(d(10)) {
		t.Errorf("Qty = %s, want 10", buyResult.Qty)
	}
}

func TestReplayLMSRScenario_StopsOnStructuralError(t *testing.T) {
	preset := Preset{Liquidity: d(100), Seeds: []ledger.Seed{{ID: "alice", Cash: d(1000)}}}
	_, err := ReplayLMSRScenario(preset, []Op{
		{Kind: OpLMSRBuy, TraderID: "carol", Outcome: "YES", Qty: d(10)},
	}, audit.New())
	if err == nil {
		t.Error("expected error for unknown trader")
	}
}

func TestReplayCLOBScenario_PlaceAndCancel(t *testing.T) {
	seeds := []ledger.Seed{{ID: "alice", Cash: d(1000)}}
	res, err := ReplayCLOBScenario(seeds, []Op{
		{Kind: OpCLOBPlaceLimit, TraderID: "alice", Side: "BUY", Price: d(0.4), Qty: d(10)},
	}, audit.New())
	if err != nil {
		t.Fatalf("ReplayCLOBScenario failed: %v", err)
	}
	orderResult, ok := res.LastResult.(*clob.OrderResult)
	if !ok {
		t.Fatalf("expected *clob.OrderResult, got %T", res.LastResult)
	}
	if orderResult.Status != clob.StatusOpen {
		t.Errorf("expected OPEN resting order, got %s", orderResult.Status)
	}

	res2, err := ReplayCLOBScenario(seeds, []Op{
		{Kind: OpCLOBPlaceLimit, TraderID: "alice", Side: "BUY", Price: d(0.4), Qty: d(10)},
		{Kind: OpCLOBCancel, OrderID: orderResult.OrderID},
	}, audit.New())
	if err != nil {
		t.Fatalf("ReplayCLOBScenario (cancel) failed: %v", err)
	}
	cancelResult := res2.LastResult.(*clob.OrderResult)
	if cancelResult.Status != clob.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelResult.Status)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
