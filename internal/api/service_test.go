package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/predengine/internal/api"
	"github.com/atmx/predengine/internal/ledger"
	"github.com/atmx/predengine/internal/store"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func newTestEnv(t *testing.T) (*api.Service, http.Handler) {
	t.Helper()
	svc, err := api.NewService(
		"lmsr-demo", d(100), []ledger.Seed{{ID: "alice", Cash: d(1000)}},
		"clob-demo", []ledger.Seed{{ID: "alice", Cash: d(1000)}, {ID: "bob", Cash: d(1000)}},
		store.NewMemoryStore(), nil,
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, svc.Router()
}

func TestGetLMSRPrices_StartsAtHalf(t *testing.T) {
	_, router := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lmsr/prices", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var prices map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &prices); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, key := range []string{"PYes", "PNo"} {
		p, err := decimal.NewFromString(prices[key])
		if err != nil || !p.Equal(d(0.5)) {
			t.Errorf("%s = %q, want 0.5", key, prices[key])
		}
	}
}

func TestBuyLMSR_ExecutesTrade(t *testing.T) {
	_, router := newTestEnv(t)
	body, _ := json.Marshal(map[string]any{"trader_id": "alice", "outcome": "YES", "qty": "10"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lmsr/buy", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBuyLMSR_UnknownTraderReturns409(t *testing.T) {
	_, router := newTestEnv(t)
	body, _ := json.Marshal(map[string]any{"trader_id": "mallory", "outcome": "YES", "qty": "10"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lmsr/buy", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPlaceCLOBOrder_RestsOnEmptyBook(t *testing.T) {
	_, router := newTestEnv(t)
	body, _ := json.Marshal(map[string]any{"trader_id": "alice", "side": "BUY", "price": "0.4", "qty": "10"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/clob/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCancelCLOBOrder_UnknownIDIsIdempotent(t *testing.T) {
	_, router := newTestEnv(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/clob/orders/ORD-99999999", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
