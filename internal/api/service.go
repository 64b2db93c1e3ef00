package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/clob"
	"github.com/atmx/predengine/internal/harness"
	"github.com/atmx/predengine/internal/ledger"
	"github.com/atmx/predengine/internal/lmsr"
	"github.com/atmx/predengine/internal/store"
)

// Service wires one LMSR market and one CLOB market to HTTP handlers,
// broadcasting every state-changing call over a WebSocket hub and
// appending it to an in-memory audit log. After each LMSR buy, LMSR
// settlement and CLOB order placement it saves a snapshot of that
// ledger's trader balances to a store; a CLOB cancel saves none. It
// serializes every call with a single mutex — this is a
// reference/demo surface, not a horizontally-scaled trading venue; see
// SPEC_FULL.md §5's concurrency model.
type Service struct {
	mu sync.Mutex

	lmsrLedger *lmsr.Ledger
	clobLedger *clob.Ledger

	lmsrEngineID string
	clobEngineID string

	// instanceID identifies this particular server process, distinct
	// from the engine ids above which name markets and survive a
	// restart. Surfaced on /health so an operator juggling several
	// deployments can tell which process answered a request.
	instanceID string

	log   *audit.Log
	st    store.Store
	wsHub *WSHub
}

// NewService builds a Service over a fresh LMSR ledger (liquidity b,
// lmsrSeeds) and a fresh CLOB ledger (clobSeeds), logging every call to
// an internal audit log and persisting snapshots to st (which may be
// nil to disable persistence). hub may be nil to disable broadcasting.
func NewService(lmsrEngineID string, b decimal.Decimal, lmsrSeeds []ledger.Seed, clobEngineID string, clobSeeds []ledger.Seed, st store.Store, hub *WSHub) (*Service, error) {
	lmsrLedger, err := lmsr.InitLedger(b, lmsrSeeds)
	if err != nil {
		return nil, err
	}
	clobLedger, err := clob.InitLedger(clobSeeds)
	if err != nil {
		return nil, err
	}
	return &Service{
		lmsrLedger:   lmsrLedger,
		clobLedger:   clobLedger,
		lmsrEngineID: lmsrEngineID,
		clobEngineID: clobEngineID,
		instanceID:   uuid.New().String(),
		log:          audit.New(),
		st:           st,
		wsHub:        hub,
	}, nil
}

// InstanceID returns the identifier generated for this process at
// startup, surfaced on /health.
func (s *Service) InstanceID() string {
	return s.instanceID
}

// writeError writes a JSON error response, in the convention this
// engine's reference front end has used since its weather-market
// incarnation.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- LMSR handlers ---

// GetLMSRPrices handles GET /api/v1/lmsr/prices
func (s *Service) GetLMSRPrices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, lmsr.GetPrices(s.lmsrLedger.Market))
}

type quoteLMSRRequest struct {
	Outcome string          `json:"outcome"`
	Qty     decimal.Decimal `json:"qty"`
}

// QuoteLMSR handles POST /api/v1/lmsr/quote
func (s *Service) QuoteLMSR(w http.ResponseWriter, r *http.Request) {
	var req quoteLMSRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	quote, err := lmsr.QuoteQtyBuy(s.lmsrLedger.Market, lmsr.Outcome(req.Outcome), req.Qty)
	if err != nil {
		writeError(w, harness.FormatError(err), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type buyLMSRRequest struct {
	TraderID string          `json:"trader_id"`
	Outcome  string          `json:"outcome"`
	Qty      decimal.Decimal `json:"qty"`
}

// BuyLMSR handles POST /api/v1/lmsr/buy
func (s *Service) BuyLMSR(w http.ResponseWriter, r *http.Request) {
	var req buyLMSRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	res, err := lmsr.ExecuteBuy(s.lmsrLedger, req.TraderID, lmsr.Outcome(req.Outcome), req.Qty)
	s.mu.Unlock()
	if err != nil {
		writeError(w, harness.FormatError(err), http.StatusConflict)
		return
	}

	s.log.Record(audit.Trade, res)
	s.wsHub.Broadcast(WSMessage{Type: "lmsr_trade", EngineID: s.lmsrEngineID, Data: res})
	s.persistSnapshot(r.Context(), s.lmsrEngineID, s.lmsrLedger.Traders, s.lmsrLedger.Market.Settled)
	writeJSON(w, http.StatusCreated, res)
}

type settleLMSRRequest struct {
	Outcome string `json:"outcome"`
}

// SettleLMSR handles POST /api/v1/lmsr/settle
func (s *Service) SettleLMSR(w http.ResponseWriter, r *http.Request) {
	var req settleLMSRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	res, err := lmsr.Settle(s.lmsrLedger, lmsr.Outcome(req.Outcome))
	s.mu.Unlock()
	if err != nil {
		writeError(w, harness.FormatError(err), http.StatusConflict)
		return
	}

	s.log.Record(audit.MarketData, res)
	s.wsHub.Broadcast(WSMessage{Type: "lmsr_settled", EngineID: s.lmsrEngineID, Data: res})
	s.persistSnapshot(r.Context(), s.lmsrEngineID, s.lmsrLedger.Traders, true)
	writeJSON(w, http.StatusOK, res)
}

// --- CLOB handlers ---

// GetCLOBBook handles GET /api/v1/clob/book
func (s *Service) GetCLOBBook(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bestBid, _ := clob.BestBid(s.clobLedger.Book)
	bestAsk, _ := clob.BestAsk(s.clobLedger.Book)
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"best_bid": bestBid, "best_ask": bestAsk})
}

// recordBookSnapshotIfChanged logs and broadcasts a BookSnapshot event
// only when the top of book actually moved, so it doesn't flood the log
// on every order that rests or trades deep in the book.
func (s *Service) recordBookSnapshotIfChanged(before, after clob.TopOfBook) {
	if before.BestBid.Equal(after.BestBid) && before.BestAsk.Equal(after.BestAsk) {
		return
	}
	s.log.Record(audit.BookSnapshot, after)
	s.wsHub.Broadcast(WSMessage{Type: "book_snapshot", EngineID: s.clobEngineID, Data: after})
}

type placeCLOBRequest struct {
	TraderID string          `json:"trader_id"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Qty      decimal.Decimal `json:"qty"`
	Type     string          `json:"type"` // "limit" or "market"
}

// PlaceCLOBOrder handles POST /api/v1/clob/orders
func (s *Service) PlaceCLOBOrder(w http.ResponseWriter, r *http.Request) {
	var req placeCLOBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	before := clob.GetTopOfBook(s.clobLedger.Book)
	var res *clob.OrderResult
	var err error
	if req.Type == "market" {
		res, err = clob.PlaceMarketOrder(s.clobLedger, req.TraderID, clob.Side(req.Side), req.Qty)
	} else {
		res, err = clob.PlaceLimitOrder(s.clobLedger, req.TraderID, clob.Side(req.Side), req.Price, req.Qty)
	}
	after := clob.GetTopOfBook(s.clobLedger.Book)
	s.mu.Unlock()
	if err != nil {
		writeError(w, harness.FormatError(err), http.StatusConflict)
		return
	}

	s.log.Record(audit.OrderPlaced, res)
	for _, tr := range res.Trades {
		s.log.Record(audit.Trade, tr)
	}
	s.wsHub.Broadcast(WSMessage{Type: "clob_order", EngineID: s.clobEngineID, Data: res})
	s.recordBookSnapshotIfChanged(before, after)
	s.persistSnapshot(r.Context(), s.clobEngineID, s.clobLedger.Traders, s.clobLedger.Settled)
	writeJSON(w, http.StatusCreated, res)
}

// CancelCLOBOrder handles DELETE /api/v1/clob/orders/{orderID}
func (s *Service) CancelCLOBOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	s.mu.Lock()
	before := clob.GetTopOfBook(s.clobLedger.Book)
	res, err := clob.CancelOrder(s.clobLedger, orderID)
	after := clob.GetTopOfBook(s.clobLedger.Book)
	s.mu.Unlock()
	if err != nil {
		writeError(w, harness.FormatError(err), http.StatusConflict)
		return
	}

	s.log.Record(audit.OrderCancelled, res)
	s.wsHub.Broadcast(WSMessage{Type: "clob_cancel", EngineID: s.clobEngineID, Data: res})
	s.recordBookSnapshotIfChanged(before, after)
	writeJSON(w, http.StatusOK, res)
}

// GetAuditLog handles GET /api/v1/audit
func (s *Service) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.log.GetLogs())
}

func (s *Service) persistSnapshot(ctx context.Context, engineID string, traders *ledger.Book, settled bool) {
	if s.st == nil {
		return
	}
	snap := store.Snapshot{SequenceNo: uint64(len(s.log.GetLogs())), Settled: settled, Traders: traders.All()}
	if err := s.st.SaveSnapshot(ctx, engineID, snap); err != nil {
		slog.Error("snapshot persist failed", "engine_id", engineID, "err", err)
	}
}
