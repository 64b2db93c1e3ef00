package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atmx/predengine/internal/metrics"
)

// Router builds the chi router for the reference HTTP/WebSocket front
// end, grounded on the teacher's cmd/server/main.go wiring.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "predengine", "instance_id": s.InstanceID()})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.wsHub != nil {
			r.Get("/ws", s.wsHub.HandleWS)
		}

		r.Get("/lmsr/prices", s.GetLMSRPrices)
		r.Post("/lmsr/quote", s.QuoteLMSR)
		r.Post("/lmsr/buy", s.BuyLMSR)
		r.Post("/lmsr/settle", s.SettleLMSR)

		r.Get("/clob/book", s.GetCLOBBook)
		r.Post("/clob/orders", s.PlaceCLOBOrder)
		r.Delete("/clob/orders/{orderID}", s.CancelCLOBOrder)

		r.Get("/audit", s.GetAuditLog)
	})

	return r
}
