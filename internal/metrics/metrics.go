// Package metrics provides Prometheus instrumentation for the LMSR and
// CLOB engines' reference harness.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts total trades executed, partitioned by engine and side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predengine_trades_total",
		Help: "Total number of trades executed",
	}, []string{"engine", "side"})

	// TradeLatency is a histogram of engine-call latency.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "predengine_trade_latency_seconds",
		Help:    "Trade/order execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine", "side"})

	// ActiveMarkets tracks the number of open (unsettled) markets.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predengine_active_markets",
		Help: "Number of currently open markets",
	})

	// WebSocketClients tracks connected WebSocket clients on the reference
	// serve front end.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predengine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "predengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// OrderRejections counts CLOB orders rejected by policy (insufficient
	// cash/shares, invalid price), partitioned by rejection reason.
	OrderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predengine_order_rejections_total",
		Help: "Orders rejected by engine policy checks",
	}, []string{"reason"})

	// MarketVolume tracks cumulative trade volume (quantity) per market and
	// side.
	MarketVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predengine_market_volume_total",
		Help: "Cumulative trade volume in shares",
	}, []string{"market_id", "side"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
