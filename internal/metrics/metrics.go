// Package metrics provides Prometheus instrumentation for the pair engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FillsTotal counts accepted fills, partitioned by outcome.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairengine_fills_total",
		Help: "Total number of fills accepted",
	}, []string{"outcome"})

	// RejectionsTotal counts fills refused by the decision policy or the
	// lock guard.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairengine_rejections_total",
		Help: "Total number of fills rejected",
	}, []string{"stage"}) // decision | record

	// ActivePositions tracks the number of open pair positions.
	ActivePositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairengine_active_positions",
		Help: "Number of currently active pair positions",
	})

	// LockedPositions tracks active positions with profit locked.
	LockedPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairengine_locked_positions",
		Help: "Number of active positions with profit locked",
	})

	// CapitalDeployed tracks the total cost across active positions.
	CapitalDeployed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairengine_capital_deployed",
		Help: "Total capital deployed across active positions",
	})

	// LockedProfit tracks the guaranteed profit sum across locked positions.
	LockedProfit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairengine_locked_profit",
		Help: "Guaranteed profit across locked active positions",
	})

	// SettlementsTotal counts settled markets, partitioned by winner.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairengine_settlements_total",
		Help: "Total number of markets settled",
	}, []string{"winner"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairengine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pairengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
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

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
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
