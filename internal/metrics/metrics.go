// Package metrics provides Prometheus instrumentation for the prediction engine.
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
	// BetsTotal counts accepted bets, partitioned by position.
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predix_bets_total",
		Help: "Total number of bets accepted",
	}, []string{"position"})

	// BetVolume accumulates staked value, partitioned by position.
	BetVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predix_bet_volume_total",
		Help: "Cumulative staked value in asset units",
	}, []string{"position"})

	// RoundsExecuted counts settled rounds by outcome.
	RoundsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predix_rounds_executed_total",
		Help: "Total number of rounds settled",
	}, []string{"outcome"})

	// RoundsExpired counts rounds that missed their settlement window.
	RoundsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predix_rounds_expired_total",
		Help: "Rounds expired unsettled, halting the market",
	})

	// ClaimsTotal counts paid claims, partitioned by kind (reward or refund).
	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predix_claims_total",
		Help: "Total number of claims paid out",
	}, []string{"kind"})

	// AccumulatedFee tracks the current undistributed protocol fee.
	AccumulatedFee = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predix_accumulated_fee",
		Help: "Protocol fee accumulated and not yet withdrawn",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predix_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predix_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "predix_http_request_duration_seconds",
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
