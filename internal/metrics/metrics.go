// Package metrics exposes the stats-api process's Prometheus metrics on
// a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the API-side collectors
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	WSClients  prometheus.Gauge
	WSMessages prometheus.Counter

	StreamMessages *prometheus.CounterVec
	FanoutLag      prometheus.Histogram
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statsapi_http_requests_total",
				Help: "HTTP requests served, by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statsapi_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "statsapi_ws_clients",
				Help: "Currently connected WebSocket clients",
			},
		),
		WSMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "statsapi_ws_messages_sent_total",
				Help: "Messages broadcast to WebSocket clients",
			},
		),
		StreamMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statsapi_stream_messages_total",
				Help: "Messages consumed from Redis streams, by stream",
			},
			[]string{"stream"},
		),
		FanoutLag: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "statsapi_fanout_lag_seconds",
				Help:    "Delay between a snapshot being published and fanned out",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequests,
		m.RequestDuration,
		m.WSClients,
		m.WSMessages,
		m.StreamMessages,
		m.FanoutLag,
	)
	return m
}

// Handler serves the registry for Prometheus scrapes
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// The route pattern keeps label cardinality bounded; raw paths
		// would mint a series per event id.
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
