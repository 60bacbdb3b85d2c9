package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/trellis/internal"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Registry receives the collectors. Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace is the metrics namespace. Default: "trellis".
	Namespace string

	// Buckets are the histogram buckets for request duration.
	Buckets []float64
}

// MetricsOption configures MetricsConfig.
type MetricsOption func(*MetricsConfig)

// WithMetricsRegistry sets the Prometheus registry.
func WithMetricsRegistry(reg prometheus.Registerer) MetricsOption {
	return func(cfg *MetricsConfig) {
		cfg.Registry = reg
	}
}

// WithMetricsNamespace sets the metrics namespace.
func WithMetricsNamespace(ns string) MetricsOption {
	return func(cfg *MetricsConfig) {
		cfg.Namespace = ns
	}
}

// WithMetricsBuckets sets the duration histogram buckets.
func WithMetricsBuckets(buckets []float64) MetricsOption {
	return func(cfg *MetricsConfig) {
		cfg.Buckets = buckets
	}
}

// Metrics returns middleware that records, per method and status:
//
//   - <ns>_http_requests_total
//   - <ns>_http_request_duration_seconds
//   - <ns>_http_requests_in_flight (no labels)
//
// Paths are not used as labels; runtime routes are unbounded.
func Metrics(opts ...MetricsOption) internal.Middleware {
	cfg := &MetricsConfig{
		Registry:  prometheus.DefaultRegisterer,
		Namespace: "trellis",
		Buckets:   prometheus.DefBuckets,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	factory := promauto.With(cfg.Registry)
	total := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "status"})
	duration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   cfg.Buckets,
	}, []string{"method", "status"})
	inFlight := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests being served.",
	})

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			start := time.Now()
			inFlight.Inc()
			defer inFlight.Dec()

			err := next(c)

			method := c.Request().Method
			status := strconv.Itoa(statusOf(c, err))
			total.WithLabelValues(method, status).Inc()
			duration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// MetricsHandler exposes the collectors of g in the Prometheus text format.
// A nil gatherer means prometheus.DefaultGatherer.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// statusOf returns the status the response has or will have once err is
// handled by the app error handler.
func statusOf(c internal.Context, err error) int {
	if err == nil || c.Written() {
		return c.ResponseWriter().Status()
	}
	if he := internal.AsHTTPError(err); he != nil {
		return he.StatusCode()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
