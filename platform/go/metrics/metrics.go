// Package metrics exposes the Prometheus collectors used by the API server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SlugResolutionAttempts *prometheus.HistogramVec
	SlugConflictRetries    *prometheus.CounterVec

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	StorageOperationsTotal *prometheus.CounterVec

	DBConnectorState prometheus.Gauge
}

// New creates and registers all collectors on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stonecms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stonecms_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SlugResolutionAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stonecms_slug_resolution_attempts",
				Help:    "Existence checks needed to find a free slug",
				Buckets: []float64{1, 2, 3, 5, 10, 50, 100, 1000, 10000},
			},
			[]string{"entity"},
		),
		SlugConflictRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stonecms_slug_conflict_retries_total",
				Help: "Writes retried after losing a slug uniqueness race",
			},
			[]string{"entity"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stonecms_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stonecms_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stonecms_storage_operations_total",
				Help: "Total number of blob storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		DBConnectorState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stonecms_db_connector_state",
				Help: "Database connector state (0 disconnected, 1 connecting, 2 connected, 3 error)",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SlugResolutionAttempts,
		m.SlugConflictRetries,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.StorageOperationsTotal,
		m.DBConnectorState,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSlug returns a callback suitable for slug.Resolver.Observe. Safe on a nil receiver.
func (m *Metrics) ObserveSlug(entity string) func(attempts int) {
	if m == nil {
		return nil
	}
	histogram := m.SlugResolutionAttempts.WithLabelValues(entity)
	return func(attempts int) {
		histogram.Observe(float64(attempts))
	}
}

// SlugConflict counts a retried write for entity. Safe on a nil receiver.
func (m *Metrics) SlugConflict(entity string) {
	if m == nil {
		return
	}
	m.SlugConflictRetries.WithLabelValues(entity).Inc()
}

// CacheResult records a hit or miss for cache. Safe on a nil receiver.
func (m *Metrics) CacheResult(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// StorageOperation records a blob storage call. Safe on a nil receiver.
func (m *Metrics) StorageOperation(operation, backend string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
}

// ConnectorState records the numeric connector state. Safe on a nil receiver.
func (m *Metrics) ConnectorState(state int) {
	if m == nil {
		return
	}
	m.DBConnectorState.Set(float64(state))
}

// HTTPMiddleware instruments requests. Routes are labelled by chi pattern to keep cardinality bounded.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
