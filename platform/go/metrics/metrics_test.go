package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(nil)

	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/products/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, slug := range []string{"carrara", "nero-marquina"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+slug, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	require.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/products/{slug}", "404")))
}

func TestSlugObservations(t *testing.T) {
	m := New(nil)

	observe := m.ObserveSlug("product")
	observe(1)
	observe(4)
	m.SlugConflict("product")

	require.Equal(t, 1, testutil.CollectAndCount(m.SlugResolutionAttempts))
	require.Equal(t, float64(1), testutil.ToFloat64(m.SlugConflictRetries.WithLabelValues("product")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	require.Nil(t, m.ObserveSlug("post"))
	m.SlugConflict("post")
	m.CacheResult("settings", true)
	m.StorageOperation("put", "local", nil)
	m.ConnectorState(2)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.CacheResult("settings", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "stonecms_cache_hits_total"))
}
