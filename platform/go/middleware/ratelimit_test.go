package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterRejectsAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Rate: 0.5, Burst: 2})

	r := chi.NewRouter()
	r.With(limiter.Middleware).Post("/enquiries", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/enquiries", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusAccepted, send("198.51.100.7:4000").Code)
	require.Equal(t, http.StatusAccepted, send("198.51.100.7:4001").Code)

	rec := send("198.51.100.7:4002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")

	// Buckets are per client.
	require.Equal(t, http.StatusAccepted, send("203.0.113.9:5000").Code)
}

func TestRateLimiterCustomKey(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		Rate:  1,
		Burst: 1,
		Key:   func(r *http.Request) string { return r.Header.Get("X-Client") },
	})

	require.True(t, limiter.Allow("a"))
	require.False(t, limiter.Allow("a"))
	require.True(t, limiter.Allow("b"))
}
