package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerEmitsCloudFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(Config{Component: "cms-api", Level: "debug", Output: &buf})
	require.NoError(t, err)

	logger.Warn("slab missing", zap.String("slug", "nero-marquina"))
	require.NoError(t, logger.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "WARNING", line["severity"])
	require.Equal(t, "cms-api", line["component"])
	require.Equal(t, "nero-marquina", line["slug"])
	require.Equal(t, "slab missing", line["message"])
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(Config{Level: "loud"})
	require.Error(t, err)

	_, err = NewLogger(Config{Format: "xml"})
	require.Error(t, err)
}

func TestRequestLoggerStoresLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base, err := NewLogger(Config{Output: &buf})
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(chimw.RequestID, RequestLogger(base))
	router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		_, ok := FromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "ERROR", line["severity"])
	require.EqualValues(t, http.StatusInternalServerError, line["status"])
	require.NotEmpty(t, line["request_id"])
}
