package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPathUUID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := PathUUID(req, "id")
	require.NoError(t, err)
	require.Equal(t, id, got)

	rctx.URLParams = chi.RouteParams{}
	rctx.URLParams.Add("id", "nope")
	_, err = PathUUID(req, "id")
	var paramErr *ParamError
	require.True(t, errors.As(err, &paramErr))
	require.Equal(t, map[string][]string{"id": {"must be a valid UUID"}}, paramErr.Fields())
}

func TestQueryParams(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/x?page=2&pageSize=5&featured=true&q=+black+", nil)
	page, pageSize, err := Page(req)
	require.NoError(t, err)
	require.Equal(t, 2, page)
	require.Equal(t, 5, pageSize)

	featured, err := QueryBool(req, "featured")
	require.NoError(t, err)
	require.True(t, *featured)

	require.Equal(t, "black", *QueryString(req, "q"))
	require.Nil(t, QueryString(req, "missing"))

	bad := httptest.NewRequest(http.MethodGet, "/x?page=0", nil)
	_, _, err = Page(bad)
	require.Error(t, err)

	_, err = QueryUUID(httptest.NewRequest(http.MethodGet, "/x?collectionId=abc", nil), "collectionId")
	require.Error(t, err)
}

func TestTotalPages(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, TotalPages(0, 20))
	require.Equal(t, 1, TotalPages(20, 20))
	require.Equal(t, 2, TotalPages(21, 20))
}
