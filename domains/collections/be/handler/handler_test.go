package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/marmoreal/stonecms/domains/collections/be/service"
	"github.com/marmoreal/stonecms/platform/go/problem"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

type mockService struct {
	listFn      func(ctx context.Context, includeDeleted bool) ([]service.Collection, error)
	createFn    func(ctx context.Context, input service.CreateInput) (service.Collection, error)
	getFn       func(ctx context.Context, id uuid.UUID) (service.Collection, error)
	getBySlugFn func(ctx context.Context, slug string) (service.Collection, error)
	updateFn    func(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Collection, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockService) List(ctx context.Context, _ requesttrace.AuditInfo, includeDeleted bool) ([]service.Collection, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, includeDeleted)
}

func (m *mockService) Create(ctx context.Context, _ requesttrace.AuditInfo, input service.CreateInput) (service.Collection, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, input)
}

func (m *mockService) Get(ctx context.Context, _ requesttrace.AuditInfo, id uuid.UUID) (service.Collection, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockService) GetBySlug(ctx context.Context, _ requesttrace.AuditInfo, slug string) (service.Collection, error) {
	if m.getBySlugFn == nil {
		panic("getBySlugFn not configured")
	}
	return m.getBySlugFn(ctx, slug)
}

func (m *mockService) Update(ctx context.Context, _ requesttrace.AuditInfo, id uuid.UUID, input service.UpdateInput) (service.Collection, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, id, input)
}

func (m *mockService) Delete(ctx context.Context, _ requesttrace.AuditInfo, id uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, id)
}

func newRouter(t *testing.T, svc service.Service) http.Handler {
	t.Helper()
	h := New(svc, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		h.RegisterPublic(r)
		r.Route("/admin", h.RegisterAdmin)
	})
	return r
}

func TestHandlerPublicListHidesDeleted(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		listFn: func(ctx context.Context, includeDeleted bool) ([]service.Collection, error) {
			require.False(t, includeDeleted)
			return []service.Collection{{ID: uuid.New(), Name: "Marble", Slug: "marble"}}, nil
		},
	}

	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/collections?includeDeleted=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body CollectionList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "marble", body.Items[0].Slug)
}

func TestHandlerCreateCollection(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockService{
		createFn: func(ctx context.Context, input service.CreateInput) (service.Collection, error) {
			require.Equal(t, "Onyx", input.Name)
			require.Equal(t, 40, input.SortOrder)
			now := time.Now().UTC()
			return service.Collection{ID: id, Name: input.Name, Slug: "onyx", SortOrder: 40, CreatedAt: now, UpdatedAt: now}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/collections", strings.NewReader(`{"name":"Onyx","sortOrder":40}`))
	newRouter(t, svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/api/v1/admin/collections/"+id.String(), rec.Header().Get("Location"))
	var body Collection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "onyx", body.Slug)
}

func TestHandlerCreateRejectsClientSlug(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/collections", strings.NewReader(`{"name":"Onyx","slug":"custom"}`))
	newRouter(t, &mockService{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, problem.ContentType, rec.Header().Get("Content-Type"))
}

func TestHandlerErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "validation", err: &service.ValidationError{Fields: service.FieldErrors{"name": {"name is required"}}}, status: http.StatusBadRequest},
		{name: "not found", err: service.ErrNotFound, status: http.StatusNotFound},
		{name: "conflict", err: service.ErrConflict, status: http.StatusConflict},
		{name: "internal", err: context.DeadlineExceeded, status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{
				updateFn: func(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Collection, error) {
					return service.Collection{}, tc.err
				},
			}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/collections/"+uuid.NewString(), strings.NewReader(`{"name":"X"}`))
			newRouter(t, svc).ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			var details problem.Details
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
			require.Equal(t, tc.status, details.Status)
		})
	}
}

func TestHandlerRejectsMalformedID(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newRouter(t, &mockService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/collections/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerDelete(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockService{
		deleteFn: func(ctx context.Context, got uuid.UUID) error {
			require.Equal(t, id, got)
			return nil
		},
	}
	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/collections/"+id.String(), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
