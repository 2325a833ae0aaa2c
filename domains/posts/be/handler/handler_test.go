package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/marmoreal/stonecms/domains/posts/be/service"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

type mockService struct {
	listFn      func(ctx context.Context, opts service.ListOptions) (service.ListResult, error)
	createFn    func(ctx context.Context, input service.CreateInput) (service.Post, error)
	getFn       func(ctx context.Context, id uuid.UUID) (service.Post, error)
	getBySlugFn func(ctx context.Context, slug string) (service.Post, error)
	updateFn    func(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Post, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockService) List(ctx context.Context, _ requesttrace.AuditInfo, opts service.ListOptions) (service.ListResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, opts)
}

func (m *mockService) Create(ctx context.Context, _ requesttrace.AuditInfo, input service.CreateInput) (service.Post, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, input)
}

func (m *mockService) Get(ctx context.Context, _ requesttrace.AuditInfo, id uuid.UUID) (service.Post, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockService) GetPublishedBySlug(ctx context.Context, _ requesttrace.AuditInfo, slug string) (service.Post, error) {
	if m.getBySlugFn == nil {
		panic("getBySlugFn not configured")
	}
	return m.getBySlugFn(ctx, slug)
}

func (m *mockService) Update(ctx context.Context, _ requesttrace.AuditInfo, id uuid.UUID, input service.UpdateInput) (service.Post, error) {
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

func TestHandlerPublicListOnlyPublished(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		listFn: func(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
			require.Equal(t, service.StatusPublished, *opts.Status)
			require.Equal(t, "marble", *opts.Tag)
			return service.ListResult{Posts: []service.Post{{ID: uuid.New(), Title: "A", Slug: "a", Status: service.StatusPublished}}, Page: 1, PageSize: 20, TotalItems: 1, TotalPages: 1}, nil
		},
	}

	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/posts?tag=marble&status=draft", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body PostList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.JSONEq(t, `[]`, string(body.Items[0].Content))
}

func TestHandlerAdminListPassesStatus(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		listFn: func(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
			require.Equal(t, service.StatusDraft, *opts.Status)
			return service.ListResult{Page: 1, PageSize: 20}, nil
		},
	}

	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/posts?status=draft", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerCreatePost(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		createFn: func(ctx context.Context, input service.CreateInput) (service.Post, error) {
			require.JSONEq(t, `[{"type":"heading","level":2,"text":"Intro"}]`, string(input.Content))
			return service.Post{ID: uuid.New(), Title: input.Title, Slug: "news", Content: input.Content, Status: service.StatusDraft}, nil
		},
	}

	rec := httptest.NewRecorder()
	body := `{"title":"News","content":[{"type":"heading","level":2,"text":"Intro"}]}`
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/posts", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "/api/v1/admin/posts/")
}

func TestHandlerGetBySlugDraftIsNotFound(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		getBySlugFn: func(ctx context.Context, value string) (service.Post, error) {
			return service.Post{}, service.ErrNotFound
		},
	}

	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/posts/draft-post", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}
