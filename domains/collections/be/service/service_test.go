package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmoreal/stonecms/database"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/slug"
)

type mockRepository struct {
	listFn       func(ctx context.Context, includeDeleted bool) ([]persistence.Collection, error)
	createFn     func(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error)
	getFn        func(ctx context.Context, id uuid.UUID) (persistence.Collection, error)
	getBySlugFn  func(ctx context.Context, slug string) (persistence.Collection, error)
	updateFn     func(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error)
	softDeleteFn func(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
	slugExistsFn func(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
}

func (m *mockRepository) List(ctx context.Context, includeDeleted bool) ([]persistence.Collection, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, includeDeleted)
}

func (m *mockRepository) Create(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, id, params)
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Collection, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockRepository) GetBySlug(ctx context.Context, slug string) (persistence.Collection, error) {
	if m.getBySlugFn == nil {
		panic("getBySlugFn not configured")
	}
	return m.getBySlugFn(ctx, slug)
}

func (m *mockRepository) Update(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, id, params)
}

func (m *mockRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	if m.softDeleteFn == nil {
		panic("softDeleteFn not configured")
	}
	return m.softDeleteFn(ctx, id, deletedAt)
}

func (m *mockRepository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	if m.slugExistsFn == nil {
		panic("slugExistsFn not configured")
	}
	return m.slugExistsFn(ctx, slug, excludeID)
}

var audit = requesttrace.System("test")

func echoCreate(now time.Time) func(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
	return func(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
		return persistence.Collection{
			ID: id, Name: params.Name, Slug: params.Slug, Description: params.Description,
			SortOrder: params.SortOrder, IsFeatured: params.IsFeatured, CreatedAt: now, UpdatedAt: now,
		}, nil
	}
}

func TestServiceCreateResolvesSlug(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	taken := map[string]bool{"marble-granite": true, "marble-granite-1": true}
	repo := &mockRepository{
		slugExistsFn: func(ctx context.Context, value string, excludeID uuid.UUID) (bool, error) {
			require.Equal(t, uuid.Nil, excludeID)
			return taken[value], nil
		},
		createFn: echoCreate(now),
	}

	svc := New(repo, Config{})
	result, err := svc.Create(context.Background(), audit, CreateInput{Name: "  Marble & Granite!! "})
	require.NoError(t, err)
	require.Equal(t, "Marble & Granite!!", result.Name)
	require.Equal(t, "marble-granite-2", result.Slug)
}

func TestServiceCreateRejectsDegenerateName(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{}, Config{})
	for _, name := range []string{"", "   ", "!!!", "— ·"} {
		_, err := svc.Create(context.Background(), audit, CreateInput{Name: name})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr, "name %q", name)
		require.Contains(t, validationErr.Fields, "name")
	}
}

func TestServiceCreateRetriesLostRace(t *testing.T) {
	t.Parallel()

	var (
		calls     int
		slugsSeen []string
	)
	inserted := map[string]bool{}
	repo := &mockRepository{
		slugExistsFn: func(ctx context.Context, value string, excludeID uuid.UUID) (bool, error) {
			return inserted[value], nil
		},
		createFn: func(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
			calls++
			slugsSeen = append(slugsSeen, params.Slug)
			if calls == 1 {
				// A concurrent writer claimed the slug between the check and the insert.
				inserted[params.Slug] = true
				return persistence.Collection{}, persistence.ErrCollectionConflict
			}
			return persistence.Collection{ID: id, Name: params.Name, Slug: params.Slug}, nil
		},
	}

	result, err := New(repo, Config{}).Create(context.Background(), audit, CreateInput{Name: "Beta"})
	require.NoError(t, err)
	require.Equal(t, []string{"beta", "beta-1"}, slugsSeen)
	require.Equal(t, "beta-1", result.Slug)
}

func TestServiceCreateConflictAfterRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	repo := &mockRepository{
		slugExistsFn: func(ctx context.Context, value string, excludeID uuid.UUID) (bool, error) { return false, nil },
		createFn: func(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
			calls++
			return persistence.Collection{}, persistence.ErrCollectionConflict
		},
	}

	_, err := New(repo, Config{}).Create(context.Background(), audit, CreateInput{Name: "Beta"})
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, slug.DefaultSaveAttempts, calls)
}

func TestServiceCreatePropagatesLookupFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	repo := &mockRepository{
		slugExistsFn: func(ctx context.Context, value string, excludeID uuid.UUID) (bool, error) { return false, boom },
	}

	_, err := New(repo, Config{}).Create(context.Background(), audit, CreateInput{Name: "Onyx"})
	require.ErrorIs(t, err, boom)
}

func TestServiceUpdateRederivesExcludingSelf(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	current := persistence.Collection{ID: id, Name: "Alpha", Slug: "alpha", SortOrder: 3}

	repo := &mockRepository{
		getFn: func(ctx context.Context, got uuid.UUID) (persistence.Collection, error) {
			require.Equal(t, id, got)
			return current, nil
		},
		slugExistsFn: func(ctx context.Context, value string, excludeID uuid.UUID) (bool, error) {
			require.Equal(t, id, excludeID)
			// Only the record itself holds "alpha"; the exclusion hides it.
			return false, nil
		},
		updateFn: func(ctx context.Context, got uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
			return persistence.Collection{ID: got, Name: params.Name, Slug: params.Slug, SortOrder: params.SortOrder, IsFeatured: params.IsFeatured}, nil
		},
	}

	featured := true
	result, err := New(repo, Config{}).Update(context.Background(), audit, id, UpdateInput{IsFeatured: &featured})
	require.NoError(t, err)
	require.Equal(t, "alpha", result.Slug)
	require.Equal(t, 3, result.SortOrder)
	require.True(t, result.IsFeatured)
}

func TestServiceUpdateRequiresAField(t *testing.T) {
	t.Parallel()

	_, err := New(&mockRepository{}, Config{}).Update(context.Background(), audit, uuid.New(), UpdateInput{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestServiceUpdateNotFound(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		getFn: func(ctx context.Context, id uuid.UUID) (persistence.Collection, error) {
			return persistence.Collection{}, persistence.ErrCollectionNotFound
		},
	}
	name := "Gamma"
	_, err := New(repo, Config{}).Update(context.Background(), audit, uuid.New(), UpdateInput{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceListSeedsDefaults(t *testing.T) {
	t.Parallel()

	var stored []persistence.Collection
	repo := &mockRepository{
		listFn: func(ctx context.Context, includeDeleted bool) ([]persistence.Collection, error) {
			return append([]persistence.Collection(nil), stored...), nil
		},
		createFn: func(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
			record := persistence.Collection{ID: id, Name: params.Name, Slug: params.Slug, SortOrder: params.SortOrder}
			stored = append(stored, record)
			return record, nil
		},
	}

	svc := New(repo, Config{Defaults: []database.SeedCollection{
		{Name: "Marble", SortOrder: 10},
		{Name: "Granite", SortOrder: 20},
	}})

	first, err := svc.List(context.Background(), audit, false)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "marble", first[0].Slug)
	require.Equal(t, "granite", first[1].Slug)

	second, err := svc.List(context.Background(), audit, false)
	require.NoError(t, err)
	require.Len(t, second, 2)
}

func TestServiceDeleteMapsNotFound(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockRepository{
		softDeleteFn: func(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
			require.Equal(t, now, deletedAt)
			return persistence.ErrCollectionNotFound
		},
	}
	svc := New(repo, Config{}).(*service)
	svc.now = func() time.Time { return now }

	require.ErrorIs(t, svc.Delete(context.Background(), audit, uuid.New()), ErrNotFound)
}

// memoryRepository keeps collections in memory. With uniqueIndex set it rejects a second live
// row holding the same slug, the way the partial unique index does in Postgres.
type memoryRepository struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]persistence.Collection
	uniqueIndex bool

	// rendezvous holds the first `waiters` slug checks until all of them have arrived.
	waiters    int
	arrived    int
	rendezvous chan struct{}
}

func newMemoryRepository(uniqueIndex bool, waiters int) *memoryRepository {
	return &memoryRepository{
		rows:        map[uuid.UUID]persistence.Collection{},
		uniqueIndex: uniqueIndex,
		waiters:     waiters,
		rendezvous:  make(chan struct{}),
	}
}

func (m *memoryRepository) List(ctx context.Context, includeDeleted bool) ([]persistence.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persistence.Collection, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row)
	}
	return out, nil
}

func (m *memoryRepository) Create(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uniqueIndex {
		for _, row := range m.rows {
			if row.Slug == params.Slug && row.DeletedAt == nil {
				return persistence.Collection{}, persistence.ErrCollectionConflict
			}
		}
	}
	row := persistence.Collection{ID: id, Name: params.Name, Slug: params.Slug}
	m.rows[id] = row
	return row, nil
}

func (m *memoryRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return persistence.Collection{}, persistence.ErrCollectionNotFound
	}
	return row, nil
}

func (m *memoryRepository) GetBySlug(ctx context.Context, value string) (persistence.Collection, error) {
	return persistence.Collection{}, persistence.ErrCollectionNotFound
}

func (m *memoryRepository) Update(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
	return persistence.Collection{}, errors.New("not implemented")
}

func (m *memoryRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	return errors.New("not implemented")
}

func (m *memoryRepository) SlugExists(ctx context.Context, value string, excludeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	var wait chan struct{}
	if m.arrived < m.waiters {
		m.arrived++
		if m.arrived == m.waiters {
			close(m.rendezvous)
		}
		wait = m.rendezvous
	}
	m.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.rows {
		if id != excludeID && row.Slug == value && row.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func createConcurrently(t *testing.T, svc Service, name string, n int) ([]Collection, []error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make([]Collection, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Create(ctx, audit, CreateInput{Name: name})
		}(i)
	}
	wg.Wait()
	return results, errs
}

func TestConcurrentCreateWithoutUniqueIndexDuplicatesSlug(t *testing.T) {
	t.Parallel()

	svc := New(newMemoryRepository(false, 2), Config{})
	results, errs := createConcurrently(t, svc, "Beta", 2)

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, "beta", results[0].Slug)
	require.Equal(t, "beta", results[1].Slug)
}

func TestConcurrentCreateWithUniqueIndexRetries(t *testing.T) {
	t.Parallel()

	svc := New(newMemoryRepository(true, 2), Config{})
	results, errs := createConcurrently(t, svc, "Beta", 2)

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.ElementsMatch(t, []string{"beta", "beta-1"}, []string{results[0].Slug, results[1].Slug})
}
