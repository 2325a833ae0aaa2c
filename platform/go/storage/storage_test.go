package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("7b0c7b1e-4a8e-4b0b-9f7e-3c2d1a0b9c8d")
	now := time.Date(2026, 2, 14, 23, 30, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		fileName string
		fallback string
		want     string
		wantErr  bool
	}{
		{name: "simple", fileName: "Carrara Slab.JPG", want: "media/2026/02/" + id.String() + "-carrara-slab.jpg"},
		{name: "windows path", fileName: `C:\Users\me\Nero Marquina (1).png`, want: "media/2026/02/" + id.String() + "-nero-marquina-1.png"},
		{name: "no usable name", fileName: "!!!.webp", want: "media/2026/02/" + id.String() + "-file.webp"},
		{name: "fallback extension", fileName: "brochure", fallback: "pdf", want: "media/2026/02/" + id.String() + "-brochure.pdf"},
		{name: "no extension at all", fileName: "brochure", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ObjectKey(now, id, tc.fileName, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := ObjectKey(now, uuid.Nil, "a.png", "")
	require.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	require.Equal(t, "https://cdn.marmoreal.stone/media/a.png", PublicURL("https://cdn.marmoreal.stone/", "/media/a.png"))
}

type recorded struct {
	operation string
	backend   string
	err       error
}

type recorderFunc func(operation, backend string, err error)

func (f recorderFunc) StorageOperation(operation, backend string, err error) { f(operation, backend, err) }

func TestLocalStoreLifecycle(t *testing.T) {
	dir := t.TempDir()
	var calls []recorded
	store := Instrument(NewLocalStore(dir), recorderFunc(func(operation, backend string, err error) {
		calls = append(calls, recorded{operation, backend, err})
	}))
	ctx := context.Background()

	require.NoError(t, store.Check(ctx))

	key := "media/2026/02/abc-slab.png"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("png-bytes"), 9, "image/png"))

	data, err := os.ReadFile(filepath.Join(dir, "media", "2026", "02", "abc-slab.png"))
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, key))
	err = store.Delete(ctx, key)
	require.True(t, errors.Is(err, ErrObjectNotFound))

	require.Len(t, calls, 3)
	require.Equal(t, "put", calls[0].operation)
	require.Equal(t, BackendLocal, calls[0].backend)
	require.Error(t, calls[2].err)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	err := store.Put(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain")
	require.Error(t, err)

	err = store.Put(context.Background(), "/abs.txt", strings.NewReader("x"), 1, "text/plain")
	require.Error(t, err)
}
