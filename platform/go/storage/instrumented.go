package storage

import (
	"context"
	"io"
)

// Recorder receives one call per blob operation.
type Recorder interface {
	StorageOperation(operation, backend string, err error)
}

type instrumented struct {
	BlobStore
	recorder Recorder
}

// Instrument reports every Put and Delete on store to recorder.
func Instrument(store BlobStore, recorder Recorder) BlobStore {
	if recorder == nil {
		return store
	}
	return &instrumented{BlobStore: store, recorder: recorder}
}

func (i *instrumented) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	err := i.BlobStore.Put(ctx, key, body, size, contentType)
	i.recorder.StorageOperation("put", i.Backend(), err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	err := i.BlobStore.Delete(ctx, key)
	i.recorder.StorageOperation("delete", i.Backend(), err)
	return err
}
