package objstore

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/picha/core"
)

// InMemStore keeps objects in memory. Meant for tests and local development.
type InMemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

var _ core.FileStore = (*InMemStore)(nil) // interface compliance check

func NewInMemStore(baseURL string) *InMemStore {
	return &InMemStore{
		objects: make(map[string][]byte),
		baseURL: baseURL,
	}
}

func (store *InMemStore) Upload(_ context.Context, key, _ string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "uploading object %s", key)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.objects[key] = data
	return nil
}

func (store *InMemStore) Delete(_ context.Context, keys ...string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, key := range keys {
		delete(store.objects, key)
	}
	return nil
}

func (store *InMemStore) PublicURL(key string) string {
	return store.baseURL + "/" + key
}

// Object returns a stored object's contents.
func (store *InMemStore) Object(key string) ([]byte, bool) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	data, ok := store.objects[key]
	return data, ok
}

// Len returns the number of stored objects.
func (store *InMemStore) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.objects)
}
