// Package testsupport provides in-memory fakes shared by the service
// test suites.
package testsupport

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"notico/internal/common"
)

// MemTemplateStore is an in-memory template blob store.
type MemTemplateStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemTemplateStore creates an empty in-memory store.
func NewMemTemplateStore() *MemTemplateStore {
	return &MemTemplateStore{blobs: make(map[string][]byte)}
}

func (m *MemTemplateStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, common.NewNotFoundError("object", key)
	}
	return blob, nil
}

func (m *MemTemplateStore) Put(ctx context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = body
	return nil
}

func (m *MemTemplateStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *MemTemplateStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
