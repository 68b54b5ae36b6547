package storage

import (
	"context"
	"sync"
)

// MemoryStore is a simple in-memory implementation (data lost on restart,
// for testing/temp runs only).
type MemoryStore struct {
	data   map[string][]byte
	prefix string
	mu     sync.RWMutex
}

// NewMemoryStore initializes a new in-memory document store.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string][]byte),
		prefix: prefix,
	}
}

func (m *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.data[m.prefix+key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (m *MemoryStore) Save(ctx context.Context, key string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(doc))
	copy(stored, doc)
	m.data[m.prefix+key] = stored
	return nil
}

// Close implements the DocumentStore interface.
func (m *MemoryStore) Close() error {
	return nil
}
