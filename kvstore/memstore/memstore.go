package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/kvstore"
)

var _ kvstore.Store = (*MemStore)(nil)

type MemStore struct {
	values map[string][]byte
	lock   sync.RWMutex
}

func New() *MemStore {
	return &MemStore{
		values: make(map[string][]byte),
	}
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemStore) Set(_ context.Context, key string, value []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemStore) Remove(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.values, key)
	return nil
}

// Keys lists the stored keys. Used by tests to assert on legacy key cleanup.
func (m *MemStore) Keys() []string {
	m.lock.RLock()
	defer m.lock.RUnlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}
