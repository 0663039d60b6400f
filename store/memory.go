package store

import (
	"context"
	"sync"

	"github.com/jacoelho/xmldoc"
)

// MemoryStore keeps encoded snapshots in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Save stores s under id, replacing any earlier snapshot.
func (m *MemoryStore) Save(_ context.Context, id string, s *xmldoc.Snapshot) error {
	if err := checkID(id); err != nil {
		return err
	}
	data, err := Encode(s, false)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[id] = data
	m.mu.Unlock()
	return nil
}

// Load returns the snapshot stored under id, or an error wrapping ErrNotFound.
func (m *MemoryStore) Load(_ context.Context, id string) (*xmldoc.Snapshot, error) {
	m.mu.Lock()
	data, ok := m.data[id]
	m.mu.Unlock()
	if !ok {
		return nil, notFound(id)
	}
	return Decode(data)
}

// Delete removes the snapshot stored under id. A missing id wraps ErrNotFound.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return notFound(id)
	}
	delete(m.data, id)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
