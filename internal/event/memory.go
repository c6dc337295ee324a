package event

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore is a map-backed Store for tests and local development.
// Like the Postgres store, it serializes individual loads and saves but
// not the read-modify-write cycles around them.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// FindByID returns a copy of the stored aggregate.
func (m *MemoryStore) FindByID(ctx context.Context, id string) (*Event, error) {
	m.mu.RLock()
	raw, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// FindAll returns all aggregates ordered by id.
func (m *MemoryStore) FindAll(ctx context.Context) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*Event, 0, len(m.docs))
	for _, raw := range m.docs {
		var e Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		res = append(res, &e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// Save replaces the whole stored document.
func (m *MemoryStore) Save(ctx context.Context, e *Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[e.ID] = raw
	m.mu.Unlock()
	return nil
}

// DeleteByID removes a document.
func (m *MemoryStore) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}
