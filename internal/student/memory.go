package student

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore is a map-backed Store for tests and local development. The
// mutex guards the map only; it deliberately does not serialize the
// load-modify-save cycles of callers, matching the document-store model.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// FindByID returns a copy of the stored aggregate.
func (m *MemoryStore) FindByID(ctx context.Context, id string) (*Student, error) {
	m.mu.RLock()
	raw, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(raw)
}

// FindByNumber scans for the login key.
func (m *MemoryStore) FindByNumber(ctx context.Context, number string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, raw := range m.docs {
		s, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if s.StudentNumber == number {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

// FindAll returns all aggregates ordered by student number.
func (m *MemoryStore) FindAll(ctx context.Context) ([]*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*Student, 0, len(m.docs))
	for _, raw := range m.docs {
		s, err := decode(raw)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StudentNumber < res[j].StudentNumber })
	return res, nil
}

// Save replaces the whole stored document.
func (m *MemoryStore) Save(ctx context.Context, s *Student) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[s.ID] = raw
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

func decode(raw []byte) (*Student, error) {
	var s Student
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
