package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps documents as JSON in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

var _ ReadWriter = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) CreateDocument(ctx context.Context, collection string, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	id := documentID(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string][]byte)
		m.docs[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return "", fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
	}
	coll[id] = body
	return id, nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, collection, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	body, ok := m.docs[collection][id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return json.Unmarshal(body, out)
}

// Len returns the number of documents in collection.
func (m *MemoryStore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[collection])
}
