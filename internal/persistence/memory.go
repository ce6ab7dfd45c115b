package persistence

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps namespaces in process memory. It satisfies KeyValueStore
// for tests and for deployments that do not need durability.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]string
	saves      int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string]map[string]string)}
}

// Load returns a copy of the namespace content.
func (s *MemoryStore) Load(ctx context.Context, namespace string) (map[string]string, error) {
	if strings.TrimSpace(namespace) == "" {
		return nil, ErrInvalidNamespace
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.namespaces[namespace]), nil
}

// Save replaces the namespace content with a copy of entries.
func (s *MemoryStore) Save(ctx context.Context, namespace string, entries map[string]string) error {
	if strings.TrimSpace(namespace) == "" {
		return ErrInvalidNamespace
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[namespace] = cloneEntries(entries)
	s.saves++
	return nil
}

// Saves reports how many successful saves were performed.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func cloneEntries(entries map[string]string) map[string]string {
	out := make(map[string]string, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out
}
