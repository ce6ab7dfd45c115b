// Package registry holds the long-lived per-participant and per-group
// settings: registered timezones, ping roles, and the gate built on them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/squad-scheduler/internal/persistence"
)

// ErrStoreIO is returned when a change could not be written durably. The
// in-memory change stays applied and is carried by the next successful save.
var ErrStoreIO = errors.New("registry: store write failed")

// table is a string map mirrored to one namespace of a KeyValueStore.
type table struct {
	namespace string
	store     persistence.KeyValueStore

	mu      sync.RWMutex
	entries map[string]string
	version uint64

	keys keyLocks

	saveMu sync.Mutex
	saved  uint64
}

func loadTable(ctx context.Context, store persistence.KeyValueStore, namespace string) (*table, error) {
	t := &table{namespace: namespace, store: store, entries: make(map[string]string)}
	if store == nil {
		return t, nil
	}
	entries, err := store.Load(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("registry: load %s: %w", namespace, err)
	}
	for k, v := range entries {
		t.entries[k] = v
	}
	return t, nil
}

func (t *table) get(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	value, ok := t.entries[key]
	return value, ok
}

func (t *table) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *table) set(ctx context.Context, key, value string) error {
	unlock := t.keys.lock(key)
	defer unlock()

	t.mu.Lock()
	if current, ok := t.entries[key]; ok && current == value {
		version := t.version
		t.mu.Unlock()
		return t.persist(ctx, version)
	}
	t.entries[key] = value
	t.version++
	version := t.version
	t.mu.Unlock()

	return t.persist(ctx, version)
}

func (t *table) delete(ctx context.Context, key string) (bool, error) {
	unlock := t.keys.lock(key)
	defer unlock()

	t.mu.Lock()
	if _, ok := t.entries[key]; !ok {
		t.mu.Unlock()
		return false, nil
	}
	delete(t.entries, key)
	t.version++
	version := t.version
	t.mu.Unlock()

	return true, t.persist(ctx, version)
}

// persist makes sure a snapshot at least as new as version is durable. Saves
// are serialized; a writer whose change was already covered by a later
// snapshot returns without writing.
func (t *table) persist(ctx context.Context, version uint64) error {
	if t.store == nil {
		return nil
	}

	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	if t.saved >= version {
		return nil
	}

	t.mu.RLock()
	snapshot := make(map[string]string, len(t.entries))
	for k, v := range t.entries {
		snapshot[k] = v
	}
	current := t.version
	t.mu.RUnlock()

	if err := t.store.Save(ctx, t.namespace, snapshot); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreIO, t.namespace, err)
	}
	t.saved = current
	return nil
}

// keyLocks hands out one mutex per key, dropping it once no writer holds it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu      sync.Mutex
	holders int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.holders++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.holders--
		if l.holders == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
