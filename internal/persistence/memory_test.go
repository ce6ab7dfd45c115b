package persistence

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	empty, err := store.Load(ctx, NamespaceTimezones)
	if err != nil {
		t.Fatalf("load unknown namespace: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty namespace, got %v", empty)
	}

	entries := map[string]string{"alice": "Europe/Berlin"}
	if err := store.Save(ctx, NamespaceTimezones, entries); err != nil {
		t.Fatalf("save: %v", err)
	}
	entries["alice"] = "mutated"

	loaded, err := store.Load(ctx, NamespaceTimezones)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded["alice"] != "Europe/Berlin" {
		t.Fatalf("expected stored copy to be isolated, got %v", loaded)
	}

	if err := store.Save(ctx, NamespaceTimezones, map[string]string{}); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	loaded, _ = store.Load(ctx, NamespaceTimezones)
	if len(loaded) != 0 {
		t.Fatalf("expected whole-map overwrite, got %v", loaded)
	}
	if store.Saves() != 2 {
		t.Fatalf("expected 2 saves, got %d", store.Saves())
	}

	if _, err := store.Load(ctx, " "); !errors.Is(err, ErrInvalidNamespace) {
		t.Fatalf("expected ErrInvalidNamespace, got %v", err)
	}
}
