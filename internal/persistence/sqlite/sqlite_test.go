package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/example/squad-scheduler/internal/persistence"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	dir := t.TempDir()
	storage, err := Open(filepath.Join(dir, "squad.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func TestStorage_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	entries := map[string]string{
		"user-1": "Europe/Berlin",
		"user-2": "America/New_York",
	}
	if err := storage.Save(ctx, persistence.NamespaceTimezones, entries); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := storage.Save(ctx, persistence.NamespacePingRoles, map[string]string{"guild-1": "role-9"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, persistence.NamespaceTimezones)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, entries) {
		t.Fatalf("unexpected entries: %v", loaded)
	}

	if err := storage.Save(ctx, persistence.NamespaceTimezones, map[string]string{"user-2": "Asia/Tokyo"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err = storage.Load(ctx, persistence.NamespaceTimezones)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, map[string]string{"user-2": "Asia/Tokyo"}) {
		t.Fatalf("expected whole namespace to be replaced, got %v", loaded)
	}

	roles, err := storage.Load(ctx, persistence.NamespacePingRoles)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if roles["guild-1"] != "role-9" {
		t.Fatalf("expected other namespace untouched, got %v", roles)
	}
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "squad.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := first.Save(ctx, persistence.NamespaceTimezones, map[string]string{"alice": "UTC"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if err := second.Migrate(ctx); err != nil {
		t.Fatalf("second migrate must be idempotent: %v", err)
	}

	loaded, err := second.Load(ctx, persistence.NamespaceTimezones)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded["alice"] != "UTC" {
		t.Fatalf("expected entry to survive reopen, got %v", loaded)
	}
}

func TestStorage_Errors(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if err := storage.Save(ctx, "", nil); !errors.Is(err, persistence.ErrInvalidNamespace) {
		t.Fatalf("expected ErrInvalidNamespace, got %v", err)
	}

	if err := storage.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := storage.Load(ctx, persistence.NamespaceTimezones); !errors.Is(err, persistence.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INTEGER);\n-- +migrate Down\nDROP TABLE a;\n"
	got := extractUpMigration(content)
	if got != "\nCREATE TABLE a (id INTEGER);\n" {
		t.Fatalf("unexpected up section: %q", got)
	}
	if extractUpMigration("SELECT 1;") != "SELECT 1;" {
		t.Fatalf("expected content without markers to be returned unchanged")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig("squad.db")
	cfg.JournalMode = "BOGUS"
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected invalid journal mode to be rejected")
	}
	if err := (Config{}).validate(); err == nil {
		t.Fatalf("expected empty DSN to be rejected")
	}
	if err := DefaultConfig("squad.db").validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestIsRetryableError(t *testing.T) {
	if !isRetryableError(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatalf("expected lock error to be retryable")
	}
	if isRetryableError(errors.New("UNIQUE constraint failed")) {
		t.Fatalf("expected constraint error not to be retryable")
	}
}
