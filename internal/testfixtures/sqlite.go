package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/squad-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides a migrated SQLite store on a temporary file for
// integration-style persistence tests.
type SQLiteHarness struct {
	Storage *sqlite.Storage
	Path    string

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// Reopen closes the storage and opens the same file again, simulating a
// process restart.
func (h *SQLiteHarness) Reopen(tb testing.TB) *sqlite.Storage {
	tb.Helper()
	h.Close()
	h.Storage = openMigrated(tb, h.Path)
	storage := h.Storage
	h.cleanup = func() { _ = storage.Close() }
	return h.Storage
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "squad.db")
	storage := openMigrated(tb, path)

	harness := &SQLiteHarness{
		Storage: storage,
		Path:    path,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

func openMigrated(tb testing.TB, path string) *sqlite.Storage {
	tb.Helper()

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return storage
}
