// Package sqlite implements persistence.KeyValueStore on top of SQLite.
//
// Each namespace is stored as rows of registry_entries. Save replaces the
// namespace inside a single transaction, so readers and crashes observe either
// the previous map or the new one, never a mix.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/squad-scheduler/internal/persistence"
)

// Storage is a SQLite-backed key-value store.
type Storage struct {
	mu     sync.RWMutex
	db     *sql.DB
	retry  RetryConfig
	now    func() time.Time
	closed bool
}

var _ persistence.KeyValueStore = (*Storage)(nil)

// Open connects to the database identified by dsn using DefaultConfig.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(DefaultConfig(dsn))
}

// OpenWithConfig connects to the database with explicit settings.
func OpenWithConfig(cfg Config) (*Storage, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{db: db, retry: cfg.Retry, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	return applyMigrations(ctx, db, migrationFiles, "migrations")
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Load returns every entry stored under namespace.
func (s *Storage) Load(ctx context.Context, namespace string) (map[string]string, error) {
	if strings.TrimSpace(namespace) == "" {
		return nil, persistence.ErrInvalidNamespace
	}
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT entry_key, entry_value FROM registry_entries WHERE namespace = ?`,
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", namespace, err)
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", namespace, err)
		}
		entries[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", namespace, err)
	}
	return entries, nil
}

// Save replaces the content of namespace with entries in one transaction.
func (s *Storage) Save(ctx context.Context, namespace string, entries map[string]string) error {
	if strings.TrimSpace(namespace) == "" {
		return persistence.ErrInvalidNamespace
	}
	db, err := s.handle()
	if err != nil {
		return err
	}

	updatedAt := s.now().UTC().UnixMilli()
	err = withRetry(ctx, s.retry, func() error {
		return withTransaction(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM registry_entries WHERE namespace = ?`, namespace); err != nil {
				return err
			}
			if len(entries) == 0 {
				return nil
			}
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO registry_entries (namespace, entry_key, entry_value, updated_at)
				VALUES (?, ?, ?, ?)
			`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for key, value := range entries {
				if _, err := stmt.ExecContext(ctx, namespace, key, value, updatedAt); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", namespace, err)
	}
	return nil
}

func (s *Storage) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, persistence.ErrClosed
	}
	return s.db, nil
}
