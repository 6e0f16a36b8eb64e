// Package localdb owns the embedded SQLite device store used for guest
// galleries and device preferences.
package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// ErrLocked is returned when another process holds the store.
var ErrLocked = errors.New("localdb: store is locked by another process")

// DB is an open device store.
type DB struct {
	*sql.DB
	path string
	lock *flock.Flock
}

// Open creates parent directories, takes the single-writer lock, opens the
// database with WAL enabled and applies pending migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("localdb: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("localdb: ensure directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("localdb: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	// Connection-scoped pragmas go in the DSN so every pooled connection
	// gets them.
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("localdb: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			_ = sqlDB.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("localdb: apply %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, path: path, lock: lock}
	if err := db.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Ping verifies the connection.
func (db *DB) Ping(ctx context.Context) error {
	if db == nil || db.DB == nil {
		return errors.New("localdb: not open")
	}
	return db.PingContext(ctx)
}

// Close closes the database and releases the lock.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	var errs []error
	if db.DB != nil {
		errs = append(errs, db.DB.Close())
	}
	if db.lock != nil {
		errs = append(errs, db.lock.Unlock())
	}
	return errors.Join(errs...)
}
