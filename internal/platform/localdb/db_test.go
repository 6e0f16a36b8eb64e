package localdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenAppliesMigrationsAndLocks(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "devices.db")

	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for _, table := range []string{"devices", "guest_assets", "device_prefs", "schema_migrations"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s: %v", table, err)
		}
	}

	if _, err := Open(ctx, path); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked for second open, got %v", err)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	var applied int
	if err := reopened.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 3 {
		t.Fatalf("expected 3 migrations recorded once, got %d", applied)
	}
}
