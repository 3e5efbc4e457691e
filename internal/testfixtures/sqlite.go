package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/venue-scheduler/internal/persistence/sqlite"
	"github.com/example/venue-scheduler/internal/persistence/sqlite/migration"
)

// NewSQLiteHarness constructs a Harness over a temporary SQLite file that is
// migrated automatically. The storage is closed through tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *Harness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "venue-scheduler.db")
	clock := NewClock(time.Time{})

	storage, err := sqlite.Open(migration.DefaultSQLiteConfig(path), sqlite.WithClock(clock.NowFunc()))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return &Harness{Store: storage, Repos: storage.Repositories(), Clock: clock, tb: tb}
}
