package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationFiles exposes the embedded schema migrations.
func MigrationFiles() fs.FS {
	files, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(fmt.Sprintf("sqlite: embedded migrations: %v", err))
	}
	return files
}

// Storage is the SQLite backed persistence layer. It implements
// persistence.Transactor.
type Storage struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	logger *slog.Logger
	now    func() time.Time
}

// Option customises a Storage.
type Option func(*Storage)

// WithLogger sets the logger used for migrations and retries.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used to stamp created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to the database described by config. Call Migrate before use.
func Open(config migration.SQLiteConfig, opts ...Option) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	storage := &Storage{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(storage)
	}
	return storage, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Ping checks database connectivity.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) migrationManager() *migration.Manager {
	return migration.NewManager(migration.NewScanner(), migration.NewSQLiteExecutor(s.pool.DB()), MigrationFiles(), s.logger)
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	return s.migrationManager().Run(ctx)
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return s.migrationManager().Status(ctx)
}

// Repositories returns repositories running outside any transaction.
func (s *Storage) Repositories() persistence.Repositories {
	return s.bind(s.pool.DB())
}

// WithinTx runs fn with repositories bound to a single transaction. The whole
// transaction is retried when SQLite reports the database busy, so fn must not
// keep state between attempts.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, repos persistence.Repositories) error) error {
	attempt := 0
	return s.retry.WithRetry(ctx, func() error {
		attempt++
		if attempt > 1 {
			s.logger.WarnContext(ctx, "retrying busy transaction", slog.Int("attempt", attempt))
		}
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return fn(ctx, s.bind(tx))
		})
	})
}

func (s *Storage) bind(db DBTX) persistence.Repositories {
	mapper := NewErrorMapper()
	return persistence.Repositories{
		Events:       &EventRepository{db: db, mapper: mapper, now: s.now},
		Spaces:       &SpaceRepository{db: db, mapper: mapper, now: s.now},
		TechCapacity: &TechCapacityConfigRepository{db: db, mapper: mapper, now: s.now},
		Conflicts:    &ConflictRepository{db: db, mapper: mapper, now: s.now},
		Audit:        &AuditRepository{db: db, mapper: mapper, now: s.now},
	}
}

var _ persistence.Transactor = (*Storage)(nil)
