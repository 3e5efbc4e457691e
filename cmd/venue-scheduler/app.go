package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/audit"
	"github.com/example/venue-scheduler/internal/config"
	"github.com/example/venue-scheduler/internal/lock"
	"github.com/example/venue-scheduler/internal/logging"
	"github.com/example/venue-scheduler/internal/notify"
	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/persistence/memory"
	"github.com/example/venue-scheduler/internal/persistence/sqlite"
	"github.com/example/venue-scheduler/internal/persistence/sqlite/migration"
)

type store interface {
	persistence.Transactor
	Repositories() persistence.Repositories
}

// app holds the wired collaborators shared by every command.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   store
	sqlite  *sqlite.Storage
	repos   persistence.Repositories
	redis   *redis.Client
	closers []func() error
}

// bootstrap loads the configuration, builds the logger and opens storage.
// SQLite databases are migrated unless migrate is false.
func bootstrap(ctx context.Context, logOutput io.Writer, migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOutput)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	switch cfg.Storage {
	case config.StorageMemory:
		a.store = memory.New(nil)
	default:
		sqlConfig := migration.DefaultSQLiteConfig(cfg.SQLiteDSN)
		if cfg.SQLiteDSN == migration.MemoryDSN {
			sqlConfig = migration.InMemorySQLiteConfig()
		}
		storage, err := sqlite.Open(sqlConfig, sqlite.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.closers = append(a.closers, storage.Close)
		if migrate {
			if err := storage.Migrate(ctx); err != nil {
				_ = a.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		a.sqlite = storage
		a.store = storage
	}
	a.repos = a.store.Repositories()

	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, a.redis.Close)
	}
	return a, nil
}

// Close releases every resource opened by bootstrap, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) availability() *application.AvailabilityService {
	return application.NewAvailabilityServiceWithLogger(a.repos.Events, a.logger)
}

func (a *app) techCapacity() *application.TechCapacityService {
	return application.NewTechCapacityServiceWithLogger(a.repos.Events, a.repos.TechCapacity, a.logger)
}

func (a *app) priorityConflicts() *application.PriorityConflictService {
	return application.NewPriorityConflictService(application.PriorityConflictDeps{
		Transactor:   a.store,
		Repositories: a.repos,
		Audit:        audit.NewSink(a.repos.Audit, nil, nil, a.logger),
		Publisher:    a.publisher(),
		Locker:       a.locker(),
		IDGenerator:  uuid.NewString,
		Now:          time.Now,
		Location:     a.cfg.Location,
		Logger:       a.logger,
	})
}

func (a *app) publisher() application.ConflictPublisher {
	switch a.cfg.NotifyTransport {
	case config.NotifyRedis:
		return notify.NewRedisPublisher(a.redis, "", a.logger)
	case config.NotifyAMQP:
		publisher := notify.NewAMQPPublisher(a.cfg.AMQPURL, a.logger)
		a.closers = append(a.closers, publisher.Close)
		return publisher
	default:
		return notify.NewLogPublisher(a.logger)
	}
}

func (a *app) locker() application.Locker {
	if a.redis == nil {
		return lock.Noop{}
	}
	return lock.NewRedisLocker(a.redis, a.cfg.RebookLockTTL, a.cfg.RebookLockWait)
}

// describeStorage names the backend for startup logs without leaking credentials.
func (a *app) describeStorage() string {
	if a.cfg.Storage == config.StorageMemory {
		return config.StorageMemory
	}
	return config.StorageSQLite + ":" + strings.TrimSpace(a.cfg.SQLiteDSN)
}
