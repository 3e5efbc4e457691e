package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Manager orchestrates scanning, validation and execution of migrations.
type Manager struct {
	scanner  Scanner
	executor Executor
	files    fs.FS
	logger   *slog.Logger
}

// NewManager builds a manager reading migrations from files.
func NewManager(scanner Scanner, executor Executor, files fs.FS, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		files:    files,
		logger:   logger.With(slog.String("component", "migration")),
	}
}

// Run applies every pending migration in version order. It stops at the first
// failure; migrations applied before it stay applied.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", slog.String("version", status.CurrentVersion))
		return nil
	}

	for i, migration := range status.Pending {
		m.logger.InfoContext(ctx, "applying migration",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
			slog.Int("position", i+1),
			slog.Int("pending", len(status.Pending)),
		)

		migrationStarted := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				slog.String("version", migration.Version),
				slog.Any("error", err),
			)
			return newMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		elapsed := time.Since(migrationStarted)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			return err
		}
		m.logger.InfoContext(ctx, "migration applied",
			slog.String("version", migration.Version),
			slog.Duration("elapsed", elapsed),
		)
	}

	m.logger.InfoContext(ctx, "migrations complete",
		slog.Int("applied", len(status.Pending)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Status reports applied and pending migrations. It fails when the available
// files have a gap in their version sequence, when an applied version has no
// file, or when an applied file changed since it ran.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := m.scanner.ScanMigrations(m.files)
	if err != nil {
		return Status{}, fmt.Errorf("scan migrations: %w", err)
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, record := range applied {
		appliedByVersion[versionNumber(record.Version)] = record
	}

	status := Status{Applied: applied}
	for _, migration := range available {
		record, ok := appliedByVersion[versionNumber(migration.Version)]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return Status{}, newMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
		status.CurrentVersion = migration.Version
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	known := make(map[int]bool, len(available))
	for i, migration := range available {
		number := versionNumber(migration.Version)
		if i > 0 && number != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing version between %s and %s",
				ErrVersionConflict, available[i-1].Version, migration.Version)
		}
		known[number] = true
	}
	for _, record := range applied {
		if !known[versionNumber(record.Version)] {
			return fmt.Errorf("%w: applied version %s has no migration file", ErrVersionConflict, record.Version)
		}
	}
	return nil
}
