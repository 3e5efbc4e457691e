// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_venue_schema.sql") and are read from an fs.FS, which lets the
// storage layer ship its schema embedded in the binary. Each migration runs in
// its own transaction and is recorded in the schema_migrations table so it is
// never applied twice.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(), migration.NewSQLiteExecutor(db), files, logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
