package migration

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryDSN selects a private in-memory database.
const MemoryDSN = ":memory:"

// SQLiteConfig holds SQLite connection settings.
type SQLiteConfig struct {
	// DSN is the database file path, or MemoryDSN.
	DSN string
	// BusyTimeout sets how long to wait for database locks.
	BusyTimeout time.Duration
	// EnableForeignKeys enables foreign key constraint checking.
	EnableForeignKeys bool
	// JournalMode sets the SQLite journal mode (WAL, DELETE, MEMORY, ...).
	JournalMode string
	// Synchronous sets the synchronous mode (FULL, NORMAL, OFF).
	Synchronous string
	// MaxOpenConns caps the pool. In-memory databases always use one connection.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSQLiteConfig returns file-backed settings suited for the server.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		DSN:               path,
		BusyTimeout:       10 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		MaxOpenConns:      4,
		MaxIdleConns:      2,
		ConnMaxLifetime:   5 * time.Minute,
	}
}

// InMemorySQLiteConfig returns settings for a throwaway in-memory database.
func InMemorySQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		DSN:               MemoryDSN,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "MEMORY",
		Synchronous:       "OFF",
		MaxOpenConns:      1,
		MaxIdleConns:      1,
	}
}

var (
	validJournalModes = map[string]bool{"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	validSyncModes    = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
)

// Validate checks the configuration for unusable values.
func (c SQLiteConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.DSN) == "":
		return fmt.Errorf("sqlite: DSN cannot be empty")
	case c.BusyTimeout < 0:
		return fmt.Errorf("sqlite: BusyTimeout cannot be negative")
	case c.JournalMode != "" && !validJournalModes[strings.ToUpper(c.JournalMode)]:
		return fmt.Errorf("sqlite: invalid journal mode %q", c.JournalMode)
	case c.Synchronous != "" && !validSyncModes[strings.ToUpper(c.Synchronous)]:
		return fmt.Errorf("sqlite: invalid synchronous mode %q", c.Synchronous)
	case c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0:
		return fmt.Errorf("sqlite: pool settings cannot be negative")
	}
	return nil
}

// DriverDSN renders the connection string understood by modernc.org/sqlite.
// Pragmas travel in the DSN so every pooled connection gets them, and write
// transactions take the lock up front.
func (c SQLiteConfig) DriverDSN() string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	if c.JournalMode != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}
	params.Set("_txlock", "immediate")

	if c.DSN == MemoryDSN {
		return "file::memory:?" + params.Encode()
	}
	return "file:" + c.DSN + "?" + params.Encode()
}

// Open validates the configuration, creates the database directory and
// returns a pinged connection pool.
func Open(config SQLiteConfig) (*sql.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.DSN != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(config.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", config.DriverDSN())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if config.DSN == MemoryDSN {
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 && config.DSN != MemoryDSN {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return db, nil
}
