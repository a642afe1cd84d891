package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported DATABASE_DRIVER values.
const (
	DriverSQLite3  = "sqlite3"  // mattn/go-sqlite3, cgo
	DriverSQLite   = "sqlite"   // modernc.org/sqlite, pure Go
	DriverPostgres = "postgres" // lib/pq
)

// Dialects returned by GetType.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DB holds the database connection
type DB struct {
	*sql.DB
	dialect string
}

// New opens and pings a database. For the sqlite drivers dsn is a file
// path, or ":memory:".
func New(driver, dsn string) (*DB, error) {
	var (
		dialect string
		source  string
	)

	switch driver {
	case DriverSQLite3, DriverSQLite:
		dialect = DialectSQLite
		if dsn != ":memory:" {
			// Ensure directory exists
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		if driver == DriverSQLite3 {
			source = dsn + "?_foreign_keys=on"
		} else {
			source = dsn + "?_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		dialect = DialectPostgres
		source = dsn
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// One writer; also keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, dialect: dialect}, nil
}

// GetType returns the SQL dialect, DialectSQLite or DialectPostgres.
func (db *DB) GetType() string {
	return db.dialect
}

// Rebind rewrites ? placeholders into the dialect's form.
func (db *DB) Rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Placeholders returns n comma-separated ? placeholders, for IN lists.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Migrate runs database migrations
func (db *DB) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if db.dialect == DialectPostgres {
		schema = postgresSchema
	}

	// 1. Create tables
	for _, migration := range schema {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	// 2. Add columns (ignore errors if they already exist)
	for _, migration := range alterMigrations {
		db.ExecContext(ctx, migration)
	}

	// 3. Create indexes (now that all columns exist)
	for _, migration := range indexMigrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("index creation failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		parent_id INTEGER REFERENCES folders(id) ON DELETE CASCADE,
		corrupted BOOLEAN NOT NULL DEFAULT 0,
		corruption_level INTEGER NOT NULL DEFAULT 0,
		reveal_level INTEGER NOT NULL DEFAULT 1,
		modified TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		storage_key TEXT NOT NULL DEFAULT '',
		parent_id INTEGER NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
		corrupted BOOLEAN NOT NULL DEFAULT 0,
		corruption_level INTEGER NOT NULL DEFAULT 0,
		reveal_level INTEGER NOT NULL DEFAULT 1,
		file_type TEXT NOT NULL DEFAULT '',
		modified TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS shares (
		id TEXT PRIMARY KEY,
		token TEXT UNIQUE NOT NULL,
		target_kind TEXT NOT NULL,
		target_id INTEGER NOT NULL,
		share_type TEXT NOT NULL DEFAULT 'public',
		password TEXT NOT NULL DEFAULT '',
		permission TEXT NOT NULL DEFAULT 'view',
		expires_at DATETIME,
		max_downloads INTEGER,
		downloads INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		token TEXT UNIQUE NOT NULL,
		level INTEGER NOT NULL DEFAULT 1,
		corrupted_clicks INTEGER NOT NULL DEFAULT 0,
		repair_attempts INTEGER NOT NULL DEFAULT 0,
		secret_code TEXT NOT NULL DEFAULT '',
		navi_mode BOOLEAN NOT NULL DEFAULT 0,
		current_folder INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS folders (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		parent_id BIGINT REFERENCES folders(id) ON DELETE CASCADE,
		corrupted BOOLEAN NOT NULL DEFAULT FALSE,
		corruption_level INTEGER NOT NULL DEFAULT 0,
		reveal_level INTEGER NOT NULL DEFAULT 1,
		modified TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		size BIGINT NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		storage_key TEXT NOT NULL DEFAULT '',
		parent_id BIGINT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
		corrupted BOOLEAN NOT NULL DEFAULT FALSE,
		corruption_level INTEGER NOT NULL DEFAULT 0,
		reveal_level INTEGER NOT NULL DEFAULT 1,
		file_type TEXT NOT NULL DEFAULT '',
		modified TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS shares (
		id TEXT PRIMARY KEY,
		token TEXT UNIQUE NOT NULL,
		target_kind TEXT NOT NULL,
		target_id BIGINT NOT NULL,
		share_type TEXT NOT NULL DEFAULT 'public',
		password TEXT NOT NULL DEFAULT '',
		permission TEXT NOT NULL DEFAULT 'view',
		expires_at TIMESTAMPTZ,
		max_downloads INTEGER,
		downloads INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		token TEXT UNIQUE NOT NULL,
		level INTEGER NOT NULL DEFAULT 1,
		corrupted_clicks INTEGER NOT NULL DEFAULT 0,
		repair_attempts INTEGER NOT NULL DEFAULT 0,
		secret_code TEXT NOT NULL DEFAULT '',
		navi_mode BOOLEAN NOT NULL DEFAULT FALSE,
		current_folder BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Columns added after the first release. These must run BEFORE index
// creation on these columns.
var alterMigrations = []string{
	`ALTER TABLE folders ADD COLUMN reveal_level INTEGER NOT NULL DEFAULT 1`,
	`ALTER TABLE files ADD COLUMN reveal_level INTEGER NOT NULL DEFAULT 1`,
	`ALTER TABLE files ADD COLUMN storage_key TEXT NOT NULL DEFAULT ''`,
}

var indexMigrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_files_parent ON files(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_shares_token ON shares(token)`,
	`CREATE INDEX IF NOT EXISTS idx_shares_target ON shares(target_kind, target_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
}
