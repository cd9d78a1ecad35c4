// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code: no C compiler needed, works everywhere Go works.
//
// WHY sqlx ON TOP OF database/sql?
// sqlx keeps the database/sql model (pools, contexts, ? placeholders) but scans
// rows straight into structs by their `db:"..."` tags, so adding a column no
// longer means touching every Scan call:
//
//	var s model.Snippet
//	db.GetContext(ctx, &s, `SELECT * FROM snippets WHERE id = ?`, id)
//
// SCHEMA MIGRATIONS:
// The schema lives in migrations/*.sql, embedded into the binary and applied
// by golang-migrate on startup. golang-migrate records the applied version in
// a schema_migrations table, so each file runs exactly once per database.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a
	// driver named "sqlite". After this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sqlx connection pool and implements every repository interface
// from internal/repository.
type DB struct {
	db *sqlx.DB
}

// New opens (creating if needed) the SQLite database at path and migrates it
// to the latest schema version.
//
// CONNECTION PRAGMAS (passed in the DSN so every pooled connection gets them):
//   - journal_mode(WAL): readers don't block the writer, critical for a web server
//   - foreign_keys(1): SQLite leaves referential integrity OFF by default
//   - busy_timeout(5000): wait up to 5s for a lock instead of failing with SQLITE_BUSY
//   - _time_format=sqlite: store time.Time as sortable "YYYY-MM-DD HH:MM:SS.fff+00:00" text
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating data directory: %w", err)
		}
	}

	if err := migrateUp(path); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_time_format", "sqlite")

	conn, err := sqlx.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces a real connection so a bad path fails here and not on the
	// first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	return &DB{db: conn}, nil
}

// NewWithConn wraps an existing connection without migrating it. Tests use it
// to put a mocked driver behind the repository.
func NewWithConn(conn *sql.DB, driverName string) *DB {
	return &DB{db: sqlx.NewDb(conn, driverName)}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.db.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping() error {
	return db.db.Ping()
}

// migrateUp applies every pending migration. golang-migrate opens (and
// closes) its own connection from the sqlite:// URL.
func migrateUp(path string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: loading migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("sqlite: creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return nil
}
