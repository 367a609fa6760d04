// Package sqlite implements the repository interfaces on SQLite.
//
// DRIVER:
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain. It registers itself with database/sql as "sqlite".
//
// SCHEMA:
// Tables are created by goose migrations embedded from migrations/*.sql.
// New runs them on every start; goose records applied versions in
// goose_db_version so re-running is a no-op.
//
// CONNECTIONS:
// Pragmas are passed in the DSN (`_pragma=...`) so every pooled connection
// gets them, not only the first one. An in-memory database lives inside a
// single connection, so ":memory:" pools are capped at one connection.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/cardbox/internal/repository"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and hands out repositories bound to it.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and applies pending migrations.
//
// dbPath examples:
//   - "data/cardbox.db" → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests, lost on close)
func New(ctx context.Context, dbPath string) (*DB, error) {
	db, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Open opens the database without touching the schema.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open is lazy; Ping forces a real connection so a bad path fails here.
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// dsn appends the connection pragmas to a database path.
func dsn(dbPath string) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}
	if dbPath != MemoryPath {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + strings.Join(pragmas, "&")
}

// Migrate applies every pending migration.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("sqlite: setting migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.conn, "migrations"); err != nil {
		return fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (db *DB) Version(ctx context.Context) (int64, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("sqlite: setting migration dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db.conn)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading schema version: %w", err)
	}
	return v, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool. Defer it right after New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Folders returns the folder repository bound to the pool.
func (db *DB) Folders() repository.FolderRepository {
	return &FolderStore{q: db.conn}
}

// Cards returns the card repository bound to the pool.
func (db *DB) Cards() repository.CardRepository {
	return &CardStore{q: db.conn}
}

// WithTx runs fn with repositories bound to one transaction.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	return withTx(ctx, db.conn, nil, func(ctx context.Context, q DBTX) error {
		return fn(ctx, txRepositories{q: q})
	})
}
