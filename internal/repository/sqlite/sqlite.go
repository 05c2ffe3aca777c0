// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary builds without a C
// toolchain and tests can run against ":memory:" databases anywhere Go runs.
//
// TRANSACTIONS:
// Every mutating method runs inside one *sql.Tx via withTx. Checks such as
// "does this user exist" and "is this pair already saved" happen inside the
// same transaction as the insert they guard, so the error kind returned is
// precise and a failed call never leaves half its rows behind.
//
// ONE CONNECTION:
// The pool is capped at a single connection. SQLite serializes writers
// anyway, and an in-memory database only exists on the connection that
// created it. The consequence for this package: never run a query on db.conn
// while a *sql.Tx or an open *sql.Rows is held by the same goroutine.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements every repository interface.
type DB struct {
	conn *sql.DB
}

// querier is the subset of *sql.DB and *sql.Tx the helpers need, so the same
// lookup can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/piecemeal.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. Cascading deletes from users
	// depend on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing on nil and rolling back on
// any error (or panic).
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// sqlLimit converts a ListOptions limit to SQLite's, where -1 means no limit.
func sqlLimit(limit int) int {
	if limit == 0 {
		return -1
	}
	return limit
}

// migrate creates every table. CREATE TABLE IF NOT EXISTS makes it safe to
// run on each start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                 TEXT PRIMARY KEY,
			username           TEXT NOT NULL UNIQUE,
			email              TEXT NOT NULL UNIQUE,
			given_name         TEXT NOT NULL DEFAULT '',
			family_name        TEXT NOT NULL DEFAULT '',
			profile_image      TEXT NOT NULL DEFAULT '',
			creation_date      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			authentication     INTEGER NOT NULL DEFAULT 0,
			status             INTEGER NOT NULL DEFAULT 0,
			profile_visibility INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS passwords (
			user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			phrase  TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS recipes (
			id           INTEGER PRIMARY KEY,
			name         TEXT NOT NULL,
			image        TEXT NOT NULL DEFAULT '',
			summary      TEXT NOT NULL DEFAULT '',
			full_summary TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS ingredients (
			id    INTEGER PRIMARY KEY,
			name  TEXT NOT NULL,
			image TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("creating catalog tables: %w", err)
	}

	// The AUTOINCREMENT id on association rows is the insertion order that
	// pagination and "most recent" windows rely on.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS saved_recipes (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			UNIQUE (user_id, recipe_id)
		);

		CREATE TABLE IF NOT EXISTS saved_ingredients (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
			UNIQUE (user_id, ingredient_id)
		);

		CREATE TABLE IF NOT EXISTS intolerances (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			intolerance INTEGER NOT NULL,
			UNIQUE (user_id, intolerance)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating saved item tables: %w", err)
	}

	// Liked/disliked arrived after saved_ingredients existed.
	if err := db.addColumnIfNotExists("saved_ingredients", "liked",
		"INTEGER NOT NULL DEFAULT 1"); err != nil {
		return fmt.Errorf("adding liked to saved_ingredients: %w", err)
	}

	// friends stores an undirected edge as an ordered pair. The expression
	// index makes (a,b) and (b,a) collide.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS friends (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			user1 TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user2 TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_friends_pair
			ON friends(min(user1, user2), max(user1, user2));
		CREATE INDEX IF NOT EXISTS idx_friends_user2 ON friends(user2);

		CREATE TABLE IF NOT EXISTS friend_requests (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			src    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			target TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			UNIQUE (src, target)
		);
		CREATE INDEX IF NOT EXISTS idx_friend_requests_target ON friend_requests(target);
	`)
	if err != nil {
		return fmt.Errorf("creating friend tables: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent; running it twice is harmless.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// exists runs a SELECT 1 ... LIMIT 1 style query and reports whether a row came back.
func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// count runs a SELECT COUNT(*) query.
func count(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
