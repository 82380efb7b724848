package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Side-effect import: registers the pure-Go "sqlite" driver with
	// database/sql. No CGo, so cross-compiling for the mobile companion
	// builds stays painless.
	_ "modernc.org/sqlite"
)

// DB is a Store backed by a single SQLite table.
//
// SQLite is the closest server-side analogue to the client platform's local
// storage: an embedded single-file database with no daemon to manage.
// ":memory:" gives an ephemeral store for tests.
type DB struct {
	conn *sql.DB
}

// compile-time check that *DB implements Store
var _ Store = (*DB)(nil)

// NewSQLite opens (or creates) the database at path and prepares the kv table.
func NewSQLite(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight. The account store
	// serializes its own writes, but the trending handlers read concurrently.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Callers should defer this next to
// NewSQLite so the WAL is flushed on shutdown.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the kv table. CREATE TABLE IF NOT EXISTS keeps it
// idempotent, so it is safe on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}
	return nil
}

// Get reads the value stored under key. A missing key is (_, false, nil),
// not an error — the account layer treats absence as "create the default".
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore: getting %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key, replacing any previous value.
func (db *DB) Set(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("kvstore: setting %q: %w", key, err)
	}
	return nil
}

// Remove deletes the given keys in one statement. Missing keys are ignored —
// removal is idempotent.
func (db *DB) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	_, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM kv WHERE key IN (%s)`, placeholders), args...,
	)
	if err != nil {
		return fmt.Errorf("kvstore: removing %d keys: %w", len(keys), err)
	}
	return nil
}
