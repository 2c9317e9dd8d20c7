// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means a C compiler at build time and
// painful cross-compilation. modernc.org/sqlite is a pure Go translation of
// SQLite: no C compiler needed, works everywhere Go works.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB   — a connection pool (NOT a single connection!)
//   - sql.Tx   — a transaction
//   - sql.Rows — multiple result rows (must be closed!)
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool. It implements
// repository.MediaRepository, repository.SessionRepository and
// repository.UserRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/closet.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// connection so every query sees the same tables.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress, which matters
	// when several requests list photos while one uploads.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. /healthz uses it.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	// users: one row per GitHub account that passed the membership check.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			github_id  INTEGER NOT NULL DEFAULT 0,
			login      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// sessions: access_token is sealed by the caller before it gets here.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			login        TEXT NOT NULL,
			profile      TEXT NOT NULL DEFAULT '{}',
			created_at   DATETIME NOT NULL,
			expires_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	// media: seq gives the stable insertion order listings follow.
	// pixels holds zstd-compressed RGBA; width/height travel with it.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS media (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT NOT NULL UNIQUE,
			owner         TEXT NOT NULL,
			width         INTEGER NOT NULL,
			height        INTEGER NOT NULL,
			pixels        BLOB NOT NULL,
			path          TEXT NOT NULL,
			original_name TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_media_owner ON media(owner, seq);

		CREATE TABLE IF NOT EXISTS media_categories (
			media_id TEXT NOT NULL REFERENCES media(id),
			category TEXT NOT NULL,
			PRIMARY KEY (media_id, category)
		);
		CREATE INDEX IF NOT EXISTS idx_media_categories_category ON media_categories(category);
	`)
	if err != nil {
		return fmt.Errorf("creating media tables: %w", err)
	}

	return nil
}
