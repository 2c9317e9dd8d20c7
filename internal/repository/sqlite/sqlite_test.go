package sqlite

import (
	"testing"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" creates a fresh database that exists only during the test, so
// every test is fast and isolated.
//
// t.Helper() makes failures point at the caller's line; t.Cleanup closes the
// database when the test (or subtest) finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestNew_FileDatabase(t *testing.T) {
	path := t.TempDir() + "/closet.db"

	db, err := New(path)
	if err != nil {
		t.Fatalf("New(%q) error = %v", path, err)
	}
	db.Close()

	// Reopening runs migrations against the existing schema.
	db, err = New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	db.Close()
}
