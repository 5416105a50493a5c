package repository

import (
	"database/sql"
	"testing"
	"testing/fstest"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyMigrations(t *testing.T) {
	db := openMemDB(t)

	migrationFS := fstest.MapFS{
		"0002_second.sql": {Data: []byte("ALTER TABLE widgets ADD COLUMN color TEXT;")},
		"0001_first.sql":  {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
	}

	if err := applyMigrations(db, migrationFS); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	// Both files applied in lexical order: the ALTER only works if the
	// CREATE ran first.
	if _, err := db.Exec("INSERT INTO widgets (id, color) VALUES (1, 'red')"); err != nil {
		t.Fatalf("schema incomplete after migrations: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("read migration table: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", count)
	}
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	db := openMemDB(t)

	migrationFS := fstest.MapFS{
		"0001_first.sql": {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
	}

	if err := applyMigrations(db, migrationFS); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// A second run must skip already-applied files instead of failing on
	// the duplicate CREATE.
	if err := applyMigrations(db, migrationFS); err != nil {
		t.Fatalf("second apply: %v", err)
	}
}

func TestApplyMigrationsFailureRollsBack(t *testing.T) {
	db := openMemDB(t)

	migrationFS := fstest.MapFS{
		"0001_bad.sql": {Data: []byte("CREATE SYNTAX ERROR;")},
	}

	if err := applyMigrations(db, migrationFS); err == nil {
		t.Fatal("expected error from broken migration")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("read migration table: %v", err)
	}
	if count != 0 {
		t.Fatalf("broken migration must not be recorded, got %d", count)
	}
}
