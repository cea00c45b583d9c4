package storage_test

import (
	"path/filepath"
	"testing"

	"scribe/internal/storage"
)

func TestOpenPathAppliesMigrations(t *testing.T) {
	db, err := storage.OpenPath(filepath.Join(t.TempDir(), "scribe.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"jobs", "job_results", "transcripts", "migrations"} {
		var name string
		row := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err := row.Scan(&name); err != nil {
			t.Fatalf("expected table %s to exist: %v", table, err)
		}
	}

	var version, name, appliedAt string
	row := db.QueryRow("SELECT version, name, applied_at FROM migrations ORDER BY id LIMIT 1")
	if err := row.Scan(&version, &name, &appliedAt); err != nil {
		t.Fatalf("scan migration ledger: %v", err)
	}
	if version != "0001" || name != "initial" {
		t.Fatalf("unexpected ledger entry: version=%q name=%q", version, name)
	}
	if appliedAt == "" {
		t.Fatal("expected applied_at to be stamped")
	}
}

func TestOpenPathIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.db")

	db, err := storage.OpenPath(path)
	if err != nil {
		t.Fatalf("first OpenPath: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = storage.OpenPath(path)
	if err != nil {
		t.Fatalf("second OpenPath: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var count int
	if err := db.QueryRow("SELECT COUNT(1) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 recorded migration, got %d", count)
	}
}
