package testsupport

import (
	"database/sql"
	"testing"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/storage"
	"scribe/internal/transcript"
)

// MustOpenDB opens the scribe database for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *sql.DB {
	t.Helper()

	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// MustOpenTranscriptStore opens a transcript store over a fresh test database.
func MustOpenTranscriptStore(t testing.TB, cfg *config.Config) *transcript.Store {
	t.Helper()
	return transcript.NewStore(MustOpenDB(t, cfg))
}

// MustOpenJobStore opens a job store over a fresh test database.
func MustOpenJobStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()
	return jobs.NewStore(MustOpenDB(t, cfg))
}
