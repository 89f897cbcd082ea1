package testutil

import (
	"path/filepath"
	"testing"

	"attendance-kiosk/internal/store"
)

// NewTestDB creates a migrated SQLite database in a temp dir. A file is used
// rather than :memory: so every pooled connection sees the same data.
// The database is closed when the test completes.
func NewTestDB(t testing.TB) *store.DB {
	t.Helper()

	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "kiosk.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
