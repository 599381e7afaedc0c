// Package dbtest opens throwaway migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"healthmate/internal/config"
	"healthmate/internal/database"

	"go.uber.org/zap"
)

// New returns a fresh database in t's temp dir, closed on cleanup.
func New(t testing.TB) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.NewDB(config.DriverSQLite, path, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
