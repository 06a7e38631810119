// Package testutil provides test utilities for registry database setup.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/registrar/internal/infrastructure/sqlite"
	"github.com/zjrosen/registrar/internal/registry/domain"
)

// NewTestDB creates a migrated registry database in a temp directory.
// The database is closed when the test completes.
func NewTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "registrar.db")
	db, err := sqlite.NewDB(dbPath)
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewTestRepository creates a repository over a fresh test database.
func NewTestRepository(t *testing.T) domain.EntryRepository {
	t.Helper()
	return NewTestDB(t).EntryRepository()
}
