package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/registrar/internal/infrastructure/sqlite"
)

func TestNewDB_CreatesFileAndDirectories(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dirs", "registry.db")

	db, err := sqlite.NewDB(dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.Equal(t, dbPath, db.Path())

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	require.False(t, info.IsDir())
}

func TestNewDB_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "registry.db")

	db, err := sqlite.NewDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening the same file replays the migration set without error.
	db, err = sqlite.NewDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestNewDB_SeedsCounter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "registry.db")

	db, err := sqlite.NewDB(dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	next, err := db.EntryRepository().NextID()
	require.NoError(t, err)
	require.Equal(t, uint64(0), next)
}
