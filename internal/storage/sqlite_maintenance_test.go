package storage

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(slog.New(slog.NewJSONHandler(io.Discard, nil)), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Init())
	return store
}

func TestGetDBSize(t *testing.T) {
	store := newFileStore(t)

	size, err := store.GetDBSize()
	require.NoError(t, err)
	assert.Greater(t, size, int64(0), "DB size should be greater than 0")
}

func TestGetDBSize_InMemory(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	// No file backs an in-memory database
	_, err := store.GetDBSize()
	assert.Error(t, err)
}

func TestGetTableSizes(t *testing.T) {
	store := newFileStore(t)
	seedGita(t, store)

	sizes, err := store.GetTableSizes()
	require.NoError(t, err)
	assert.NotEmpty(t, sizes, "Table sizes should not be empty")

	tableNames := make(map[string]bool)
	for _, ts := range sizes {
		tableNames[ts.Name] = true
		assert.Positive(t, ts.Bytes, ts.Name)
	}
	assert.True(t, tableNames["texts"], "texts should be listed")
	assert.True(t, tableNames["verses"], "verses should be listed")
}

func TestCheckpoint(t *testing.T) {
	store := newFileStore(t)
	seedGita(t, store)

	assert.NoError(t, store.Checkpoint())
}

func TestCleanupGenerationLogs_NothingToDelete(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		require.NoError(t, store.AddGenerationLog(t.Context(), GenerationLog{ConfigID: "simplify", JobType: "tool", Model: "m", Success: true}))
	}

	deleted, err := store.CleanupGenerationLogs(5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted, "Should delete 0 records")
}
