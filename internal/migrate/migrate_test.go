package migrate

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1) // :memory: is per-connection; pin to one so schema isn't lost across pooled conns
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunBringsUpEmptyDatabase(t *testing.T) {
	db := openMemDB(t)
	require.NoError(t, Run(t.Context(), db))

	v, err := storedVersion(t.Context(), db)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, v)

	var name string
	err = db.QueryRowContext(t.Context(), `SELECT name FROM sqlite_master WHERE type='table' AND name='documents'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "documents", name)
}

func TestRunIsIdempotent(t *testing.T) {
	db := openMemDB(t)
	require.NoError(t, Run(t.Context(), db))
	require.NoError(t, Run(t.Context(), db))

	v, err := storedVersion(t.Context(), db)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, v)
}

func TestRunRejectsNewerStoredVersion(t *testing.T) {
	db := openMemDB(t)
	require.NoError(t, Run(t.Context(), db))

	_, err := db.ExecContext(t.Context(), `UPDATE schema_version SET current_version = ? WHERE id = 1`, CurrentVersion+1)
	require.NoError(t, err)

	err = Run(t.Context(), db)
	assert.Error(t, err)
}

func TestRunCreatesProvenanceTable(t *testing.T) {
	db := openMemDB(t)
	require.NoError(t, Run(t.Context(), db))

	var name string
	err := db.QueryRowContext(t.Context(), `SELECT name FROM sqlite_master WHERE type='table' AND name='provenance'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "provenance", name)
}
