package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withFlags sets storagePathFlag/dbNameFlag for the duration of a test and
// restores the previous values afterward, since both are package-level vars
// bound to persistent cobra flags shared across the whole command tree.
func withFlags(t *testing.T, storagePath, dbName string) {
	t.Helper()
	prevStorage, prevDB := storagePathFlag, dbNameFlag
	storagePathFlag, dbNameFlag = storagePath, dbName
	t.Cleanup(func() { storagePathFlag, dbNameFlag = prevStorage, prevDB })
}

func TestStorageDirPrefersFlag(t *testing.T) {
	withFlags(t, "/flag/path", "")
	assert.Equal(t, "/flag/path", storageDir())
}

func TestStorageDirFallsBackToEnv(t *testing.T) {
	withFlags(t, "", "")
	t.Setenv("STORAGE_PATH", "/env/path")
	assert.Equal(t, "/env/path", storageDir())
}

func TestStorageDirDefaultsUnderHome(t *testing.T) {
	withFlags(t, "", "")
	t.Setenv("STORAGE_PATH", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".ptts", "data"), storageDir())
}

func TestResolveDBNamePrefersFlag(t *testing.T) {
	withFlags(t, "", "flagged-db")
	t.Setenv("PTTS_DB", "env-db")
	name, err := resolveDBName()
	require.NoError(t, err)
	assert.Equal(t, "flagged-db", name)
}

func TestResolveDBNameFallsBackToEnv(t *testing.T) {
	withFlags(t, "", "")
	t.Setenv("PTTS_DB", "env-db")
	name, err := resolveDBName()
	require.NoError(t, err)
	assert.Equal(t, "env-db", name)
}

func TestResolveDBNameFallsBackToPersistedPointer(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "")
	t.Setenv("PTTS_DB", "")

	require.NoError(t, setCurrentDB("pointer-db"))

	name, err := resolveDBName()
	require.NoError(t, err)
	assert.Equal(t, "pointer-db", name)
}

func TestResolveDBNameErrorsWithoutAnySource(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "")
	t.Setenv("PTTS_DB", "")

	_, err := resolveDBName()
	assert.Error(t, err)
}

func TestSetCurrentDBPersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "")

	require.NoError(t, setCurrentDB("corpus-a"))
	data, err := os.ReadFile(filepath.Join(dir, ".current_db"))
	require.NoError(t, err)
	assert.Equal(t, "corpus-a", string(data))

	require.NoError(t, setCurrentDB("corpus-b"))
	data, err = os.ReadFile(filepath.Join(dir, ".current_db"))
	require.NoError(t, err)
	assert.Equal(t, "corpus-b", string(data))
}
