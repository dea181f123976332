package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDatabasesReturnsNilWhenStorageDirMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	withFlags(t, dir, "")

	names, err := listDatabases()
	require.NoError(t, err)
	assert.Nil(t, names)
}

func TestListDatabasesFiltersAndSortsByDBSuffix(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "")

	for _, name := range []string{"zebra.db", "alpha.db", "zebra.db-wal", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0o755))

	names, err := listDatabases()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zebra"}, names)
}
