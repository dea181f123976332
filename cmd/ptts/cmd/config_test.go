package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPathDerivesFromSelectedDatabase(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "corpus-a")

	path, err := configPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "corpus-a.config.yaml"), path)
}

func TestConfigPathPropagatesResolveDBNameError(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "")
	t.Setenv("PTTS_DB", "")

	_, err := configPath()
	assert.Error(t, err)
}
