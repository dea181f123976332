package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptts-corpus/ptts/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.Context(), "test", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestOrchestrator(s *store.Store) *Orchestrator {
	return New(s, nil, nil, nil, nil, DefaultConfig())
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestRegisterFilesInsertsDocumentAndProvenance(t *testing.T) {
	s := openTestStore(t)
	o := newTestOrchestrator(s)
	dir := t.TempDir()
	path := writeFile(t, dir, "report.txt", "quarterly findings")

	results, err := o.RegisterFiles(t.Context(), []string{path})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Skipped)
	require.NotNil(t, results[0].Document)
	assert.Equal(t, store.DocumentPending, results[0].Document.Status)

	rec, err := o.provenance.Get(t.Context(), results[0].Document.RootProvenanceID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.ProvDocument, rec.Type)
	assert.Equal(t, 0, rec.ChainDepth)
}

func TestRegisterFilesDedupsByContentHash(t *testing.T) {
	s := openTestStore(t)
	o := newTestOrchestrator(s)
	dir := t.TempDir()
	path1 := writeFile(t, dir, "a.txt", "identical content")
	path2 := writeFile(t, dir, "b.txt", "identical content")

	results, err := o.RegisterFiles(t.Context(), []string{path1, path2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Skipped)
	assert.True(t, results[1].Skipped)
	assert.Equal(t, results[0].Document.ID, results[1].Document.ID)
}

func TestRegisterFilesMissingFile(t *testing.T) {
	s := openTestStore(t)
	o := newTestOrchestrator(s)

	_, err := o.RegisterFiles(t.Context(), []string{filepath.Join(t.TempDir(), "nope.txt")})
	assert.Error(t, err)
}

func TestRegisterDirectoryFiltersByExtension(t *testing.T) {
	s := openTestStore(t)
	o := newTestOrchestrator(s)
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "text content")
	writeFile(t, dir, "image.png", "binary-ish content")

	results, err := o.RegisterDirectory(t.Context(), dir, []string{".txt"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc.txt", results[0].Document.FileName)
}

func TestRegisterDirectoryHonorsPttsIgnore(t *testing.T) {
	s := openTestStore(t)
	o := newTestOrchestrator(s)
	dir := t.TempDir()
	writeFile(t, dir, ".pttsignore", "ignored/\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ignored"), 0o755))
	writeFile(t, dir, "kept.txt", "kept content")
	writeFile(t, filepath.Join(dir, "ignored"), "skip.txt", "skipped content")

	results, err := o.RegisterDirectory(t.Context(), dir, nil)
	require.NoError(t, err)

	var names []string
	for _, r := range results {
		names = append(names, r.Document.FileName)
	}
	assert.Contains(t, names, "kept.txt")
	assert.NotContains(t, names, "skip.txt")
}
