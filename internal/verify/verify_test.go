package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptts-corpus/ptts/internal/hashutil"
	"github.com/ptts-corpus/ptts/internal/provenance"
	"github.com/ptts-corpus/ptts/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.Context(), "test", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeTestFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func insertDocumentAndProvenance(t *testing.T, s *store.Store, id, path, contents string) string {
	t.Helper()
	hash := hashutil.ComputeHashString(contents)
	require.NoError(t, s.InsertDocument(t.Context(), &store.Document{
		ID:               id,
		FilePath:         path,
		FileName:         filepath.Base(path),
		FileSize:         int64(len(contents)),
		FileType:         "text/plain",
		FileHash:         hash,
		Status:           store.DocumentPending,
		RootProvenanceID: "placeholder",
	}))

	e := provenance.New(s.DB())
	provID, err := e.Create(t.Context(), provenance.CreateParams{
		Type:           store.ProvDocument,
		RootDocumentID: id,
		ContentHash:    hash,
		ChainDepth:     0,
	})
	require.NoError(t, err)
	return provID
}

func TestVerifyContentHashValid(t *testing.T) {
	s := openTestStore(t)
	contents := "the quick brown fox"
	path := writeTestFile(t, contents)
	provID := insertDocumentAndProvenance(t, s, "doc1", path, contents)

	v := New(s)
	check, err := v.VerifyContentHash(t.Context(), provID)
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.True(t, check.FormatValid)
	assert.Equal(t, check.Expected, check.Computed)
}

func TestVerifyContentHashMismatch(t *testing.T) {
	s := openTestStore(t)
	contents := "the quick brown fox"
	path := writeTestFile(t, contents)

	e := provenance.New(s.DB())
	require.NoError(t, s.InsertDocument(t.Context(), &store.Document{
		ID:               "doc1",
		FilePath:         path,
		FileName:         "source.txt",
		FileSize:         int64(len(contents)),
		FileType:         "text/plain",
		FileHash:         hashutil.ComputeHashString(contents),
		Status:           store.DocumentPending,
		RootProvenanceID: "placeholder",
	}))
	provID, err := e.Create(t.Context(), provenance.CreateParams{
		Type:           store.ProvDocument,
		RootDocumentID: "doc1",
		ContentHash:    hashutil.ComputeHashString("totally different content"),
		ChainDepth:     0,
	})
	require.NoError(t, err)

	v := New(s)
	check, err := v.VerifyContentHash(t.Context(), provID)
	require.NoError(t, err)
	assert.False(t, check.Valid)
}

func TestVerifyContentHashMissingNode(t *testing.T) {
	s := openTestStore(t)
	v := New(s)
	_, err := v.VerifyContentHash(t.Context(), "does-not-exist")
	assert.Error(t, err)
}

func TestVerifyChainIntact(t *testing.T) {
	s := openTestStore(t)
	contents := "chain of custody"
	path := writeTestFile(t, contents)
	rootID := insertDocumentAndProvenance(t, s, "doc1", path, contents)

	e := provenance.New(s.DB())
	ocrHash := hashutil.ComputeHashString("extracted text")
	ocrID, err := e.Create(t.Context(), provenance.CreateParams{
		Type:           store.ProvOCRResult,
		RootDocumentID: "doc1",
		ContentHash:    ocrHash,
		ParentID:       &rootID,
		ParentIDs:      []string{rootID},
		ChainDepth:     1,
		SourceID:       strPtr("ocr1"),
	})
	require.NoError(t, err)
	require.NoError(t, s.InsertOCRResult(t.Context(), &store.OCRResult{
		ID:            "ocr1",
		DocumentID:    "doc1",
		ExtractedText: "extracted text",
	}))

	v := New(s)
	check, err := v.VerifyChain(t.Context(), ocrID, 20)
	require.NoError(t, err)
	assert.True(t, check.ChainIntact)
	assert.Equal(t, 2, check.Verified)
	assert.Empty(t, check.Failed)
}

func TestVerifyChainRootNodeOnly(t *testing.T) {
	s := openTestStore(t)
	contents := "root document"
	path := writeTestFile(t, contents)
	rootID := insertDocumentAndProvenance(t, s, "doc1", path, contents)

	e := provenance.New(s.DB())
	ocrHash := hashutil.ComputeHashString("text")
	_, err := e.Create(t.Context(), provenance.CreateParams{
		Type:           store.ProvOCRResult,
		RootDocumentID: "doc1",
		ContentHash:    ocrHash,
		ParentID:       &rootID,
		ParentIDs:      []string{rootID},
		ChainDepth:     1,
		SourceID:       strPtr("ocr1"),
	})
	require.NoError(t, err)
	require.NoError(t, s.InsertOCRResult(t.Context(), &store.OCRResult{
		ID:            "ocr1",
		DocumentID:    "doc1",
		ExtractedText: "text",
	}))

	v := New(s)
	check, err := v.VerifyChain(t.Context(), rootID, 20)
	require.NoError(t, err)
	assert.True(t, check.ChainIntact)
	assert.Equal(t, 1, check.Verified)
}

func TestVerifyChainMissingNode(t *testing.T) {
	s := openTestStore(t)
	v := New(s)
	_, err := v.VerifyChain(t.Context(), "does-not-exist", 20)
	assert.Error(t, err)
}

func TestVerifyDatabaseAggregatesByType(t *testing.T) {
	s := openTestStore(t)
	contents := "document one"
	path := writeTestFile(t, contents)
	insertDocumentAndProvenance(t, s, "doc1", path, contents)

	contents2 := "document two"
	path2 := writeTestFile(t, contents2)
	insertDocumentAndProvenance(t, s, "doc2", path2, contents2)

	v := New(s)
	report, err := v.VerifyDatabase(t.Context(), 20)
	require.NoError(t, err)
	require.Contains(t, report.ByType, store.ProvDocument)
	assert.Equal(t, 2, report.ByType[store.ProvDocument].Total)
	assert.Equal(t, 2, report.ByType[store.ProvDocument].Verified)
	assert.Empty(t, report.ChainErrors)
	assert.Equal(t, 0, report.Overflow)
}

func TestVerifyFileIntegrityValid(t *testing.T) {
	s := openTestStore(t)
	contents := "file on disk"
	path := writeTestFile(t, contents)
	insertDocumentAndProvenance(t, s, "doc1", path, contents)

	v := New(s)
	check, err := v.VerifyFileIntegrity(t.Context(), "doc1")
	require.NoError(t, err)
	assert.True(t, check.Valid)
}

func TestVerifyFileIntegrityMissingFile(t *testing.T) {
	s := openTestStore(t)
	contents := "gone"
	path := writeTestFile(t, contents)
	insertDocumentAndProvenance(t, s, "doc1", path, contents)
	require.NoError(t, os.Remove(path))

	v := New(s)
	_, err := v.VerifyFileIntegrity(t.Context(), "doc1")
	assert.Error(t, err)
}

func TestVerifyFileIntegrityMissingDocument(t *testing.T) {
	s := openTestStore(t)
	v := New(s)
	_, err := v.VerifyFileIntegrity(t.Context(), "does-not-exist")
	assert.Error(t, err)
}

func strPtr(s string) *string { return &s }
