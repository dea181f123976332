package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptts-corpus/ptts/internal/collaborator"
	"github.com/ptts-corpus/ptts/internal/index"
	"github.com/ptts-corpus/ptts/internal/store"
)

type fakeOCRClient struct {
	text string
	err  error
}

func (f *fakeOCRClient) Extract(_ context.Context, _ string, _ store.OCRMode) (*collaborator.OCRResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &collaborator.OCRResult{
		ExtractedText: f.text,
		PageCount:     1,
	}, nil
}

type fakeEmbeddingClient struct {
	dims int
}

func (f *fakeEmbeddingClient) Embed(_ context.Context, texts []string, _ store.TaskType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dims)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}
func (f *fakeEmbeddingClient) Dimensions() int   { return f.dims }
func (f *fakeEmbeddingClient) ModelName() string { return "fake-embedder" }

func newFullOrchestrator(t *testing.T, ocr collaborator.OCRClient, embedding collaborator.EmbeddingClient) (*Orchestrator, *store.Store) {
	t.Helper()
	s := openTestStore(t)
	maintainer := index.NewMaintainer(nil, nil)
	o := New(s, maintainer, ocr, nil, embedding, DefaultConfig())
	return o, s
}

func TestRunProcessesPendingDocumentThroughOCRAndEmbedding(t *testing.T) {
	o, s := newFullOrchestrator(t,
		&fakeOCRClient{text: "This is the extracted document text used for chunking and embedding tests."},
		&fakeEmbeddingClient{dims: 4},
	)

	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "source bytes")
	registered, err := o.RegisterFiles(t.Context(), []string{path})
	require.NoError(t, err)
	require.Len(t, registered, 1)
	docID := registered[0].Document.ID

	require.NoError(t, o.Run(t.Context()))

	got, err := s.GetDocument(t.Context(), docID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, store.DocumentComplete, got.Status)

	chunks, err := s.ListAllChunks(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, store.EmbeddingComplete, c.EmbeddingStatus)
	}
}

func TestRunMarksDocumentFailedOnOCRError(t *testing.T) {
	o, s := newFullOrchestrator(t,
		&fakeOCRClient{err: assert.AnError},
		&fakeEmbeddingClient{dims: 4},
	)

	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "source bytes")
	registered, err := o.RegisterFiles(t.Context(), []string{path})
	require.NoError(t, err)
	docID := registered[0].Document.ID

	require.ErrorIs(t, o.Run(t.Context()), assert.AnError)

	got, err := s.GetDocument(t.Context(), docID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, store.DocumentFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
}

func TestRecoverFromRestartResetsProcessingDocuments(t *testing.T) {
	s := openTestStore(t)
	o := newTestOrchestrator(s)

	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "source bytes")
	registered, err := o.RegisterFiles(t.Context(), []string{path})
	require.NoError(t, err)
	docID := registered[0].Document.ID

	require.NoError(t, s.UpdateDocumentStatus(t.Context(), docID, store.DocumentProcessing, nil))

	require.NoError(t, o.RecoverFromRestart(t.Context()))

	got, err := s.GetDocument(t.Context(), docID)
	require.NoError(t, err)
	assert.Equal(t, store.DocumentPending, got.Status)
}
