package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptts-corpus/ptts/internal/store"
)

// fakeEmbeddingClient returns a fixed vector per call regardless of input,
// enough to drive vector/hybrid search without a real collaborator.
type fakeEmbeddingClient struct {
	dims   int
	vector []float32
}

func (f *fakeEmbeddingClient) Embed(_ context.Context, texts []string, _ store.TaskType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbeddingClient) Dimensions() int { return f.dims }
func (f *fakeEmbeddingClient) ModelName() string { return "fake-embedder" }

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.Context(), "test", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedDocument inserts a document, an OCR result, and one chunk with the
// given text, returning the chunk id.
func seedDocument(t *testing.T, s *store.Store, docID, chunkID, text string) {
	t.Helper()
	require.NoError(t, s.InsertDocument(t.Context(), &store.Document{
		ID:               docID,
		FilePath:         "/docs/" + docID + ".txt",
		FileName:         docID + ".txt",
		FileSize:         int64(len(text)),
		FileType:         "text/plain",
		FileHash:         "hash-" + docID,
		Status:           store.DocumentComplete,
		RootProvenanceID: "prov-" + docID,
	}))

	ocrID := "ocr-" + docID
	require.NoError(t, s.InsertOCRResult(t.Context(), &store.OCRResult{
		ID:            ocrID,
		DocumentID:    docID,
		ExtractedText: text,
	}))

	require.NoError(t, s.InsertChunks(t.Context(), []*store.Chunk{{
		ID:              chunkID,
		DocumentID:      docID,
		OCRResultID:     ocrID,
		Text:            text,
		TextHash:        "hash-" + chunkID,
		ChunkIndex:      0,
		CharacterStart:  0,
		CharacterEnd:    len(text),
		EmbeddingStatus: store.EmbeddingComplete,
	}}))
}

func TestLexicalExactMatch(t *testing.T) {
	s := openTestStore(t)
	seedDocument(t, s, "doc1", "chunk1", "The quarterly budget review is complete.")
	seedDocument(t, s, "doc2", "chunk2", "Unrelated meeting notes about logistics.")

	e := New(s, nil, nil, nil)
	resp, err := e.Lexical(t.Context(), LexicalParams{Query: "budget review", MatchType: MatchExact})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "chunk1", resp.Results[0].ChunkID)
}

func TestLexicalFuzzyIsCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	seedDocument(t, s, "doc1", "chunk1", "The Quarterly Budget Review is complete.")

	e := New(s, nil, nil, nil)
	resp, err := e.Lexical(t.Context(), LexicalParams{Query: "quarterly budget", MatchType: MatchFuzzy})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
}

func TestLexicalRegexMatch(t *testing.T) {
	s := openTestStore(t)
	seedDocument(t, s, "doc1", "chunk1", "invoice-2024-0012 was filed on time")

	e := New(s, nil, nil, nil)
	resp, err := e.Lexical(t.Context(), LexicalParams{Query: `invoice-\d{4}-\d+`, MatchType: MatchRegex})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, []string{"invoice-2024-0012"}, resp.Results[0].MatchedTerms)
}

func TestLexicalRejectsEmptyQuery(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, nil, nil)
	_, err := e.Lexical(t.Context(), LexicalParams{Query: "   "})
	assert.Error(t, err)
}

func TestLexicalRejectsMalformedRegex(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, nil, nil)
	_, err := e.Lexical(t.Context(), LexicalParams{Query: "(unclosed", MatchType: MatchRegex})
	assert.Error(t, err)
}

func TestLexicalRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		seedDocument(t, s, "doc"+id, "chunk"+id, "shared keyword appears here")
	}

	e := New(s, nil, nil, nil)
	resp, err := e.Lexical(t.Context(), LexicalParams{Query: "shared keyword", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func vectorStoreWithEmbedding(t *testing.T, dims int, id string, vec []float32) store.VectorStore {
	t.Helper()
	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })
	require.NoError(t, vs.Add(t.Context(), []string{id}, [][]float32{vec}))
	return vs
}

func TestVectorSearchResolvesChunk(t *testing.T) {
	s := openTestStore(t)
	seedDocument(t, s, "doc1", "chunk1", "vector searchable content")

	vec := []float32{1, 0, 0, 0}
	embID := "emb1"
	require.NoError(t, s.InsertEmbedding(t.Context(), &store.Embedding{
		ID:       embID,
		ChunkID:  strPtr("chunk1"),
		Vector:   vec,
		Model:    "fake",
		TaskType: store.TaskQuery,
	}))

	vs := vectorStoreWithEmbedding(t, 4, embID, vec)
	embedder := &fakeEmbeddingClient{dims: 4, vector: vec}

	e := New(s, nil, vs, embedder)
	resp, err := e.Vector(t.Context(), VectorParams{Query: "vector searchable content"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "chunk1", resp.Results[0].ChunkID)
}

func TestVectorSearchRejectsEmptyQuery(t *testing.T) {
	s := openTestStore(t)
	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })

	e := New(s, nil, vs, &fakeEmbeddingClient{dims: 4})
	_, err = e.Vector(t.Context(), VectorParams{Query: " "})
	assert.Error(t, err)
}

func TestVectorSearchRequiresConfiguredIndex(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, nil, &fakeEmbeddingClient{dims: 4})
	_, err := e.Vector(t.Context(), VectorParams{Query: "anything"})
	assert.Error(t, err)
}

func TestVectorSearchAppliesSimilarityThreshold(t *testing.T) {
	s := openTestStore(t)
	seedDocument(t, s, "doc1", "chunk1", "low similarity content")

	vec := []float32{1, 0, 0, 0}
	embID := "emb1"
	require.NoError(t, s.InsertEmbedding(t.Context(), &store.Embedding{
		ID:       embID,
		ChunkID:  strPtr("chunk1"),
		Vector:   vec,
		Model:    "fake",
		TaskType: store.TaskQuery,
	}))
	vs := vectorStoreWithEmbedding(t, 4, embID, vec)

	queryVec := []float32{0, 1, 0, 0} // orthogonal: cosine similarity ~0
	embedder := &fakeEmbeddingClient{dims: 4, vector: queryVec}

	e := New(s, nil, vs, embedder)
	threshold := 0.99
	resp, err := e.Vector(t.Context(), VectorParams{Query: "anything", SimilarityThreshold: &threshold})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestHybridRejectsInvalidWeights(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, nil, nil)
	_, err := e.Hybrid(t.Context(), HybridParams{Query: "x", SemanticWeight: 0.3, KeywordWeight: 0.3})
	assert.Error(t, err)
}

func TestHybridFusesLexicalAndVectorHits(t *testing.T) {
	s := openTestStore(t)
	seedDocument(t, s, "doc1", "chunk1", "quarterly budget forecast details")

	vec := []float32{1, 0, 0, 0}
	embID := "emb1"
	require.NoError(t, s.InsertEmbedding(t.Context(), &store.Embedding{
		ID:       embID,
		ChunkID:  strPtr("chunk1"),
		Vector:   vec,
		Model:    "fake",
		TaskType: store.TaskQuery,
	}))
	vs := vectorStoreWithEmbedding(t, 4, embID, vec)
	lexical := store.NewSQLiteLexicalIndex(s.DB())
	embedder := &fakeEmbeddingClient{dims: 4, vector: vec}

	e := New(s, lexical, vs, embedder)
	resp, err := e.Hybrid(t.Context(), HybridParams{Query: "budget forecast", SemanticWeight: 0.5, KeywordWeight: 0.5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "chunk1", resp.Results[0].ChunkID)
}

func strPtr(s string) *string { return &s }
