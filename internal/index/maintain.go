package index

import (
	"context"
	"fmt"

	"github.com/ptts-corpus/ptts/internal/store"
)

// Maintainer keeps a pluggable LexicalIndex and VectorStore in lockstep
// with the database of record for backends that, unlike chunks_fts, have
// no trigger mechanism of their own (the Bleve alternate and the HNSW
// vector index).
type Maintainer struct {
	lexical store.LexicalIndex
	vector  store.VectorStore
}

// NewMaintainer returns a Maintainer over the given backends. Either may
// be nil if that index is not configured.
func NewMaintainer(lexical store.LexicalIndex, vector store.VectorStore) *Maintainer {
	return &Maintainer{lexical: lexical, vector: vector}
}

// IndexChunk mirrors a newly inserted chunk into the lexical backend.
func (m *Maintainer) IndexChunk(ctx context.Context, chunkID, text string) error {
	if m.lexical == nil {
		return nil
	}
	return m.lexical.Index(ctx, []*store.LexicalDoc{{ID: chunkID, Content: text}})
}

// RemoveChunk tombstones a deleted chunk in the lexical backend.
func (m *Maintainer) RemoveChunk(ctx context.Context, chunkID string) error {
	if m.lexical == nil {
		return nil
	}
	return m.lexical.Delete(ctx, []string{chunkID})
}

// IndexEmbedding inserts a completed embedding's vector into the vector
// index, keyed by embedding id, only after the embedding's row commits
// (invariant: embedding_status = complete must coexist with a vector
// entry, never before).
func (m *Maintainer) IndexEmbedding(ctx context.Context, embeddingID string, vector []float32) error {
	if m.vector == nil {
		return nil
	}
	return m.vector.Add(ctx, []string{embeddingID}, [][]float32{vector})
}

// RemoveEmbedding removes a deleted embedding's vector index entry.
func (m *Maintainer) RemoveEmbedding(ctx context.Context, embeddingID string) error {
	if m.vector == nil {
		return nil
	}
	return m.vector.Delete(ctx, []string{embeddingID})
}

// Rebuild repopulates both pluggable backends from the database of
// record: every chunk's text into the lexical index, every embedding's
// vector into the vector index. Used after restoring a database whose
// sidecar index files were lost, or when switching lexical backends.
func Rebuild(ctx context.Context, s *store.Store, m *Maintainer) error {
	if m.lexical != nil {
		rows, err := s.ListDocuments(ctx, store.DocumentFilter{})
		if err != nil {
			return fmt.Errorf("index: rebuild: list documents: %w", err)
		}
		var docs []*store.LexicalDoc
		for _, d := range rows {
			chunks, err := s.ListChunksByDocument(ctx, d.ID)
			if err != nil {
				return fmt.Errorf("index: rebuild: list chunks for %s: %w", d.ID, err)
			}
			for _, c := range chunks {
				docs = append(docs, &store.LexicalDoc{ID: c.ID, Content: c.Text})
			}
		}
		if len(docs) > 0 {
			if err := m.lexical.Index(ctx, docs); err != nil {
				return fmt.Errorf("index: rebuild: reindex chunks: %w", err)
			}
		}
	}

	if m.vector != nil {
		embeddings, err := s.ListAllEmbeddings(ctx)
		if err != nil {
			return fmt.Errorf("index: rebuild: list embeddings: %w", err)
		}
		ids := make([]string, 0, len(embeddings))
		vectors := make([][]float32, 0, len(embeddings))
		for _, e := range embeddings {
			ids = append(ids, e.ID)
			vectors = append(vectors, e.Vector)
		}
		if len(ids) > 0 {
			if err := m.vector.Add(ctx, ids, vectors); err != nil {
				return fmt.Errorf("index: rebuild: reindex embeddings: %w", err)
			}
		}
	}

	return nil
}
