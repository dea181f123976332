package search

import (
	"context"
	"sort"
	"strings"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
	"github.com/ptts-corpus/ptts/internal/store"
)

// candidateMultiplier expands the per-list candidate limit beyond the
// caller's requested limit so RRF has enough of both lists to fuse over
// before truncating to the final top-N.
const candidateMultiplier = 4

// Hybrid runs a keyword search and a vector search over an expanded
// candidate set, fuses them by Reciprocal Rank Fusion, and returns the
// top limit results ordered by fused score with a stable (document_id,
// chunk_index) tie-break.
func (e *Engine) Hybrid(ctx context.Context, p HybridParams) (*Response, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, ptserrors.Validation("query must not be empty or whitespace-only")
	}
	weights := Weights{Semantic: p.SemanticWeight, Keyword: p.KeywordWeight}
	if !weights.Valid() {
		return nil, ptserrors.Validation("semantic_weight + keyword_weight must equal 1.0")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	candidateLimit := limit * candidateMultiplier

	var keywordHits []*store.LexicalResult
	if e.lexical != nil {
		hits, err := e.lexical.Search(ctx, p.Query, candidateLimit)
		if err != nil {
			return nil, err
		}
		keywordHits = hits
	}

	var vectorHits []*store.VectorResult
	if e.vector != nil {
		vectors, err := e.embedding.Embed(ctx, []string{p.Query}, store.TaskQuery)
		if err != nil {
			return nil, err
		}
		if len(vectors) > 0 {
			hits, err := e.vector.Search(ctx, vectors[0], candidateLimit)
			if err != nil {
				return nil, err
			}
			vectorHits, err = e.embeddingHitsToChunkHits(ctx, hits)
			if err != nil {
				return nil, err
			}
		}
	}

	fused := e.fusion.Fuse(keywordHits, vectorHits, weights)

	type resolved struct {
		fused *FusedResult
		chunk *store.Chunk
		doc   *store.Document
	}

	docCache := make(map[string]*store.Document)
	items := make([]resolved, 0, len(fused))
	for _, f := range fused {
		c, err := e.store.GetChunk(ctx, f.ChunkID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		d, err := e.documentFor(ctx, docCache, c.DocumentID)
		if err != nil {
			return nil, err
		}
		items = append(items, resolved{fused: f, chunk: c, doc: d})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.fused.RRFScore != b.fused.RRFScore {
			return a.fused.RRFScore > b.fused.RRFScore
		}
		if a.chunk.DocumentID != b.chunk.DocumentID {
			return a.chunk.DocumentID < b.chunk.DocumentID
		}
		return a.chunk.ChunkIndex < b.chunk.ChunkIndex
	})

	if len(items) > limit {
		items = items[:limit]
	}

	results := make([]Result, 0, len(items))
	for _, it := range items {
		r := Result{
			ChunkID:        it.chunk.ID,
			DocumentID:     it.chunk.DocumentID,
			OriginalText:   it.chunk.Text,
			SourceFilePath: it.doc.FilePath,
			SourceFileName: it.doc.FileName,
			PageNumber:     it.chunk.PageNumber,
			PageRange:      it.chunk.PageRange,
			CharacterStart: it.chunk.CharacterStart,
			CharacterEnd:   it.chunk.CharacterEnd,
			ChunkIndex:     it.chunk.ChunkIndex,
			Score:          it.fused.RRFScore,
			MatchedTerms:   it.fused.MatchedTerms,
		}
		if p.IncludeProvenance {
			prov, err := e.provenanceChain(ctx, store.ProvChunk, it.chunk.ID)
			if err != nil {
				return nil, err
			}
			r.Provenance = prov
		}
		results = append(results, r)
	}

	return &Response{
		Query:          p.Query,
		SemanticWeight: p.SemanticWeight,
		KeywordWeight:  p.KeywordWeight,
		Results:        results,
		Total:          len(results),
	}, nil
}

// embeddingHitsToChunkHits rewrites vector hits keyed by embedding id into
// the chunk-id keyspace the keyword list uses, so Fuse can match entries
// across both lists. Hits over non-chunk embeddings (image/VLM
// descriptions) are dropped since hybrid search only returns chunk text.
func (e *Engine) embeddingHitsToChunkHits(ctx context.Context, hits []*store.VectorResult) ([]*store.VectorResult, error) {
	out := make([]*store.VectorResult, 0, len(hits))
	for _, h := range hits {
		emb, err := e.store.GetEmbedding(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		if emb == nil || emb.ChunkID == nil {
			continue
		}
		out = append(out, &store.VectorResult{ID: *emb.ChunkID, Distance: h.Distance, Score: h.Score})
	}
	return out, nil
}
