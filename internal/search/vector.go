package search

import (
	"context"
	"strings"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
	"github.com/ptts-corpus/ptts/internal/store"
)

// Vector embeds the query via the embedding collaborator and returns the
// nearest-neighbor chunks over the vector index, filtered by
// similarity_threshold if given. Hits on image embeddings are skipped.
func (e *Engine) Vector(ctx context.Context, p VectorParams) (*Response, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, ptserrors.Validation("query must not be empty or whitespace-only")
	}
	if e.vector == nil {
		return nil, ptserrors.New(ptserrors.KindExternalUnavailable, "no vector index configured", nil)
	}

	vectors, err := e.embedding.Embed(ctx, []string{p.Query}, store.TaskQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ptserrors.Internal("embedding collaborator returned no vector for query", nil)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	hits, err := e.vector.Search(ctx, vectors[0], limit)
	if err != nil {
		return nil, err
	}

	results, err := e.resolveVectorHits(ctx, hits, p.SimilarityThreshold, p.IncludeProvenance)
	if err != nil {
		return nil, err
	}

	return &Response{
		Query:   p.Query,
		Results: results,
		Total:   len(results),
	}, nil
}

// resolveVectorHits maps vector hits (keyed by embedding id) back to the
// originating chunk, applying the similarity threshold and attaching
// provenance if requested.
func (e *Engine) resolveVectorHits(ctx context.Context, hits []*store.VectorResult, threshold *float64, includeProvenance bool) ([]Result, error) {
	docCache := make(map[string]*store.Document)
	var results []Result

	for _, h := range hits {
		if threshold != nil && float64(h.Score) < *threshold {
			continue
		}

		emb, err := e.store.GetEmbedding(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		if emb == nil || emb.ChunkID == nil {
			// Embedding over an image/VLM description rather than a chunk;
			// not a text-search result in this operation.
			continue
		}

		c, err := e.store.GetChunk(ctx, *emb.ChunkID)
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

		r := Result{
			ChunkID:        c.ID,
			DocumentID:     c.DocumentID,
			OriginalText:   c.Text,
			SourceFilePath: d.FilePath,
			SourceFileName: d.FileName,
			PageNumber:     c.PageNumber,
			PageRange:      c.PageRange,
			CharacterStart: c.CharacterStart,
			CharacterEnd:   c.CharacterEnd,
			ChunkIndex:     c.ChunkIndex,
			Score:          float64(h.Score),
		}
		if includeProvenance {
			prov, err := e.provenanceChain(ctx, store.ProvChunk, c.ID)
			if err != nil {
				return nil, err
			}
			r.Provenance = prov
		}

		results = append(results, r)
	}

	return results, nil
}
