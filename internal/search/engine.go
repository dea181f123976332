package search

import (
	"context"

	"github.com/ptts-corpus/ptts/internal/collaborator"
	"github.com/ptts-corpus/ptts/internal/provenance"
	"github.com/ptts-corpus/ptts/internal/store"
)

// Engine runs the three search operations against a Store, a lexical
// index, a vector index, and the embedding collaborator used to embed
// incoming queries.
type Engine struct {
	store      *store.Store
	lexical    store.LexicalIndex
	vector     store.VectorStore
	embedding  collaborator.EmbeddingClient
	provenance *provenance.Engine
	fusion     *RRFFusion
}

// New returns a search Engine. lexical and vector may be nil, in which
// case the corresponding half of hybrid search contributes no results.
func New(s *store.Store, lexical store.LexicalIndex, vector store.VectorStore, embedding collaborator.EmbeddingClient) *Engine {
	return &Engine{
		store:      s,
		lexical:    lexical,
		vector:     vector,
		embedding:  embedding,
		provenance: provenance.New(s.DB()),
		fusion:     NewRRFFusion(),
	}
}

// provenanceChain resolves sourceID's owning provenance node (of type
// typ) and returns the ordered ancestor list from DOCUMENT down to it,
// for attaching to a result when include_provenance is requested.
func (e *Engine) provenanceChain(ctx context.Context, typ store.ProvenanceType, sourceID string) ([]ProvenanceNode, error) {
	node, err := e.provenance.GetBySourceID(ctx, typ, sourceID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}

	chain, err := e.provenance.GetChain(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		return nil, nil
	}

	nodes := append(append([]*store.ProvenanceRecord{}, chain.Ancestors...), chain.Current)
	out := make([]ProvenanceNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ProvenanceNode{
			ID:          n.ID,
			Type:        string(n.Type),
			Depth:       n.ChainDepth,
			Processor:   n.Processor,
			ContentHash: n.ContentHash,
			CreatedAt:   n.CreatedAt,
		})
	}
	return out, nil
}
