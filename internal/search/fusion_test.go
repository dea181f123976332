package search

import (
	"testing"

	"github.com/ptts-corpus/ptts/internal/store"
)

func TestWeightsValid(t *testing.T) {
	cases := []struct {
		w    Weights
		want bool
	}{
		{Weights{Semantic: 0.5, Keyword: 0.5}, true},
		{Weights{Semantic: 0.7, Keyword: 0.3}, true},
		{Weights{Semantic: 1, Keyword: 0}, true},
		{Weights{Semantic: 0.6, Keyword: 0.5}, false},
		{Weights{Semantic: 0.3, Keyword: 0.3}, false},
	}
	for _, c := range cases {
		if got := c.w.Valid(); got != c.want {
			t.Errorf("Weights{%v,%v}.Valid() = %v, want %v", c.w.Semantic, c.w.Keyword, got, c.want)
		}
	}
}

func TestFuseEmptyInputs(t *testing.T) {
	f := NewRRFFusion()
	got := f.Fuse(nil, nil, Weights{Semantic: 0.5, Keyword: 0.5})
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestFuseBothListsBoostsSharedChunk(t *testing.T) {
	f := NewRRFFusion()
	keyword := []*store.LexicalResult{
		{DocID: "chunk-a", Score: 10},
		{DocID: "chunk-b", Score: 5},
	}
	vec := []*store.VectorResult{
		{ID: "chunk-a", Score: 0.9},
		{ID: "chunk-c", Score: 0.8},
	}

	results := f.Fuse(keyword, vec, Weights{Semantic: 0.5, Keyword: 0.5})

	byID := make(map[string]*FusedResult, len(results))
	for _, r := range results {
		byID[r.ChunkID] = r
	}

	if !byID["chunk-a"].InBothLists {
		t.Fatal("chunk-a appears in both lists and should be marked InBothLists")
	}
	if byID["chunk-b"].InBothLists || byID["chunk-c"].InBothLists {
		t.Fatal("chunk-b/chunk-c appear in only one list")
	}
	if byID["chunk-a"].RRFScore <= byID["chunk-b"].RRFScore {
		t.Fatalf("chunk-a (both lists, rank 1) should outscore chunk-b (keyword rank 2), got a=%v b=%v",
			byID["chunk-a"].RRFScore, byID["chunk-b"].RRFScore)
	}
}

func TestFuseNormalizesToUnitMax(t *testing.T) {
	f := NewRRFFusion()
	keyword := []*store.LexicalResult{{DocID: "x", Score: 1}}
	results := f.Fuse(keyword, nil, Weights{Semantic: 0.5, Keyword: 0.5})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].RRFScore != 1.0 {
		t.Fatalf("sole result should normalize to 1.0, got %v", results[0].RRFScore)
	}
}

func TestFuseMissingRankPenalizesAbsentSource(t *testing.T) {
	f := NewRRFFusion()
	keyword := []*store.LexicalResult{
		{DocID: "a", Score: 10},
		{DocID: "b", Score: 9},
		{DocID: "c", Score: 8},
	}
	// "only-vec" appears only in the vector list at rank 1; its keyword
	// contribution should use missing_rank = len(keyword)+1 = 4, not rank 0.
	vec := []*store.VectorResult{{ID: "only-vec", Score: 0.99}}

	results := f.Fuse(keyword, vec, Weights{Semantic: 0.5, Keyword: 0.5})
	var onlyVec *FusedResult
	for _, r := range results {
		if r.ChunkID == "only-vec" {
			onlyVec = r
		}
	}
	if onlyVec == nil {
		t.Fatal("expected only-vec in fused results")
	}
	if onlyVec.KeywordRank != 0 {
		t.Fatalf("only-vec should have no keyword rank, got %d", onlyVec.KeywordRank)
	}
	if onlyVec.RRFScore <= 0 {
		t.Fatalf("only-vec should still receive a keyword-side contribution at missing_rank, got %v", onlyVec.RRFScore)
	}
}
