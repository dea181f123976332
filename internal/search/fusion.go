package search

import (
	"github.com/ptts-corpus/ptts/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// Weights holds the semantic/keyword split for hybrid fusion. The two
// must sum to 1.0 within weightEpsilon.
type Weights struct {
	Semantic float64
	Keyword  float64
}

const weightEpsilon = 1e-9

// Valid reports whether w sums to 1.0 within epsilon.
func (w Weights) Valid() bool {
	sum := w.Semantic + w.Keyword
	diff := sum - 1.0
	if diff < 0 {
		diff = -diff
	}
	return diff <= weightEpsilon
}

// FusedResult is one result after RRF fusion of a keyword list and a
// vector list.
type FusedResult struct {
	ChunkID      string
	RRFScore     float64
	KeywordScore float64
	KeywordRank  int // 1-indexed, 0 if absent
	VecScore     float64
	VecRank      int // 1-indexed, 0 if absent
	InBothLists  bool
	MatchedTerms []string
}

// RRFFusion combines a keyword-ranked list and a vector-ranked list using
// Reciprocal Rank Fusion.
//
// Algorithm: RRF_score(d) = Σ weight_i / (k + rank_i)
type RRFFusion struct {
	K int
}

// NewRRFFusion returns an RRFFusion with the default smoothing constant.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// Fuse combines keyword and vector results using Reciprocal Rank Fusion
// and returns one FusedResult per distinct chunk id, normalized into
// 0-1 by the top score, in no particular order — the caller resolves
// each chunk's (document_id, chunk_index) and sorts for the spec's
// exact tie-break (RRFScore desc, then document_id asc, chunk_index asc).
//
// Documents appearing in only one list contribute the other source's
// weight at missing_rank = max(len(keyword), len(vec)) + 1.
func (f *RRFFusion) Fuse(keyword []*store.LexicalResult, vec []*store.VectorResult, weights Weights) []*FusedResult {
	if len(keyword) == 0 && len(vec) == 0 {
		return []*FusedResult{}
	}

	capacity := len(keyword) + len(vec)
	scores := make(map[string]*FusedResult, capacity)

	for rank, r := range keyword {
		result := f.getOrCreate(scores, r.DocID)
		result.KeywordScore = r.Score
		result.KeywordRank = rank + 1
		result.MatchedTerms = r.MatchedTerms
		result.RRFScore += weights.Keyword / float64(f.K+rank+1)
	}

	for rank, r := range vec {
		result := f.getOrCreate(scores, r.ID)
		result.VecScore = float64(r.Score)
		result.VecRank = rank + 1
		result.RRFScore += weights.Semantic / float64(f.K+rank+1)

		if result.KeywordRank > 0 {
			result.InBothLists = true
		}
	}

	missingRank := f.calculateMissingRank(len(keyword), len(vec))
	var maxScore float64
	for _, r := range scores {
		if r.KeywordRank == 0 && r.VecRank > 0 {
			r.RRFScore += weights.Keyword / float64(f.K+missingRank)
		}
		if r.VecRank == 0 && r.KeywordRank > 0 {
			r.RRFScore += weights.Semantic / float64(f.K+missingRank)
		}
		if r.RRFScore > maxScore {
			maxScore = r.RRFScore
		}
	}

	results := make([]*FusedResult, 0, len(scores))
	for _, r := range scores {
		if maxScore > 0 {
			r.RRFScore = r.RRFScore / maxScore
		}
		results = append(results, r)
	}
	return results
}

func (f *RRFFusion) getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{ChunkID: id}
	m[id] = r
	return r
}

func (f *RRFFusion) calculateMissingRank(keywordLen, vecLen int) int {
	if keywordLen > vecLen {
		return keywordLen + 1
	}
	return vecLen + 1
}
