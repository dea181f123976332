package search

import (
	"context"
	"regexp"
	"strings"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
	"github.com/ptts-corpus/ptts/internal/store"
)

// Lexical scans every chunk's text for query using match_type's algorithm
// and returns hits in first-occurrence order, each scored by the number
// of matches found.
func (e *Engine) Lexical(ctx context.Context, p LexicalParams) (*Response, error) {
	query := p.Query
	if strings.TrimSpace(query) == "" {
		return nil, ptserrors.Validation("query must not be empty or whitespace-only")
	}
	if len(query) > MaxQueryLength {
		return nil, ptserrors.Validation("query exceeds maximum length")
	}

	matchType := p.MatchType
	if matchType == "" {
		matchType = MatchFuzzy
	}

	var matcher func(text string) ([]string, bool)
	switch matchType {
	case MatchExact:
		matcher = func(text string) ([]string, bool) {
			if strings.Contains(text, query) {
				return []string{query}, true
			}
			return nil, false
		}
	case MatchFuzzy:
		lowerQuery := strings.ToLower(query)
		matcher = func(text string) ([]string, bool) {
			if strings.Contains(strings.ToLower(text), lowerQuery) {
				return []string{query}, true
			}
			return nil, false
		}
	case MatchRegex:
		re, err := regexp.Compile("(?i)" + query)
		if err != nil {
			return nil, ptserrors.Validation("malformed regex: " + err.Error())
		}
		matcher = func(text string) ([]string, bool) {
			m := re.FindAllString(text, -1)
			if len(m) == 0 {
				return nil, false
			}
			return m, true
		}
	default:
		return nil, ptserrors.Validation("unknown match_type: " + string(matchType))
	}

	chunks, err := e.store.ListAllChunks(ctx)
	if err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	docCache := make(map[string]*store.Document)
	var results []Result
	for _, c := range chunks {
		matched, ok := matcher(c.Text)
		if !ok {
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
			Score:          float64(len(matched)),
			MatchedTerms:   matched,
		}
		if p.IncludeProvenance {
			prov, err := e.provenanceChain(ctx, store.ProvChunk, c.ID)
			if err != nil {
				return nil, err
			}
			r.Provenance = prov
		}

		results = append(results, r)
		if len(results) >= limit {
			break
		}
	}

	return &Response{
		Query:     query,
		MatchType: matchType,
		Results:   results,
		Total:     len(results),
	}, nil
}

func (e *Engine) documentFor(ctx context.Context, cache map[string]*store.Document, id string) (*store.Document, error) {
	if d, ok := cache[id]; ok {
		return d, nil
	}
	d, err := e.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ptserrors.NotFound("document", id)
	}
	cache[id] = d
	return d, nil
}
