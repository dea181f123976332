// Package verify implements the Verifier: read-only checks of content
// hashes, provenance chains, and whole-database consistency. No
// operation in this package mutates state.
package verify

import (
	"context"
	"fmt"
	"os"

	"github.com/ptts-corpus/ptts/internal/hashutil"
	"github.com/ptts-corpus/ptts/internal/index"
	"github.com/ptts-corpus/ptts/internal/provenance"
	"github.com/ptts-corpus/ptts/internal/store"
)

// HashCheck is the result of verifying one provenance node's content hash.
type HashCheck struct {
	Valid       bool
	Expected    string
	Computed    string
	FormatValid bool
}

// Verifier runs read-only checks against a Store and its provenance
// engine. resolveInput loads the input a node's canonical form is
// computed over (a file on disk, a stored column); the Verifier reaches
// outside the database only to read document and image files.
type Verifier struct {
	store      *store.Store
	provenance *provenance.Engine
}

// New returns a Verifier over s.
func New(s *store.Store) *Verifier {
	return &Verifier{store: s, provenance: provenance.New(s.DB())}
}

// VerifyContentHash recomputes a provenance node's content_hash from its
// source artifact and compares it to the stored value.
func (v *Verifier) VerifyContentHash(ctx context.Context, provenanceID string) (*HashCheck, error) {
	node, err := v.provenance.Get(ctx, provenanceID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("verify: provenance node %s not found", provenanceID)
	}

	input, err := v.resolveInput(ctx, node)
	if err != nil {
		return nil, err
	}

	computed, err := index.Hash(node.Type, input)
	if err != nil {
		return nil, err
	}

	return &HashCheck{
		Valid:       computed == node.ContentHash,
		Expected:    node.ContentHash,
		Computed:    computed,
		FormatValid: hashutil.IsValidHashFormat(node.ContentHash),
	}, nil
}

// resolveInput loads the canonical-form input for a provenance node by
// following its source_id/source_path back to the owning row.
func (v *Verifier) resolveInput(ctx context.Context, node *store.ProvenanceRecord) (any, error) {
	switch node.Type {
	case store.ProvOCRResult:
		r, err := v.store.GetOCRResult(ctx, ocrIDFromSource(node))
		if err != nil || r == nil {
			return nil, contentNotFound(node)
		}
		return index.OCRResultInput{ExtractedText: r.ExtractedText}, nil

	case store.ProvChunk:
		c, err := v.store.GetChunk(ctx, ocrIDFromSource(node))
		if err != nil || c == nil {
			return nil, contentNotFound(node)
		}
		return index.ChunkInput{Text: c.Text}, nil

	case store.ProvEmbedding:
		e, err := v.store.GetEmbedding(ctx, ocrIDFromSource(node))
		if err != nil || e == nil {
			return nil, contentNotFound(node)
		}
		return index.EmbeddingInput{OriginalText: e.OriginalText}, nil

	case store.ProvVLMDescription:
		img, err := v.store.GetImage(ctx, ocrIDFromSource(node))
		if err != nil || img == nil || img.VisionDescription == nil {
			return nil, contentNotFound(node)
		}
		return index.VLMDescriptionInput{Description: *img.VisionDescription}, nil

	case store.ProvExtraction:
		exts, err := v.store.ListExtractionsByDocument(ctx, node.RootDocumentID)
		if err != nil {
			return nil, err
		}
		for _, e := range exts {
			if e.ID == ocrIDFromSource(node) {
				return index.ExtractionInput{ExtractionJSON: e.ExtractionJSON}, nil
			}
		}
		return nil, contentNotFound(node)

	case store.ProvDocument:
		d, err := v.store.GetDocument(ctx, node.RootDocumentID)
		if err != nil || d == nil {
			return nil, contentNotFound(node)
		}
		b, err := readFileBytes(d.FilePath)
		if err != nil {
			return nil, fileNotFound(node, d.FilePath)
		}
		return index.DocumentInput{FileBytes: b}, nil

	case store.ProvImage:
		img, err := v.store.GetImage(ctx, ocrIDFromSource(node))
		if err != nil || img == nil {
			return nil, contentNotFound(node)
		}
		b, err := readFileBytes(img.ExtractedPath)
		if err != nil {
			return nil, fileNotFound(node, img.ExtractedPath)
		}
		return index.ImageInput{FileBytes: b}, nil

	default:
		return nil, fmt.Errorf("verify: %w: no resolver registered for provenance type %q", errContentNotFound, node.Type)
	}
}

func ocrIDFromSource(node *store.ProvenanceRecord) string {
	if node.SourceID != nil {
		return *node.SourceID
	}
	return ""
}

var errContentNotFound = fmt.Errorf("CONTENT_NOT_FOUND")
var errFileNotFound = fmt.Errorf("FILE_NOT_FOUND")

func contentNotFound(node *store.ProvenanceRecord) error {
	return fmt.Errorf("%w: source artifact for provenance node %s (%s) is missing", errContentNotFound, node.ID, node.Type)
}

func fileNotFound(node *store.ProvenanceRecord, path string) error {
	return fmt.Errorf("%w: %s", errFileNotFound, path)
}

// ChainCheck is the result of verifying every node from one node to its
// root document.
type ChainCheck struct {
	ChainIntact bool
	Verified    int
	Failed      []FailedItem
}

// FailedItem describes one failed verification, bounded to the first N
// by the caller.
type FailedItem struct {
	ProvenanceID string
	Reason       string
}

// VerifyChain checks parent/depth consistency (invariants 3-4) and
// recomputes content hashes for every node from provenanceID to its
// root, per invariant 2.
func (v *Verifier) VerifyChain(ctx context.Context, provenanceID string, maxFailedItems int) (*ChainCheck, error) {
	chain, err := v.provenance.GetChain(ctx, provenanceID)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		return nil, fmt.Errorf("verify: provenance node %s not found", provenanceID)
	}

	nodes := append(append([]*store.ProvenanceRecord{}, chain.Ancestors...), chain.Current)

	check := &ChainCheck{ChainIntact: chain.IsComplete}
	for i, node := range nodes {
		if i > 0 {
			parent := nodes[i-1]
			if node.ParentID == nil || *node.ParentID != parent.ID || parent.ChainDepth != node.ChainDepth-1 {
				check.ChainIntact = false
				check.Failed = appendBounded(check.Failed, FailedItem{ProvenanceID: node.ID, Reason: "parent/chain_depth mismatch"}, maxFailedItems)
				continue
			}
		}

		hc, err := v.VerifyContentHash(ctx, node.ID)
		if err != nil {
			check.Failed = appendBounded(check.Failed, FailedItem{ProvenanceID: node.ID, Reason: err.Error()}, maxFailedItems)
			continue
		}
		if !hc.Valid {
			check.Failed = appendBounded(check.Failed, FailedItem{ProvenanceID: node.ID, Reason: "content_hash mismatch"}, maxFailedItems)
			continue
		}
		check.Verified++
	}

	return check, nil
}

func appendBounded(items []FailedItem, item FailedItem, max int) []FailedItem {
	if max > 0 && len(items) >= max {
		return items
	}
	return append(items, item)
}

// DatabaseReport aggregates verification results across every provenance
// node in the database.
type DatabaseReport struct {
	ByType      map[store.ProvenanceType]*TypeCount
	ChainErrors []FailedItem
	Overflow    int
}

// TypeCount tallies verified/failed nodes of one provenance type.
type TypeCount struct {
	Total    int
	Verified int
	Failed   []FailedItem
}

// VerifyDatabase iterates every provenance node, verifying content
// hashes per type, and separately scans for parent/depth inconsistencies.
func (v *Verifier) VerifyDatabase(ctx context.Context, maxFailedItemsPerType int) (*DatabaseReport, error) {
	// Walk every document's subtree; a corpus-wide provenance listing is
	// just the union of get_by_root over every document.
	docs, err := v.store.ListDocuments(ctx, store.DocumentFilter{})
	if err != nil {
		return nil, err
	}

	report := &DatabaseReport{ByType: make(map[store.ProvenanceType]*TypeCount)}

	for _, d := range docs {
		nodes, err := v.provenance.GetByRoot(ctx, d.ID)
		if err != nil {
			return nil, err
		}

		byID := make(map[string]*store.ProvenanceRecord, len(nodes))
		for _, n := range nodes {
			byID[n.ID] = n
		}

		for _, n := range nodes {
			tc := report.ByType[n.Type]
			if tc == nil {
				tc = &TypeCount{}
				report.ByType[n.Type] = tc
			}
			tc.Total++

			if n.ParentID != nil {
				parent := byID[*n.ParentID]
				if parent == nil || parent.ChainDepth != n.ChainDepth-1 {
					item := FailedItem{ProvenanceID: n.ID, Reason: "parent/chain_depth mismatch"}
					if maxFailedItemsPerType > 0 && len(report.ChainErrors) >= maxFailedItemsPerType {
						report.Overflow++
					} else {
						report.ChainErrors = append(report.ChainErrors, item)
					}
				}
			}

			hc, err := v.VerifyContentHash(ctx, n.ID)
			if err != nil || !hc.Valid {
				reason := "content_hash mismatch"
				if err != nil {
					reason = err.Error()
				}
				if maxFailedItemsPerType > 0 && len(tc.Failed) >= maxFailedItemsPerType {
					report.Overflow++
				} else {
					tc.Failed = append(tc.Failed, FailedItem{ProvenanceID: n.ID, Reason: reason})
				}
				continue
			}
			tc.Verified++
		}
	}

	return report, nil
}

// VerifyFileIntegrity rehashes a document's source file and compares it
// to the stored file_hash.
func (v *Verifier) VerifyFileIntegrity(ctx context.Context, documentID string) (*HashCheck, error) {
	d, err := v.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("verify: document %s not found", documentID)
	}

	computed, err := hashutil.HashFile(d.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errFileNotFound, d.FilePath)
	}

	return &HashCheck{
		Valid:       computed == d.FileHash,
		Expected:    d.FileHash,
		Computed:    computed,
		FormatValid: hashutil.IsValidHashFormat(d.FileHash),
	}, nil
}

func readFileBytes(path string) ([]byte, error) {
	return os.ReadFile(path)
}
