// Package index implements the Indexer: the canonical content-hash table
// for each provenance node type, and the lockstep maintenance of the
// lexical and vector indexes against their base tables.
package index

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ptts-corpus/ptts/internal/hashutil"
	"github.com/ptts-corpus/ptts/internal/store"
)

// DocumentInput is the raw file bytes backing a DOCUMENT node's hash.
type DocumentInput struct {
	FileBytes []byte
}

// OCRResultInput backs an OCR_RESULT node's hash.
type OCRResultInput struct {
	ExtractedText string
}

// ChunkInput backs a CHUNK node's hash (stored denormalized as
// chunks.text_hash).
type ChunkInput struct {
	Text string
}

// EmbeddingInput backs an EMBEDDING node's hash.
type EmbeddingInput struct {
	OriginalText string
}

// ImageInput backs an IMAGE node's hash.
type ImageInput struct {
	FileBytes []byte
}

// VLMDescriptionInput backs a VLM_DESCRIPTION node's hash.
type VLMDescriptionInput struct {
	Description string
}

// ExtractionInput backs an EXTRACTION node's hash.
type ExtractionInput struct {
	ExtractionJSON string
}

// FormFillInput backs a FORM_FILL node's hash.
type FormFillInput struct {
	FieldsFilled   []string
	FieldsNotFound []string
}

// ComparisonInput backs a COMPARISON node's hash.
type ComparisonInput struct {
	TextDiff       json.RawMessage
	StructuralDiff json.RawMessage
	EntityDiff     json.RawMessage
}

// ClusteringInput backs a CLUSTERING node's hash.
type ClusteringInput struct {
	CentroidJSON string
	RunID        string
}

// KnowledgeGraphBuildInput backs a build-level KNOWLEDGE_GRAPH node's hash.
type KnowledgeGraphBuildInput struct {
	EntityIDs []string // sorted by caller or here
}

// KnowledgeGraphNodeInput backs a per-node KNOWLEDGE_GRAPH node's hash.
type KnowledgeGraphNodeInput struct {
	NodeID        string
	CanonicalName string
}

// EntityExtractionInput backs an ENTITY_EXTRACTION node's hash. Either
// Entities or the DocumentID/Source pair is set, matching the processor's
// output shape.
type EntityExtractionInput struct {
	Entities       []string // deduped entity identifiers
	DocumentID     string
	Source         string
}

// CanonicalBytes returns the canonical byte form for a provenance node of
// type typ, per the authoritative table. The concrete input type must
// match typ or an error is returned; this is a schema-level bug if it
// occurs, since writer and verifier share this function.
func CanonicalBytes(typ store.ProvenanceType, input any) ([]byte, error) {
	switch typ {
	case store.ProvDocument:
		v, ok := input.(DocumentInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return v.FileBytes, nil

	case store.ProvOCRResult:
		v, ok := input.(OCRResultInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return []byte(v.ExtractedText), nil

	case store.ProvChunk:
		v, ok := input.(ChunkInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return []byte(v.Text), nil

	case store.ProvEmbedding:
		v, ok := input.(EmbeddingInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return []byte(v.OriginalText), nil

	case store.ProvImage:
		v, ok := input.(ImageInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return v.FileBytes, nil

	case store.ProvVLMDescription:
		v, ok := input.(VLMDescriptionInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return []byte(v.Description), nil

	case store.ProvExtraction:
		v, ok := input.(ExtractionInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return []byte(v.ExtractionJSON), nil

	case store.ProvFormFill:
		v, ok := input.(FormFillInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return marshalJSON(map[string]any{
			"fields_filled":    v.FieldsFilled,
			"fields_not_found": v.FieldsNotFound,
		})

	case store.ProvComparison:
		v, ok := input.(ComparisonInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return marshalJSON(map[string]any{
			"text_diff":       v.TextDiff,
			"structural_diff": v.StructuralDiff,
			"entity_diff":     v.EntityDiff,
		})

	case store.ProvClustering:
		v, ok := input.(ClusteringInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		return []byte(v.CentroidJSON + ":" + v.RunID), nil

	case store.ProvKnowledgeGraph:
		switch v := input.(type) {
		case KnowledgeGraphBuildInput:
			ids := append([]string(nil), v.EntityIDs...)
			sort.Strings(ids)
			return marshalJSON(ids)
		case KnowledgeGraphNodeInput:
			return marshalJSON(map[string]any{
				"node_id":        v.NodeID,
				"canonical_name": v.CanonicalName,
			})
		default:
			return nil, typeMismatch(typ, input)
		}

	case store.ProvEntityExtract:
		v, ok := input.(EntityExtractionInput)
		if !ok {
			return nil, typeMismatch(typ, input)
		}
		if v.Entities != nil {
			return marshalJSON(v.Entities)
		}
		return marshalJSON(map[string]any{
			"document_id": v.DocumentID,
			"source":      v.Source,
		})

	default:
		return nil, fmt.Errorf("index: no canonical form registered for provenance type %q", typ)
	}
}

// Hash computes the canonical hash of a provenance node of type typ over
// input, in the "sha256:<hex>" form shared by writer and verifier.
func Hash(typ store.ProvenanceType, input any) (string, error) {
	b, err := CanonicalBytes(typ, input)
	if err != nil {
		return "", err
	}
	return hashutil.ComputeHash(b), nil
}

func typeMismatch(typ store.ProvenanceType, input any) error {
	return fmt.Errorf("index: canonical input %T does not match provenance type %q", input, typ)
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
