// Package store implements the persistent provenance DAG: documents, OCR
// results, chunks, embeddings, images, and the provenance nodes binding them
// together, plus the lexical and vector indexes kept in lockstep with it.
package store

import (
	"context"
	"fmt"
	"time"
)

// CurrentSchemaVersion is the schema version this build knows how to
// produce and read. The Migrator refuses to open a database whose stored
// version is greater than this.
const CurrentSchemaVersion = 1

// DocumentStatus is the processing lifecycle of a Document.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentComplete   DocumentStatus = "complete"
	DocumentFailed     DocumentStatus = "failed"
)

// EmbeddingStatus is the per-chunk embedding lifecycle.
type EmbeddingStatus string

const (
	EmbeddingPending  EmbeddingStatus = "pending"
	EmbeddingComplete EmbeddingStatus = "complete"
	EmbeddingFailed   EmbeddingStatus = "failed"
)

// VisionStatus is the per-image vision-description lifecycle.
type VisionStatus string

const (
	VisionPending    VisionStatus = "pending"
	VisionProcessing VisionStatus = "processing"
	VisionComplete   VisionStatus = "complete"
	VisionFailed     VisionStatus = "failed"
)

// OCRMode selects the OCR collaborator's speed/accuracy tradeoff.
type OCRMode string

const (
	OCRModeFast     OCRMode = "fast"
	OCRModeBalanced OCRMode = "balanced"
	OCRModeAccurate OCRMode = "accurate"
)

// TaskType distinguishes embeddings computed over stored content from
// embeddings computed over a transient search query.
type TaskType string

const (
	TaskDocument TaskType = "document"
	TaskQuery    TaskType = "query"
)

// ProvenanceType enumerates the node kinds that can appear in the DAG.
type ProvenanceType string

const (
	ProvDocument       ProvenanceType = "DOCUMENT"
	ProvOCRResult      ProvenanceType = "OCR_RESULT"
	ProvChunk          ProvenanceType = "CHUNK"
	ProvImage          ProvenanceType = "IMAGE"
	ProvVLMDescription ProvenanceType = "VLM_DESCRIPTION"
	ProvEmbedding      ProvenanceType = "EMBEDDING"
	ProvExtraction     ProvenanceType = "EXTRACTION"
	ProvFormFill       ProvenanceType = "FORM_FILL"
	ProvComparison     ProvenanceType = "COMPARISON"
	ProvClustering     ProvenanceType = "CLUSTERING"
	ProvKnowledgeGraph ProvenanceType = "KNOWLEDGE_GRAPH"
	ProvEntityExtract  ProvenanceType = "ENTITY_EXTRACTION"
)

// FixedChainDepths gives the expected chain_depth for provenance types whose
// depth does not depend on context. EMBEDDING can be depth 3 (over a chunk,
// image caption, or extraction) or depth 4 (over a VLM description);
// callers compute that case explicitly.
var FixedChainDepths = map[ProvenanceType]int{
	ProvDocument:       0,
	ProvOCRResult:      1,
	ProvChunk:          2,
	ProvImage:          2,
	ProvExtraction:     2,
	ProvVLMDescription: 3,
}

// Document is one ingested source file and the root of its provenance
// subtree.
type Document struct {
	ID               string
	FilePath         string
	FileName         string
	FileSize         int64
	FileType         string
	FileHash         string
	Status           DocumentStatus
	PageCount        *int
	Title            *string
	Author           *string
	Subject          *string
	RootProvenanceID string
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OCRResult is the textual output of running OCR over a Document.
type OCRResult struct {
	ID             string
	DocumentID     string
	ExtractedText  string
	TextLength     int
	ExternalReqID  string
	Mode           OCRMode
	PageCount      int
	QualityScore   *float64
	Cost           *float64
	ContentHash    string
	DurationMS     int64
	StructuredJSON *string
	ExtrasJSON     *string
	CreatedAt      time.Time
}

// Chunk is one sliding-window span of an OCRResult's text.
type Chunk struct {
	ID              string
	DocumentID      string
	OCRResultID     string
	Text            string
	TextHash        string
	ChunkIndex      int
	CharacterStart  int
	CharacterEnd    int
	PageNumber      *int
	PageRange       *string
	OverlapPrevious int
	OverlapNext     int
	EmbeddingStatus EmbeddingStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Embedding is a fixed-dimension vector over a piece of text, denormalized
// with enough context to answer a search query without further joins.
//
// Exactly one of ChunkID, ImageID, ExtractionID is non-null (invariant 8).
type Embedding struct {
	ID             string
	ChunkID        *string
	ImageID        *string
	ExtractionID   *string
	Vector         []float32
	OriginalText   string
	SourceFilePath string
	SourceFileName string
	SourceFileHash string
	ChunkIndex     int
	TotalChunks    int
	PageNumber     *int
	PageRange      *string
	CharacterStart int
	CharacterEnd   int
	Model          string
	ModelVersion   string
	TaskType       TaskType
	InferenceMode  string
	CreatedAt      time.Time
}

// Image is one figure extracted from a page during OCR.
type Image struct {
	ID                string
	DocumentID        string
	OCRResultID       string
	PageNumber        int
	BBoxX, BBoxY      float64
	BBoxW, BBoxH      float64
	ImageIndex        int
	Format            string
	Width, Height     int
	ExtractedPath     string
	FileSize          int64
	VisionStatus      VisionStatus
	VisionDescription *string
	StructuredJSON    *string
	Confidence        *float64
	TokensUsed        *int
	ContentHash       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProvenanceRecord is a typed node in the content-addressed DAG.
type ProvenanceRecord struct {
	ID                 string
	Type               ProvenanceType
	SourceType         string
	SourcePath         *string
	SourceID           *string
	RootDocumentID     string
	LocationJSON       *string
	ContentHash        string
	InputHash          *string
	FileHash           *string
	Processor          string
	ProcessorVersion   string
	ProcessingParams   *string
	ProcessingDuration *int64
	QualityScore       *float64
	ParentID           *string
	ParentIDsJSON      string
	ChainDepth         int
	ChainPathJSON      string
	CreatedAt          time.Time
}

// Chain is the result of walking a provenance node back to its root.
type Chain struct {
	Current    *ProvenanceRecord
	Ancestors  []*ProvenanceRecord // ascending by depth, root first
	IsComplete bool
}

// DocumentFilter narrows ListDocuments.
type DocumentFilter struct {
	Status *DocumentStatus
	Limit  int
	Offset int
}

// Stats summarizes the corpus for a single database.
type Stats struct {
	TotalDocuments  int
	TotalChunks     int
	TotalEmbeddings int
	TotalImages     int
	ByStatus        map[DocumentStatus]int
}

// LexicalDoc is a unit indexed by a pluggable lexical backend: a chunk id
// paired with the chunk text.
type LexicalDoc struct {
	ID      string
	Content string
}

// LexicalResult is a single lexical search hit.
type LexicalResult struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// LexicalStats describes a lexical index's contents.
type LexicalStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// LexicalIndex is a pluggable keyword/full-text search backend over chunk
// text. The SQLite-native backend is maintained by triggers on the chunks
// table; the Bleve backend (when configured as the alternate) is maintained
// by explicit calls from the same write path.
type LexicalIndex interface {
	Index(ctx context.Context, docs []*LexicalDoc) error
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)
	Delete(ctx context.Context, docIDs []string) error
	AllIDs() ([]string, error)
	Stats() *LexicalStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// LexicalConfig configures a LexicalIndex implementation.
type LexicalConfig struct {
	K1             float64
	B              float64
	StopWords      []string
	MinTokenLength int
}

// DefaultLexicalConfig returns default lexical-index tuning.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords is a small set of English function words, used as
// DefaultLexicalConfig's StopWords. The Bleve backend tokenizes with its
// own English analyzer and does not read this list.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"in", "is", "it", "of", "on", "or", "that", "the", "to", "was", "will", "with",
}

// VectorResult is a single nearest-neighbor search hit.
type VectorResult struct {
	ID       string  // embedding id
	Distance float32 // lower is more similar
	Score    float32 // normalized similarity (0-1)
}

// VectorStoreConfig configures the vector index.
type VectorStoreConfig struct {
	Dimensions     int
	Quantization   string // "f32", "f16"; recorded only, HNSWStore keeps float32 vectors
	Metric         string // "cos", "l2"
	M              int
	EfConstruction int // not read by HNSWStore
	EfSearch       int
}

// DefaultVectorStoreConfig returns sensible HNSW defaults for the given
// embedding dimensionality.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   "f16",
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides nearest-neighbor search over embedding vectors.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector's length does not match the
// store's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("store: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
