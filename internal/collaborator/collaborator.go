// Package collaborator wraps the external services the pipeline depends
// on — OCR, vision description, and embedding — behind small interfaces,
// each guarded by a circuit breaker and bounded retry so a flaky
// collaborator degrades gracefully instead of stalling every document.
package collaborator

import (
	"context"
	"time"

	"github.com/ptts-corpus/ptts/internal/store"
)

// PageOffset is the character range [CharStart, CharEnd) one OCR'd page
// occupies in the full extracted text.
type PageOffset struct {
	Page      int
	CharStart int
	CharEnd   int
}

// ExtractedImage is one figure an OCR pass pulled out of a page, returned
// alongside the page's text.
type ExtractedImage struct {
	PageNumber    int
	BBoxX, BBoxY  float64
	BBoxW, BBoxH  float64
	ImageIndex    int
	Format        string
	Width, Height int
	Bytes         []byte
}

// OCRResult is what an OCR collaborator call returns for one document.
type OCRResult struct {
	ExtractedText  string
	PageCount      int
	PageOffsets    []PageOffset
	Images         []ExtractedImage
	QualityScore   *float64
	Cost           *float64
	ExternalReqID  string
	StructuredJSON *string
	ExtrasJSON     *string
	DurationMS     int64
}

// OCRClient extracts text and figures from a source file.
type OCRClient interface {
	Extract(ctx context.Context, filePath string, mode store.OCRMode) (*OCRResult, error)
}

// VisionResult is what a vision collaborator call returns for one image.
type VisionResult struct {
	Description    string
	StructuredJSON *string
	Confidence     *float64
	TokensUsed     *int
}

// VisionClient describes the content of an extracted image.
type VisionClient interface {
	Describe(ctx context.Context, imageBytes []byte, format string) (*VisionResult, error)
}

// EmbeddingClient computes fixed-dimension vectors over text.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string, task store.TaskType) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// RetryableError classes an external-collaborator failure as transient
// (timeouts, 5xx responses) or permanent (validation, 4xx). Only
// transient failures are retried, per the orchestrator's retry policy.
type RetryableError struct {
	Err       error
	Transient bool
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// DefaultCallTimeout bounds a single external call; the orchestrator
// layers a per-document ceiling on top of this.
const DefaultCallTimeout = 120 * time.Second
