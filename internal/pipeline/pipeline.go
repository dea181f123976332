// Package pipeline implements the Pipeline Orchestrator: the OCR → chunk
// → embed → (image → vision) flow for pending documents, bounded by a
// worker pool and safe to restart mid-run.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ptts-corpus/ptts/internal/chunk"
	"github.com/ptts-corpus/ptts/internal/collaborator"
	"github.com/ptts-corpus/ptts/internal/hashutil"
	"github.com/ptts-corpus/ptts/internal/index"
	"github.com/ptts-corpus/ptts/internal/provenance"
	"github.com/ptts-corpus/ptts/internal/store"

	"github.com/google/uuid"
)

// Config tunes one run of the orchestrator.
type Config struct {
	MaxConcurrent       int
	EmbeddingBatchSize  int
	ChunkConfig         chunk.Config
	OCRMode             store.OCRMode
	EnableVision        bool
	SkipVLMEmbedding    bool
	PerDocumentTimeout  time.Duration
}

// DefaultConfig returns the ambient defaults named in the configurator.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:      4,
		EmbeddingBatchSize: 32,
		ChunkConfig:        chunk.Config{ChunkSize: 1000, OverlapPercent: 15},
		OCRMode:            store.OCRModeBalanced,
		EnableVision:       false,
		PerDocumentTimeout: 10 * time.Minute,
	}
}

// Orchestrator drives pending documents through OCR, chunking, embedding,
// and optional vision description.
type Orchestrator struct {
	store       *store.Store
	provenance  *provenance.Engine
	maintainer  *index.Maintainer
	ocr         collaborator.OCRClient
	vision      collaborator.VisionClient
	embedding   collaborator.EmbeddingClient
	cfg         Config
}

// New returns an Orchestrator over the given Store and collaborators.
// vision may be nil if EnableVision is false.
func New(s *store.Store, maintainer *index.Maintainer, ocr collaborator.OCRClient, vision collaborator.VisionClient, embedding collaborator.EmbeddingClient, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:      s,
		provenance: provenance.New(s.DB()),
		maintainer: maintainer,
		ocr:        ocr,
		vision:     vision,
		embedding:  embedding,
		cfg:        cfg,
	}
}

// RecoverFromRestart resets every document stuck in "processing" back to
// "pending", and every image stuck in vision "processing" back to
// "pending", so a crash mid-document does not wedge the corpus.
func (o *Orchestrator) RecoverFromRestart(ctx context.Context) error {
	processing := store.DocumentProcessing
	docs, err := o.store.ListDocuments(ctx, store.DocumentFilter{Status: &processing})
	if err != nil {
		return fmt.Errorf("pipeline: list processing documents: %w", err)
	}
	for _, d := range docs {
		if err := o.store.UpdateDocumentStatus(ctx, d.ID, store.DocumentPending, nil); err != nil {
			return fmt.Errorf("pipeline: reset document %s: %w", d.ID, err)
		}
	}

	processingVision := store.VisionProcessing
	images, err := o.store.ListImagesByVisionStatus(ctx, processingVision, 0)
	if err != nil {
		return fmt.Errorf("pipeline: list processing images: %w", err)
	}
	for _, img := range images {
		if err := o.store.UpdateImageVisionStatus(ctx, img.ID, store.VisionPending); err != nil {
			return fmt.Errorf("pipeline: reset image %s: %w", img.ID, err)
		}
	}
	return nil
}

// Run processes every pending document, FIFO by ingestion order, with up
// to MaxConcurrent documents in flight at once. Cross-document ordering
// is not guaranteed beyond FIFO start; within a document, steps commit in
// order.
func (o *Orchestrator) Run(ctx context.Context) error {
	pending := store.DocumentPending
	docs, err := o.store.ListDocuments(ctx, store.DocumentFilter{Status: &pending})
	if err != nil {
		return fmt.Errorf("pipeline: list pending documents: %w", err)
	}
	// ListDocuments orders by created_at descending; process oldest first.
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, o.cfg.MaxConcurrent)
	var mu sync.Mutex
	var firstErr error

	for _, d := range docs {
		d := d
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			docCtx, cancel := context.WithTimeout(gctx, o.cfg.PerDocumentTimeout)
			defer cancel()

			if err := o.processDocument(docCtx, d); err != nil {
				slog.Warn("document processing failed", slog.String("document_id", d.ID), slog.String("error", err.Error()))
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return firstErr
}

func (o *Orchestrator) processDocument(ctx context.Context, d *store.Document) error {
	claimed, err := o.claim(ctx, d.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	if err := o.runSteps(ctx, d); err != nil {
		msg := err.Error()
		_ = o.store.UpdateDocumentStatus(ctx, d.ID, store.DocumentFailed, &msg)
		return err
	}

	return o.store.UpdateDocumentStatus(ctx, d.ID, store.DocumentComplete, nil)
}

// claim transitions pending -> processing, skipping documents another
// worker (or a previous, still-running process) already claimed.
func (o *Orchestrator) claim(ctx context.Context, id string) (bool, error) {
	current, err := o.store.GetDocument(ctx, id)
	if err != nil {
		return false, err
	}
	if current == nil || current.Status != store.DocumentPending {
		return false, nil
	}
	if err := o.store.UpdateDocumentStatus(ctx, id, store.DocumentProcessing, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestrator) runSteps(ctx context.Context, d *store.Document) error {
	ocrResult, err := o.ocr.Extract(ctx, d.FilePath, o.cfg.OCRMode)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}

	ocrID, chunks, err := o.storeOCRAndChunks(ctx, d, ocrResult)
	if err != nil {
		return fmt.Errorf("store ocr/chunks: %w", err)
	}

	if err := o.embedChunks(ctx, d, chunks); err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	if o.cfg.EnableVision && len(ocrResult.Images) > 0 {
		if err := o.processImages(ctx, d, ocrID, ocrResult.Images); err != nil {
			return fmt.Errorf("process images: %w", err)
		}
	}

	return nil
}

// storeOCRAndChunks inserts the OCRResult, its provenance node (depth 1),
// and every Chunk plus provenance node (depth 2) in one transaction, so a
// crash mid-write never leaves a document with chunks but no provenance
// (or provenance but no chunks) to sort out on restart. Lexical indexing
// and the document's page-count metadata are not part of that invariant
// and run after the commit.
func (o *Orchestrator) storeOCRAndChunks(ctx context.Context, d *store.Document, r *collaborator.OCRResult) (string, []*store.Chunk, error) {
	ocrID := uuid.New().String()
	contentHash := hashutil.ComputeHashString(r.ExtractedText)

	ocrRow := &store.OCRResult{
		ID:             ocrID,
		DocumentID:     d.ID,
		ExtractedText:  r.ExtractedText,
		TextLength:     len(r.ExtractedText),
		ExternalReqID:  r.ExternalReqID,
		Mode:           o.cfg.OCRMode,
		PageCount:      r.PageCount,
		QualityScore:   r.QualityScore,
		Cost:           r.Cost,
		ContentHash:    contentHash,
		DurationMS:     r.DurationMS,
		StructuredJSON: r.StructuredJSON,
		ExtrasJSON:     r.ExtrasJSON,
	}

	var pageOffsets []chunk.PageOffset
	for _, po := range r.PageOffsets {
		pageOffsets = append(pageOffsets, chunk.PageOffset{Page: po.Page, CharStart: po.CharStart, CharEnd: po.CharEnd})
	}
	windows := chunk.Split(r.ExtractedText, o.cfg.ChunkConfig)
	chunk.MapPages(windows, pageOffsets)

	chunkRows := make([]*store.Chunk, 0, len(windows))
	for _, w := range windows {
		textHash := hashutil.ComputeHashString(w.Text)
		chunkRows = append(chunkRows, &store.Chunk{
			ID:              uuid.New().String(),
			DocumentID:      d.ID,
			OCRResultID:     ocrID,
			Text:            w.Text,
			TextHash:        textHash,
			ChunkIndex:      w.Index,
			CharacterStart:  w.Start,
			CharacterEnd:    w.End,
			PageNumber:      w.PageNumber,
			PageRange:       w.PageRange,
			OverlapPrevious: w.OverlapPrevious,
			OverlapNext:     w.OverlapNext,
			EmbeddingStatus: store.EmbeddingPending,
		})
	}

	err := o.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.InsertOCRResultTx(ctx, tx, ocrRow); err != nil {
			return err
		}

		ocrProvID, err := o.provenance.CreateTx(ctx, tx, provenance.CreateParams{
			Type:             store.ProvOCRResult,
			SourceType:       "ocr",
			SourceID:         &ocrID,
			RootDocumentID:   d.ID,
			ContentHash:      contentHash,
			FileHash:         &d.FileHash,
			Processor:        "datalab",
			ProcessorVersion: string(o.cfg.OCRMode),
			ParentID:         &d.RootProvenanceID,
			ParentIDs:        []string{d.RootProvenanceID},
			ChainDepth:       store.FixedChainDepths[store.ProvOCRResult],
			ChainPath:        []store.ProvenanceType{store.ProvDocument, store.ProvOCRResult},
		})
		if err != nil {
			return err
		}

		if err := store.InsertChunksTx(ctx, tx, chunkRows); err != nil {
			return err
		}

		for _, c := range chunkRows {
			_, err := o.provenance.CreateTx(ctx, tx, provenance.CreateParams{
				Type:             store.ProvChunk,
				SourceType:       "chunk",
				SourceID:         &c.ID,
				RootDocumentID:   d.ID,
				ContentHash:      c.TextHash,
				Processor:        "chunker",
				ProcessorVersion: "1",
				ParentID:         &ocrProvID,
				ParentIDs:        []string{d.RootProvenanceID, ocrProvID},
				ChainDepth:       store.FixedChainDepths[store.ProvChunk],
				ChainPath:        []store.ProvenanceType{store.ProvDocument, store.ProvOCRResult, store.ProvChunk},
				Location: map[string]any{
					"chunk_index": c.ChunkIndex,
					"char_start":  c.CharacterStart,
					"char_end":    c.CharacterEnd,
				},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	for _, c := range chunkRows {
		if err := o.maintainer.IndexChunk(ctx, c.ID, c.Text); err != nil {
			return "", nil, err
		}
	}

	if err := o.store.UpdateDocumentMetadata(ctx, d.ID, &r.PageCount, nil, nil, nil); err != nil {
		return "", nil, err
	}

	return ocrID, chunkRows, nil
}

// embedChunks processes chunks in ascending index order, in batches of
// EmbeddingBatchSize. A batch failure flips only that batch's chunks to
// failed; processing continues with the next batch.
func (o *Orchestrator) embedChunks(ctx context.Context, d *store.Document, chunks []*store.Chunk) error {
	batchSize := o.cfg.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := o.embedding.Embed(ctx, texts, store.TaskDocument)
		if err != nil {
			for _, c := range batch {
				_ = o.store.UpdateChunkEmbeddingStatus(ctx, c.ID, store.EmbeddingFailed)
			}
			continue
		}

		for i, c := range batch {
			embID := uuid.New().String()
			row := &store.Embedding{
				ID:             embID,
				ChunkID:        &c.ID,
				Vector:         vectors[i],
				OriginalText:   c.Text,
				SourceFilePath: d.FilePath,
				SourceFileName: d.FileName,
				SourceFileHash: d.FileHash,
				ChunkIndex:     c.ChunkIndex,
				TotalChunks:    len(chunks),
				PageNumber:     c.PageNumber,
				PageRange:      c.PageRange,
				CharacterStart: c.CharacterStart,
				CharacterEnd:   c.CharacterEnd,
				Model:          o.embedding.ModelName(),
				ModelVersion:   o.embedding.ModelName(),
				TaskType:       store.TaskDocument,
				InferenceMode:  "local",
			}
			if err := o.store.InsertEmbedding(ctx, row); err != nil {
				_ = o.store.UpdateChunkEmbeddingStatus(ctx, c.ID, store.EmbeddingFailed)
				continue
			}

			chunkProv, perr := o.provenance.GetBySourceID(ctx, store.ProvChunk, c.ID)
			if perr != nil || chunkProv == nil || chunkProv.ParentID == nil {
				_ = o.store.UpdateChunkEmbeddingStatus(ctx, c.ID, store.EmbeddingFailed)
				continue
			}

			_, err := o.provenance.Create(ctx, provenance.CreateParams{
				Type:             store.ProvEmbedding,
				SourceType:       "embedding",
				SourceID:         &embID,
				RootDocumentID:   d.ID,
				ContentHash:      hashutil.ComputeHashString(c.Text),
				Processor:        o.embedding.ModelName(),
				ProcessorVersion: "1",
				ParentID:         &chunkProv.ID,
				ParentIDs:        []string{d.RootProvenanceID, *chunkProv.ParentID, chunkProv.ID},
				ChainDepth:       3,
				ChainPath:        []store.ProvenanceType{store.ProvDocument, store.ProvOCRResult, store.ProvChunk, store.ProvEmbedding},
			})
			if err != nil {
				_ = o.store.UpdateChunkEmbeddingStatus(ctx, c.ID, store.EmbeddingFailed)
				continue
			}

			if err := o.maintainer.IndexEmbedding(ctx, embID, row.Vector); err != nil {
				return err
			}
			if err := o.store.UpdateChunkEmbeddingStatus(ctx, c.ID, store.EmbeddingComplete); err != nil {
				return err
			}
		}
	}

	return nil
}

// processImages inserts Image rows (depth 2) and, per image, requests a
// description, a VLM_DESCRIPTION provenance node (depth 3), and —
// unless SkipVLMEmbedding is set — an embedding over the description
// (depth 4).
func (o *Orchestrator) processImages(ctx context.Context, d *store.Document, ocrID string, images []collaborator.ExtractedImage) error {
	rows := make([]*store.Image, 0, len(images))
	for i, img := range images {
		rows = append(rows, &store.Image{
			ID:            uuid.New().String(),
			DocumentID:    d.ID,
			OCRResultID:   ocrID,
			PageNumber:    img.PageNumber,
			BBoxX:         img.BBoxX,
			BBoxY:         img.BBoxY,
			BBoxW:         img.BBoxW,
			BBoxH:         img.BBoxH,
			ImageIndex:    img.ImageIndex,
			Format:        img.Format,
			Width:         img.Width,
			Height:        img.Height,
			ExtractedPath: fmt.Sprintf("%s.images/%d_%d.%s", d.FilePath, img.PageNumber, i, img.Format),
			FileSize:      int64(len(img.Bytes)),
			VisionStatus:  store.VisionPending,
		})
	}
	if err := o.store.InsertImages(ctx, rows); err != nil {
		return err
	}

	ocrProv, err := o.provenance.GetBySourceID(ctx, store.ProvOCRResult, ocrID)
	if err != nil {
		return err
	}
	if ocrProv == nil {
		return fmt.Errorf("no provenance node for ocr result %s", ocrID)
	}

	for i, row := range rows {
		imgProvID, err := o.provenance.Create(ctx, provenance.CreateParams{
			Type:             store.ProvImage,
			SourceType:       "image",
			SourceID:         &row.ID,
			RootDocumentID:   d.ID,
			ContentHash:      hashutil.ComputeHash(images[i].Bytes),
			Processor:        "datalab",
			ProcessorVersion: "1",
			ParentID:         &ocrProv.ID,
			ParentIDs:        []string{d.RootProvenanceID, ocrProv.ID},
			ChainDepth:       store.FixedChainDepths[store.ProvImage],
			ChainPath:        []store.ProvenanceType{store.ProvDocument, store.ProvOCRResult, store.ProvImage},
		})
		if err != nil {
			return err
		}

		if err := o.store.UpdateImageVisionStatus(ctx, row.ID, store.VisionProcessing); err != nil {
			return err
		}

		result, err := o.vision.Describe(ctx, images[i].Bytes, row.Format)
		if err != nil {
			_ = o.store.UpdateImageVisionResult(ctx, row.ID, store.VisionFailed, nil, nil, nil, nil, nil)
			continue
		}

		contentHash := hashutil.ComputeHashString(result.Description)
		if err := o.store.UpdateImageVisionResult(ctx, row.ID, store.VisionComplete, &result.Description, result.StructuredJSON, result.Confidence, result.TokensUsed, &contentHash); err != nil {
			return err
		}

		vlmID, err := o.provenance.Create(ctx, provenance.CreateParams{
			Type:             store.ProvVLMDescription,
			SourceType:       "vision",
			SourceID:         &row.ID,
			RootDocumentID:   d.ID,
			ContentHash:      contentHash,
			Processor:        "vlm",
			ProcessorVersion: "1",
			ParentID:         &imgProvID,
			ParentIDs:        []string{d.RootProvenanceID, ocrProv.ID, imgProvID},
			ChainDepth:       store.FixedChainDepths[store.ProvVLMDescription],
			ChainPath:        []store.ProvenanceType{store.ProvDocument, store.ProvOCRResult, store.ProvImage, store.ProvVLMDescription},
		})
		if err != nil {
			return err
		}

		if o.cfg.SkipVLMEmbedding {
			continue
		}

		vectors, err := o.embedding.Embed(ctx, []string{result.Description}, store.TaskDocument)
		if err != nil || len(vectors) == 0 {
			continue
		}

		embRow := &store.Embedding{
			ID:             uuid.New().String(),
			ImageID:        &row.ID,
			Vector:         vectors[0],
			OriginalText:   result.Description,
			SourceFilePath: d.FilePath,
			SourceFileName: d.FileName,
			SourceFileHash: d.FileHash,
			ChunkIndex:     row.ImageIndex,
			TotalChunks:    len(images),
			PageNumber:     &row.PageNumber,
			CharacterStart: 0,
			CharacterEnd:   len(result.Description),
			Model:          o.embedding.ModelName(),
			ModelVersion:   o.embedding.ModelName(),
			TaskType:       store.TaskDocument,
			InferenceMode:  "local",
		}
		if err := o.store.InsertEmbedding(ctx, embRow); err != nil {
			continue
		}
		if err := o.maintainer.IndexEmbedding(ctx, embRow.ID, embRow.Vector); err != nil {
			return err
		}

		_, err = o.provenance.Create(ctx, provenance.CreateParams{
			Type:             store.ProvEmbedding,
			SourceType:       "embedding",
			SourceID:         &embRow.ID,
			RootDocumentID:   d.ID,
			ContentHash:      contentHash,
			Processor:        o.embedding.ModelName(),
			ProcessorVersion: "1",
			ParentID:         &vlmID,
			ParentIDs:        []string{d.RootProvenanceID, ocrProv.ID, imgProvID, vlmID},
			ChainDepth:       4,
			ChainPath:        []store.ProvenanceType{store.ProvDocument, store.ProvOCRResult, store.ProvImage, store.ProvVLMDescription, store.ProvEmbedding},
		})
		if err != nil {
			return err
		}
	}

	return nil
}
