package store

import (
	"context"
	"database/sql"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
)

const ocrResultSelectCols = `SELECT
	id, document_id, extracted_text, text_length, external_request_id, mode,
	page_count, quality_score, cost, content_hash, duration_ms,
	structured_json, extras_json, created_at
	FROM ocr_results`

// InsertOCRResult stores the OCR output for a document.
func (s *Store) InsertOCRResult(ctx context.Context, r *OCRResult) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return InsertOCRResultTx(ctx, tx, r)
	})
}

// InsertOCRResultTx is InsertOCRResult against a transaction the caller
// already holds, so it can be combined with other writes (chunks and
// their provenance) into a single commit.
func InsertOCRResultTx(ctx context.Context, tx *sql.Tx, r *OCRResult) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ocr_results (
			id, document_id, extracted_text, text_length, external_request_id, mode,
			page_count, quality_score, cost, content_hash, duration_ms,
			structured_json, extras_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DocumentID, r.ExtractedText, r.TextLength, r.ExternalReqID, string(r.Mode),
		r.PageCount, r.QualityScore, r.Cost, r.ContentHash, r.DurationMS,
		r.StructuredJSON, r.ExtrasJSON,
	)
	if err != nil {
		return ptserrors.Internal("insert ocr result", err)
	}
	return nil
}

// GetOCRResult returns the OCR result with id, or nil if it does not exist.
func (s *Store) GetOCRResult(ctx context.Context, id string) (*OCRResult, error) {
	row := s.db.QueryRowContext(ctx, ocrResultSelectCols+` WHERE id = ?`, id)
	r, err := scanOCRResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("get ocr result", err)
	}
	return r, nil
}

// ListOCRResultsByDocument returns every OCR result recorded for document,
// oldest first (normally exactly one, but re-OCR attempts append rather
// than overwrite).
func (s *Store) ListOCRResultsByDocument(ctx context.Context, documentID string) ([]*OCRResult, error) {
	rows, err := s.db.QueryContext(ctx, ocrResultSelectCols+` WHERE document_id = ? ORDER BY created_at ASC`, documentID)
	if err != nil {
		return nil, ptserrors.Internal("list ocr results", err)
	}
	defer rows.Close()

	var out []*OCRResult
	for rows.Next() {
		r, err := scanOCRResult(rows)
		if err != nil {
			return nil, ptserrors.Internal("scan ocr result", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanOCRResult(s rowScanner) (*OCRResult, error) {
	var r OCRResult
	var mode, createdAt string
	err := s.Scan(
		&r.ID, &r.DocumentID, &r.ExtractedText, &r.TextLength, &r.ExternalReqID, &mode,
		&r.PageCount, &r.QualityScore, &r.Cost, &r.ContentHash, &r.DurationMS,
		&r.StructuredJSON, &r.ExtrasJSON, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	r.Mode = OCRMode(mode)
	if t, perr := ParseTime(createdAt); perr == nil {
		r.CreatedAt = t
	}
	return &r, nil
}
