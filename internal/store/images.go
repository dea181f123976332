package store

import (
	"context"
	"database/sql"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
)

const imageSelectCols = `SELECT
	id, document_id, ocr_result_id, page_number, bbox_x, bbox_y, bbox_w, bbox_h,
	image_index, format, width, height, extracted_path, file_size,
	vision_status, vision_description, structured_json, confidence,
	tokens_used, content_hash, created_at, updated_at
	FROM images`

// InsertImages inserts every extracted image for a document in one
// transaction.
func (s *Store) InsertImages(ctx context.Context, images []*Image) error {
	if len(images) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO images (
				id, document_id, ocr_result_id, page_number, bbox_x, bbox_y, bbox_w, bbox_h,
				image_index, format, width, height, extracted_path, file_size, vision_status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return ptserrors.Internal("prepare insert image", err)
		}
		defer stmt.Close()

		for _, img := range images {
			_, err := stmt.ExecContext(ctx,
				img.ID, img.DocumentID, img.OCRResultID, img.PageNumber,
				img.BBoxX, img.BBoxY, img.BBoxW, img.BBoxH,
				img.ImageIndex, img.Format, img.Width, img.Height,
				img.ExtractedPath, img.FileSize, string(img.VisionStatus),
			)
			if err != nil {
				return ptserrors.Internal("insert image", err)
			}
		}
		return nil
	})
}

// GetImage returns the image with id, or nil if it does not exist.
func (s *Store) GetImage(ctx context.Context, id string) (*Image, error) {
	row := s.db.QueryRowContext(ctx, imageSelectCols+` WHERE id = ?`, id)
	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("get image", err)
	}
	return img, nil
}

// ListImagesByDocument returns every image of document, ordered by page
// then image index.
func (s *Store) ListImagesByDocument(ctx context.Context, documentID string) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx, imageSelectCols+` WHERE document_id = ? ORDER BY page_number ASC, image_index ASC`, documentID)
	if err != nil {
		return nil, ptserrors.Internal("list images", err)
	}
	defer rows.Close()

	var out []*Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, ptserrors.Internal("scan image", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// ListImagesByVisionStatus returns images awaiting (or stuck in) a given
// vision stage, used by the pipeline and by restart recovery.
func (s *Store) ListImagesByVisionStatus(ctx context.Context, status VisionStatus, limit int) ([]*Image, error) {
	query := imageSelectCols + ` WHERE vision_status = ? ORDER BY created_at ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ptserrors.Internal("list images by vision status", err)
	}
	defer rows.Close()

	var out []*Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, ptserrors.Internal("scan image", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// UpdateImageVisionResult records a completed (or failed) vision pass.
func (s *Store) UpdateImageVisionResult(ctx context.Context, id string, status VisionStatus, description, structuredJSON *string, confidence *float64, tokensUsed *int, contentHash *string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE images SET vision_status = ?, vision_description = ?, structured_json = ?,
				confidence = ?, tokens_used = ?, content_hash = ?,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			WHERE id = ?`, string(status), description, structuredJSON, confidence, tokensUsed, contentHash, id)
		if err != nil {
			return ptserrors.Internal("update image vision result", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ptserrors.NotFound("image", id)
		}
		return nil
	})
}

// UpdateImageVisionStatus transitions vision_status alone, used to mark an
// image processing before the result is known.
func (s *Store) UpdateImageVisionStatus(ctx context.Context, id string, status VisionStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE images SET vision_status = ?,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			WHERE id = ?`, string(status), id)
		if err != nil {
			return ptserrors.Internal("update image vision status", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ptserrors.NotFound("image", id)
		}
		return nil
	})
}

func scanImage(s rowScanner) (*Image, error) {
	var img Image
	var visionStatus, createdAt, updatedAt string
	err := s.Scan(
		&img.ID, &img.DocumentID, &img.OCRResultID, &img.PageNumber,
		&img.BBoxX, &img.BBoxY, &img.BBoxW, &img.BBoxH,
		&img.ImageIndex, &img.Format, &img.Width, &img.Height,
		&img.ExtractedPath, &img.FileSize,
		&visionStatus, &img.VisionDescription, &img.StructuredJSON, &img.Confidence,
		&img.TokensUsed, &img.ContentHash, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	img.VisionStatus = VisionStatus(visionStatus)
	if t, perr := ParseTime(createdAt); perr == nil {
		img.CreatedAt = t
	}
	if t, perr := ParseTime(updatedAt); perr == nil {
		img.UpdatedAt = t
	}
	return &img, nil
}
