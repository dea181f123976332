package store

import (
	"context"
	"database/sql"
	"fmt"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
)

const documentSelectCols = `SELECT
	id, file_path, file_name, file_size, file_type, file_hash, status,
	page_count, title, author, subject, root_provenance_id, error_message,
	created_at, updated_at
	FROM documents`

// InsertDocument inserts a new document row in the pending state.
func (s *Store) InsertDocument(ctx context.Context, d *Document) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (
				id, file_path, file_name, file_size, file_type, file_hash, status,
				page_count, title, author, subject, root_provenance_id, error_message
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.FilePath, d.FileName, d.FileSize, d.FileType, d.FileHash, string(d.Status),
			d.PageCount, d.Title, d.Author, d.Subject, d.RootProvenanceID, d.ErrorMessage,
		)
		if err != nil {
			return ptserrors.Internal("insert document", err)
		}
		return nil
	})
}

// GetDocument returns the document with id, or nil if it does not exist.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelectCols+` WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("get document", err)
	}
	return d, nil
}

// GetDocumentByHash returns the document whose file_hash matches hash, if
// any, used to detect re-ingestion of identical source bytes.
func (s *Store) GetDocumentByHash(ctx context.Context, hash string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelectCols+` WHERE file_hash = ? ORDER BY created_at ASC LIMIT 1`, hash)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("get document by hash", err)
	}
	return d, nil
}

// ListDocuments returns documents matching filter, most recently created
// first.
func (s *Store) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*Document, error) {
	query := documentSelectCols
	var args []any
	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ptserrors.Internal("list documents", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, ptserrors.Internal("scan document", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDocumentStatus transitions a document's status and, on failure,
// records the error message.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status DocumentStatus, errMsg *string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET status = ?, error_message = ?,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			WHERE id = ?`, string(status), errMsg, id)
		if err != nil {
			return ptserrors.Internal("update document status", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ptserrors.NotFound("document", id)
		}
		return nil
	})
}

// UpdateDocumentMetadata sets page_count/title/author/subject once they are
// known after OCR.
func (s *Store) UpdateDocumentMetadata(ctx context.Context, id string, pageCount *int, title, author, subject *string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET page_count = ?, title = ?, author = ?, subject = ?,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			WHERE id = ?`, pageCount, title, author, subject, id)
		if err != nil {
			return ptserrors.Internal("update document metadata", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ptserrors.NotFound("document", id)
		}
		return nil
	})
}

// DeletedArtifacts lists what a DeleteDocument call removed from the
// database that also needs cleanup outside it: embedding ids to drop from
// the vector index, and extracted image files to unlink from disk.
type DeletedArtifacts struct {
	ChunkIDs     []string
	EmbeddingIDs []string
	ImagePaths   []string
}

// DeleteDocument removes a document and every row that descends from it
// (ocr_results, chunks, images, embeddings, provenance), in dependency
// order inside one transaction. It returns the deleted embedding ids and
// extracted image paths so the caller can evict them from the vector
// index and disk; DeleteDocument itself only touches the database.
func (s *Store) DeleteDocument(ctx context.Context, id string) (*DeletedArtifacts, error) {
	artifacts := &DeletedArtifacts{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		chunkRows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, id)
		if err != nil {
			return ptserrors.Internal("collect chunks for delete", err)
		}
		for chunkRows.Next() {
			var chunkID string
			if err := chunkRows.Scan(&chunkID); err != nil {
				chunkRows.Close()
				return ptserrors.Internal("scan chunk id for delete", err)
			}
			artifacts.ChunkIDs = append(artifacts.ChunkIDs, chunkID)
		}
		if err := chunkRows.Err(); err != nil {
			chunkRows.Close()
			return ptserrors.Internal("iterate chunks for delete", err)
		}
		chunkRows.Close()

		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM embeddings
			WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)
			   OR image_id IN (SELECT id FROM images WHERE document_id = ?)
			   OR extraction_id IN (SELECT id FROM extractions WHERE document_id = ?)`,
			id, id, id)
		if err != nil {
			return ptserrors.Internal("collect embeddings for delete", err)
		}
		for rows.Next() {
			var embID string
			if err := rows.Scan(&embID); err != nil {
				rows.Close()
				return ptserrors.Internal("scan embedding id for delete", err)
			}
			artifacts.EmbeddingIDs = append(artifacts.EmbeddingIDs, embID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return ptserrors.Internal("iterate embeddings for delete", err)
		}
		rows.Close()

		imgRows, err := tx.QueryContext(ctx, `SELECT extracted_path FROM images WHERE document_id = ?`, id)
		if err != nil {
			return ptserrors.Internal("collect images for delete", err)
		}
		for imgRows.Next() {
			var path string
			if err := imgRows.Scan(&path); err != nil {
				imgRows.Close()
				return ptserrors.Internal("scan image path for delete", err)
			}
			if path != "" {
				artifacts.ImagePaths = append(artifacts.ImagePaths, path)
			}
		}
		if err := imgRows.Err(); err != nil {
			imgRows.Close()
			return ptserrors.Internal("iterate images for delete", err)
		}
		imgRows.Close()

		stmts := []struct {
			query string
			args  []any
		}{
			{`DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, []any{id}},
			{`DELETE FROM embeddings WHERE image_id IN (SELECT id FROM images WHERE document_id = ?)`, []any{id}},
			{`DELETE FROM embeddings WHERE extraction_id IN (SELECT id FROM extractions WHERE document_id = ?)`, []any{id}},
			{`DELETE FROM chunks WHERE document_id = ?`, []any{id}},
			{`DELETE FROM images WHERE document_id = ?`, []any{id}},
			{`DELETE FROM extractions WHERE document_id = ?`, []any{id}},
			{`DELETE FROM ocr_results WHERE document_id = ?`, []any{id}},
			{`DELETE FROM provenance WHERE root_document_id = ?`, []any{id}},
			{`DELETE FROM documents WHERE id = ?`, []any{id}},
		}
		for _, st := range stmts {
			if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
				return ptserrors.Internal(fmt.Sprintf("delete document cascade (%s)", st.query), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

// GetStats summarizes document, chunk, embedding, and image counts.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[DocumentStatus]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, ptserrors.Internal("get document stats", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, ptserrors.Internal("scan document stats", err)
		}
		stats.ByStatus[DocumentStatus(status)] = count
		stats.TotalDocuments += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, ptserrors.Internal("iterate document stats", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.TotalChunks); err != nil {
		return nil, ptserrors.Internal("count chunks", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&stats.TotalEmbeddings); err != nil {
		return nil, ptserrors.Internal("count embeddings", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&stats.TotalImages); err != nil {
		return nil, ptserrors.Internal("count images", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*Document, error) {
	var d Document
	var status, createdAt, updatedAt string
	err := s.Scan(
		&d.ID, &d.FilePath, &d.FileName, &d.FileSize, &d.FileType, &d.FileHash, &status,
		&d.PageCount, &d.Title, &d.Author, &d.Subject, &d.RootProvenanceID, &d.ErrorMessage,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = DocumentStatus(status)
	if t, perr := ParseTime(createdAt); perr == nil {
		d.CreatedAt = t
	}
	if t, perr := ParseTime(updatedAt); perr == nil {
		d.UpdatedAt = t
	}
	return &d, nil
}
