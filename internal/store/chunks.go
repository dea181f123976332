package store

import (
	"context"
	"database/sql"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
)

const chunkSelectCols = `SELECT
	id, document_id, ocr_result_id, text, text_hash, chunk_index,
	character_start, character_end, page_number, page_range,
	overlap_previous, overlap_next, embedding_status, created_at, updated_at
	FROM chunks`

// InsertChunks inserts chunks for a document in one transaction. The
// chunks_fts virtual table is kept in sync by triggers, not by this call.
func (s *Store) InsertChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return InsertChunksTx(ctx, tx, chunks)
	})
}

// InsertChunksTx is InsertChunks against a transaction the caller already
// holds, so it can be combined with other writes (the OCR result and
// provenance records) into a single commit.
func InsertChunksTx(ctx context.Context, tx *sql.Tx, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (
			id, document_id, ocr_result_id, text, text_hash, chunk_index,
			character_start, character_end, page_number, page_range,
			overlap_previous, overlap_next, embedding_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return ptserrors.Internal("prepare insert chunk", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		_, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.OCRResultID, c.Text, c.TextHash, c.ChunkIndex,
			c.CharacterStart, c.CharacterEnd, c.PageNumber, c.PageRange,
			c.OverlapPrevious, c.OverlapNext, string(c.EmbeddingStatus),
		)
		if err != nil {
			return ptserrors.Internal("insert chunk", err)
		}
	}
	return nil
}

// GetChunk returns the chunk with id, or nil if it does not exist.
func (s *Store) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, chunkSelectCols+` WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("get chunk", err)
	}
	return c, nil
}

// ListChunksByDocument returns every chunk of document, ordered by
// chunk_index.
func (s *Store) ListChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelectCols+` WHERE document_id = ? ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, ptserrors.Internal("list chunks", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, ptserrors.Internal("scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListAllChunks returns every chunk in the database, ordered by
// document_id then chunk_index. Used by lexical search's exact/fuzzy/regex
// match types, which scan chunk.text directly rather than going through a
// tokenized index.
func (s *Store) ListAllChunks(ctx context.Context) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelectCols+` ORDER BY document_id ASC, chunk_index ASC`)
	if err != nil {
		return nil, ptserrors.Internal("list all chunks", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, ptserrors.Internal("scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListChunksByEmbeddingStatus returns every chunk in the given embedding
// status, oldest first, used by the pipeline to find pending work.
func (s *Store) ListChunksByEmbeddingStatus(ctx context.Context, status EmbeddingStatus, limit int) ([]*Chunk, error) {
	query := chunkSelectCols + ` WHERE embedding_status = ? ORDER BY created_at ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ptserrors.Internal("list chunks by embedding status", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, ptserrors.Internal("scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateChunkEmbeddingStatus transitions a chunk's embedding_status.
func (s *Store) UpdateChunkEmbeddingStatus(ctx context.Context, id string, status EmbeddingStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE chunks SET embedding_status = ?,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			WHERE id = ?`, string(status), id)
		if err != nil {
			return ptserrors.Internal("update chunk embedding status", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ptserrors.NotFound("chunk", id)
		}
		return nil
	})
}

func scanChunk(s rowScanner) (*Chunk, error) {
	var c Chunk
	var embStatus, createdAt, updatedAt string
	err := s.Scan(
		&c.ID, &c.DocumentID, &c.OCRResultID, &c.Text, &c.TextHash, &c.ChunkIndex,
		&c.CharacterStart, &c.CharacterEnd, &c.PageNumber, &c.PageRange,
		&c.OverlapPrevious, &c.OverlapNext, &embStatus, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.EmbeddingStatus = EmbeddingStatus(embStatus)
	if t, perr := ParseTime(createdAt); perr == nil {
		c.CreatedAt = t
	}
	if t, perr := ParseTime(updatedAt); perr == nil {
		c.UpdatedAt = t
	}
	return &c, nil
}
