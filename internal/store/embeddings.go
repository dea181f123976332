package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
)

const embeddingSelectCols = `SELECT
	id, chunk_id, image_id, extraction_id, vector, original_text,
	source_file_path, source_file_name, source_file_hash, chunk_index, total_chunks,
	page_number, page_range, character_start, character_end,
	model, model_version, task_type, inference_mode, created_at
	FROM embeddings`

// EncodeVector serializes a vector as little-endian float32 bytes, the
// on-disk form of the embeddings.vector column.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector parses the little-endian float32 bytes stored in
// embeddings.vector back into a vector.
func DecodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// InsertEmbedding stores a single embedding. Exactly one of ChunkID,
// ImageID, ExtractionID must be set (enforced by a CHECK constraint).
func (s *Store) InsertEmbedding(ctx context.Context, e *Embedding) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (
				id, chunk_id, image_id, extraction_id, vector, original_text,
				source_file_path, source_file_name, source_file_hash, chunk_index, total_chunks,
				page_number, page_range, character_start, character_end,
				model, model_version, task_type, inference_mode
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.ChunkID, e.ImageID, e.ExtractionID, EncodeVector(e.Vector), e.OriginalText,
			e.SourceFilePath, e.SourceFileName, e.SourceFileHash, e.ChunkIndex, e.TotalChunks,
			e.PageNumber, e.PageRange, e.CharacterStart, e.CharacterEnd,
			e.Model, e.ModelVersion, string(e.TaskType), e.InferenceMode,
		)
		if err != nil {
			return ptserrors.Internal("insert embedding", err)
		}
		return nil
	})
}

// GetEmbedding returns the embedding with id, or nil if it does not exist.
func (s *Store) GetEmbedding(ctx context.Context, id string) (*Embedding, error) {
	row := s.db.QueryRowContext(ctx, embeddingSelectCols+` WHERE id = ?`, id)
	e, err := scanEmbedding(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("get embedding", err)
	}
	return e, nil
}

// GetEmbeddingByChunk returns the embedding computed over chunkID, if any.
func (s *Store) GetEmbeddingByChunk(ctx context.Context, chunkID string) (*Embedding, error) {
	row := s.db.QueryRowContext(ctx, embeddingSelectCols+` WHERE chunk_id = ?`, chunkID)
	e, err := scanEmbedding(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("get embedding by chunk", err)
	}
	return e, nil
}

// ListAllEmbeddings returns every embedding, used to rebuild the vector
// index from the database of record.
func (s *Store) ListAllEmbeddings(ctx context.Context) ([]*Embedding, error) {
	rows, err := s.db.QueryContext(ctx, embeddingSelectCols+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, ptserrors.Internal("list embeddings", err)
	}
	defer rows.Close()

	var out []*Embedding
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, ptserrors.Internal("scan embedding", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEmbedding removes an embedding, e.g. to retry after a transient
// collaborator failure.
func (s *Store) DeleteEmbedding(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE id = ?`, id)
		if err != nil {
			return ptserrors.Internal("delete embedding", err)
		}
		return nil
	})
}

func scanEmbedding(s rowScanner) (*Embedding, error) {
	var e Embedding
	var vecBytes []byte
	var taskType, createdAt string
	err := s.Scan(
		&e.ID, &e.ChunkID, &e.ImageID, &e.ExtractionID, &vecBytes, &e.OriginalText,
		&e.SourceFilePath, &e.SourceFileName, &e.SourceFileHash, &e.ChunkIndex, &e.TotalChunks,
		&e.PageNumber, &e.PageRange, &e.CharacterStart, &e.CharacterEnd,
		&e.Model, &e.ModelVersion, &taskType, &e.InferenceMode, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	e.Vector = DecodeVector(vecBytes)
	e.TaskType = TaskType(taskType)
	if t, perr := ParseTime(createdAt); perr == nil {
		e.CreatedAt = t
	}
	return &e, nil
}
