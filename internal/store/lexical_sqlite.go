package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteLexicalIndex is the native, always-on lexical backend: a thin
// reader over the chunks_fts virtual table, which the chunks table's
// own triggers keep in sync automatically (invariant 6). Index and
// Delete are no-ops here since the triggers already do that work; this
// type exists only to give chunks_fts a LexicalIndex-shaped reader so
// Hybrid search can rank against it the same way it would an alternate,
// application-managed backend such as Bleve.
type SQLiteLexicalIndex struct {
	db *sql.DB
}

// NewSQLiteLexicalIndex wraps db's chunks_fts table as a LexicalIndex.
func NewSQLiteLexicalIndex(db *sql.DB) *SQLiteLexicalIndex {
	return &SQLiteLexicalIndex{db: db}
}

var _ LexicalIndex = (*SQLiteLexicalIndex)(nil)

// Index is a no-op: the chunks_fts_ai/au triggers index new chunk rows
// as they are inserted, ahead of any call a caller might make here.
func (s *SQLiteLexicalIndex) Index(ctx context.Context, docs []*LexicalDoc) error {
	return nil
}

// Delete is a no-op: the chunks_fts_ad trigger removes rows as their
// owning chunk is deleted.
func (s *SQLiteLexicalIndex) Delete(ctx context.Context, docIDs []string) error {
	return nil
}

// Search ranks chunks_fts by bm25 relevance and resolves FTS5 rowids
// back to chunk ids via the content_rowid join.
func (s *SQLiteLexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]*LexicalResult, error) {
	if strings.TrimSpace(queryStr) == "" {
		return []*LexicalResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, queryStr, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite lexical search: %w", err)
	}
	defer rows.Close()

	var out []*LexicalResult
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("sqlite lexical search: scan: %w", err)
		}
		// bm25() is lower-is-better; invert so a higher Score means more
		// relevant, matching the Bleve backend's convention.
		out = append(out, &LexicalResult{DocID: id, Score: -rank})
	}
	return out, rows.Err()
}

// AllIDs returns every chunk id currently present in chunks_fts.
func (s *SQLiteLexicalIndex) AllIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT c.id FROM chunks_fts JOIN chunks c ON c.rowid = chunks_fts.rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite lexical all ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats reports the current row count of chunks_fts.
func (s *SQLiteLexicalIndex) Stats() *LexicalStats {
	var count int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM chunks_fts`).Scan(&count)
	return &LexicalStats{DocumentCount: count}
}

// Save is a no-op: chunks_fts lives inside the main database file and is
// durable the moment a transaction touching it commits.
func (s *SQLiteLexicalIndex) Save(path string) error { return nil }

// Load is a no-op for the same reason.
func (s *SQLiteLexicalIndex) Load(path string) error { return nil }

// Close is a no-op: the underlying *sql.DB outlives this reader.
func (s *SQLiteLexicalIndex) Close() error { return nil }
