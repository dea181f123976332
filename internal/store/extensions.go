package store

import (
	"context"
	"database/sql"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
)

// Extraction is structured output pulled from a document (e.g. form
// fields), stored as opaque JSON alongside its content hash.
type Extraction struct {
	ID             string
	DocumentID     string
	ExtractionJSON string
	ContentHash    string
	CreatedAt      string
}

// KnowledgeNode is one entity surfaced by entity extraction over a
// document's chunks.
type KnowledgeNode struct {
	ID            string
	CanonicalName string
	EntityType    string
	ContentHash   string
	CreatedAt     string
}

// KnowledgeEdge is a directed relation between two KnowledgeNodes.
type KnowledgeEdge struct {
	ID           string
	SourceNodeID string
	TargetNodeID string
	Relation     string
	CreatedAt    string
}

// InsertExtraction stores one structured-extraction result.
func (s *Store) InsertExtraction(ctx context.Context, e *Extraction) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO extractions (id, document_id, extraction_json, content_hash)
			VALUES (?, ?, ?, ?)`, e.ID, e.DocumentID, e.ExtractionJSON, e.ContentHash)
		if err != nil {
			return ptserrors.Internal("insert extraction", err)
		}
		return nil
	})
}

// ListExtractionsByDocument returns every extraction recorded for document.
func (s *Store) ListExtractionsByDocument(ctx context.Context, documentID string) ([]*Extraction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, extraction_json, content_hash, created_at
		FROM extractions WHERE document_id = ? ORDER BY created_at ASC`, documentID)
	if err != nil {
		return nil, ptserrors.Internal("list extractions", err)
	}
	defer rows.Close()

	var out []*Extraction
	for rows.Next() {
		var e Extraction
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.ExtractionJSON, &e.ContentHash, &e.CreatedAt); err != nil {
			return nil, ptserrors.Internal("scan extraction", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// UpsertKnowledgeNode inserts a new entity node, or returns the id of an
// existing node with the same canonical_name (case-insensitive) and
// entity_type so that repeated mentions of an entity collapse to one node.
func (s *Store) UpsertKnowledgeNode(ctx context.Context, n *KnowledgeNode) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM knowledge_nodes
		WHERE canonical_name = ? COLLATE NOCASE AND entity_type = ?`,
		n.CanonicalName, n.EntityType).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", ptserrors.Internal("look up knowledge node", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO knowledge_nodes (id, canonical_name, entity_type, content_hash)
			VALUES (?, ?, ?, ?)`, n.ID, n.CanonicalName, n.EntityType, n.ContentHash)
		return err
	})
	if err != nil {
		return "", ptserrors.Internal("insert knowledge node", err)
	}
	return n.ID, nil
}

// InsertKnowledgeEdge records a relation between two existing nodes.
func (s *Store) InsertKnowledgeEdge(ctx context.Context, e *KnowledgeEdge) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO knowledge_edges (id, source_node_id, target_node_id, relation)
			VALUES (?, ?, ?, ?)`, e.ID, e.SourceNodeID, e.TargetNodeID, e.Relation)
		if err != nil {
			return ptserrors.Internal("insert knowledge edge", err)
		}
		return nil
	})
}

// ListKnowledgeEdgesByNode returns every edge touching nodeID, either as
// source or target.
func (s *Store) ListKnowledgeEdgesByNode(ctx context.Context, nodeID string) ([]*KnowledgeEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_node_id, target_node_id, relation, created_at
		FROM knowledge_edges WHERE source_node_id = ? OR target_node_id = ?
		ORDER BY created_at ASC`, nodeID, nodeID)
	if err != nil {
		return nil, ptserrors.Internal("list knowledge edges", err)
	}
	defer rows.Close()

	var out []*KnowledgeEdge
	for rows.Next() {
		var e KnowledgeEdge
		if err := rows.Scan(&e.ID, &e.SourceNodeID, &e.TargetNodeID, &e.Relation, &e.CreatedAt); err != nil {
			return nil, ptserrors.Internal("scan knowledge edge", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
