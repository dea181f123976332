// Package provenance implements the Provenance Engine: creation and
// traversal of the content-addressed DAG, with the chain-depth and
// parent-consistency invariants enforced at insert time.
package provenance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
	"github.com/ptts-corpus/ptts/internal/store"
)

// CreateParams is the input to Create. ParentIDs is the ordered list from
// root to immediate parent; it must be empty for a DOCUMENT node and must
// end in ParentID otherwise.
type CreateParams struct {
	Type               store.ProvenanceType
	SourceType         string
	SourcePath         *string
	SourceID           *string
	RootDocumentID     string
	Location           map[string]any
	ContentHash        string
	InputHash          *string
	FileHash           *string
	Processor          string
	ProcessorVersion   string
	ProcessingParams   map[string]any
	ProcessingDuration *int64
	QualityScore       *float64
	ParentID           *string
	ParentIDs          []string
	ChainDepth         int
	ChainPath          []store.ProvenanceType
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting Create's
// validation-and-insert logic run against either a standalone connection
// or a transaction a caller already holds.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Engine creates and reads provenance records against a single Store.
type Engine struct {
	db *sql.DB
}

// New returns a provenance Engine backed by db.
func New(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// Create validates parent/depth consistency and inserts a new provenance
// node, returning its id.
func (e *Engine) Create(ctx context.Context, p CreateParams) (string, error) {
	return create(ctx, e.db, p)
}

// CreateTx is Create against a transaction the caller already holds, so a
// provenance node can be committed atomically alongside the store writes
// it describes (an OCR result and its chunks, for instance).
func (e *Engine) CreateTx(ctx context.Context, tx *sql.Tx, p CreateParams) (string, error) {
	return create(ctx, tx, p)
}

func create(ctx context.Context, db execer, p CreateParams) (string, error) {
	if p.ParentID != nil {
		var parentDepth int
		err := db.QueryRowContext(ctx, `SELECT chain_depth FROM provenance WHERE id = ?`, *p.ParentID).Scan(&parentDepth)
		if err == sql.ErrNoRows {
			return "", ptserrors.ChainBroken(fmt.Sprintf("parent provenance node %s does not exist", *p.ParentID))
		}
		if err != nil {
			return "", ptserrors.Internal("look up parent provenance node", err)
		}
		if parentDepth != p.ChainDepth-1 {
			return "", ptserrors.ChainBroken(fmt.Sprintf("parent chain_depth %d does not precede new chain_depth %d", parentDepth, p.ChainDepth))
		}
		if len(p.ParentIDs) == 0 || p.ParentIDs[len(p.ParentIDs)-1] != *p.ParentID {
			return "", ptserrors.ChainBroken("parent_ids must end with parent_id")
		}
	} else if p.ChainDepth != 0 {
		return "", ptserrors.ChainBroken("only a DOCUMENT node may omit parent_id")
	}

	if p.RootDocumentID == "" {
		return "", ptserrors.Validation("root_document_id is required")
	}
	if p.Type != store.ProvDocument {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, p.RootDocumentID).Scan(&exists)
		if err == sql.ErrNoRows {
			return "", ptserrors.ChainBroken(fmt.Sprintf("root_document_id %s does not exist", p.RootDocumentID))
		}
		if err != nil {
			return "", ptserrors.Internal("look up root document", err)
		}
	}

	id := uuid.New().String()

	locationJSON, err := marshalOptional(p.Location)
	if err != nil {
		return "", ptserrors.Internal("marshal location", err)
	}
	paramsJSON, err := marshalOptional(p.ProcessingParams)
	if err != nil {
		return "", ptserrors.Internal("marshal processing_params", err)
	}
	parentIDsJSON, err := json.Marshal(p.ParentIDs)
	if err != nil {
		return "", ptserrors.Internal("marshal parent_ids", err)
	}
	chainPathJSON, err := json.Marshal(p.ChainPath)
	if err != nil {
		return "", ptserrors.Internal("marshal chain_path", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO provenance (
			id, type, source_type, source_path, source_id, root_document_id,
			location_json, content_hash, input_hash, file_hash,
			processor, processor_version, processing_params, processing_duration_ms,
			quality_score, parent_id, parent_ids_json, chain_depth, chain_path_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(p.Type), p.SourceType, p.SourcePath, p.SourceID, p.RootDocumentID,
		locationJSON, p.ContentHash, p.InputHash, p.FileHash,
		p.Processor, p.ProcessorVersion, paramsJSON, p.ProcessingDuration,
		p.QualityScore, p.ParentID, string(parentIDsJSON), p.ChainDepth, string(chainPathJSON),
	)
	if err != nil {
		return "", ptserrors.Internal("insert provenance record", err)
	}

	return id, nil
}

// Get returns the provenance record for id, or nil if it does not exist.
func (e *Engine) Get(ctx context.Context, id string) (*store.ProvenanceRecord, error) {
	row := e.db.QueryRowContext(ctx, provenanceSelectCols+` WHERE id = ?`, id)
	rec, err := scanProvenance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("get provenance record", err)
	}
	return rec, nil
}

// GetChain walks from id back to its root, returning the node, its
// ancestors ordered by ascending depth (root first), and whether the
// chain reaches a DOCUMENT node matching root_document_id.
func (e *Engine) GetChain(ctx context.Context, id string) (*store.Chain, error) {
	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	var ancestors []*store.ProvenanceRecord
	cursor := current
	for cursor.ParentID != nil {
		parent, err := e.Get(ctx, *cursor.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		ancestors = append([]*store.ProvenanceRecord{parent}, ancestors...)
		cursor = parent
	}

	isComplete := len(ancestors) > 0 && ancestors[0].Type == store.ProvDocument && ancestors[0].ID == current.RootDocumentID
	if current.Type == store.ProvDocument {
		isComplete = current.ID == current.RootDocumentID
	}

	return &store.Chain{Current: current, Ancestors: ancestors, IsComplete: isComplete}, nil
}

// GetByRoot returns every node in the subtree rooted at rootID.
func (e *Engine) GetByRoot(ctx context.Context, rootID string) ([]*store.ProvenanceRecord, error) {
	rows, err := e.db.QueryContext(ctx, provenanceSelectCols+` WHERE root_document_id = ? ORDER BY chain_depth ASC, created_at ASC`, rootID)
	if err != nil {
		return nil, ptserrors.Internal("query provenance by root", err)
	}
	defer rows.Close()

	var out []*store.ProvenanceRecord
	for rows.Next() {
		rec, err := scanProvenance(rows)
		if err != nil {
			return nil, ptserrors.Internal("scan provenance record", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetBySourceID returns the provenance node of type typ whose source_id
// equals sourceID, or nil if none exists. Used to resolve a row in one of
// the base tables (a chunk, an embedding, an image) back to the
// provenance node describing how it was produced.
func (e *Engine) GetBySourceID(ctx context.Context, typ store.ProvenanceType, sourceID string) (*store.ProvenanceRecord, error) {
	row := e.db.QueryRowContext(ctx, provenanceSelectCols+` WHERE type = ? AND source_id = ?`, string(typ), sourceID)
	rec, err := scanProvenance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ptserrors.Internal("get provenance record by source", err)
	}
	return rec, nil
}

const provenanceSelectCols = `SELECT
	id, type, source_type, source_path, source_id, root_document_id,
	location_json, content_hash, input_hash, file_hash,
	processor, processor_version, processing_params, processing_duration_ms,
	quality_score, parent_id, parent_ids_json, chain_depth, chain_path_json, created_at
	FROM provenance`

type scanner interface {
	Scan(dest ...any) error
}

func scanProvenance(s scanner) (*store.ProvenanceRecord, error) {
	var rec store.ProvenanceRecord
	var typ, createdAt string
	err := s.Scan(
		&rec.ID, &typ, &rec.SourceType, &rec.SourcePath, &rec.SourceID, &rec.RootDocumentID,
		&rec.LocationJSON, &rec.ContentHash, &rec.InputHash, &rec.FileHash,
		&rec.Processor, &rec.ProcessorVersion, &rec.ProcessingParams, &rec.ProcessingDuration,
		&rec.QualityScore, &rec.ParentID, &rec.ParentIDsJSON, &rec.ChainDepth, &rec.ChainPathJSON, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Type = store.ProvenanceType(typ)
	if t, perr := store.ParseTime(createdAt); perr == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func marshalOptional(m map[string]any) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
