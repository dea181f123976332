package migrate

import (
	"context"
	"database/sql"
)

// applyV1 creates the full bring-up schema: base tables, indexes, the
// lexical full-text virtual table, and the triggers that keep it in sync
// with chunks. There is no earlier version to migrate from; this step
// also runs, unmodified, against an empty database.
func applyV1(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range v1Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var v1Statements = []string{
	`CREATE TABLE documents (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		file_type TEXT NOT NULL,
		file_hash TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending','processing','complete','failed')),
		page_count INTEGER,
		title TEXT,
		author TEXT,
		subject TEXT,
		root_provenance_id TEXT NOT NULL UNIQUE,
		error_message TEXT,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
	`CREATE INDEX idx_documents_status ON documents(status)`,
	`CREATE INDEX idx_documents_file_hash ON documents(file_hash)`,

	`CREATE TABLE ocr_results (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		extracted_text TEXT NOT NULL,
		text_length INTEGER NOT NULL,
		external_request_id TEXT,
		mode TEXT NOT NULL CHECK (mode IN ('fast','balanced','accurate')),
		page_count INTEGER NOT NULL,
		quality_score REAL,
		cost REAL,
		content_hash TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		structured_json TEXT,
		extras_json TEXT,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
	`CREATE INDEX idx_ocr_results_document_id ON ocr_results(document_id)`,

	`CREATE TABLE chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		ocr_result_id TEXT NOT NULL REFERENCES ocr_results(id),
		text TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		character_start INTEGER NOT NULL,
		character_end INTEGER NOT NULL,
		page_number INTEGER,
		page_range TEXT,
		overlap_previous INTEGER NOT NULL DEFAULT 0,
		overlap_next INTEGER NOT NULL DEFAULT 0,
		embedding_status TEXT NOT NULL DEFAULT 'pending' CHECK (embedding_status IN ('pending','complete','failed')),
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
	`CREATE INDEX idx_chunks_document_id ON chunks(document_id)`,
	`CREATE INDEX idx_chunks_ocr_result_id ON chunks(ocr_result_id)`,
	`CREATE INDEX idx_chunks_embedding_status ON chunks(embedding_status)`,
	`CREATE INDEX idx_chunks_page_number ON chunks(page_number)`,

	`CREATE TABLE images (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		ocr_result_id TEXT NOT NULL REFERENCES ocr_results(id),
		page_number INTEGER NOT NULL,
		bbox_x REAL NOT NULL,
		bbox_y REAL NOT NULL,
		bbox_w REAL NOT NULL,
		bbox_h REAL NOT NULL,
		image_index INTEGER NOT NULL,
		format TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		extracted_path TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		vision_status TEXT NOT NULL DEFAULT 'pending' CHECK (vision_status IN ('pending','processing','complete','failed')),
		vision_description TEXT,
		structured_json TEXT,
		confidence REAL,
		tokens_used INTEGER,
		content_hash TEXT,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
	`CREATE INDEX idx_images_document_id ON images(document_id)`,
	`CREATE INDEX idx_images_page_number ON images(page_number)`,
	`CREATE INDEX idx_images_vision_pending ON images(vision_status) WHERE vision_status = 'pending'`,

	`CREATE TABLE embeddings (
		id TEXT PRIMARY KEY,
		chunk_id TEXT REFERENCES chunks(id),
		image_id TEXT REFERENCES images(id),
		extraction_id TEXT,
		vector BLOB NOT NULL,
		original_text TEXT NOT NULL,
		source_file_path TEXT NOT NULL,
		source_file_name TEXT NOT NULL,
		source_file_hash TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		page_number INTEGER,
		page_range TEXT,
		character_start INTEGER NOT NULL,
		character_end INTEGER NOT NULL,
		model TEXT NOT NULL,
		model_version TEXT NOT NULL,
		task_type TEXT NOT NULL CHECK (task_type IN ('document','query')),
		inference_mode TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		CHECK (
			(chunk_id IS NOT NULL) + (image_id IS NOT NULL) + (extraction_id IS NOT NULL) = 1
		)
	)`,
	`CREATE INDEX idx_embeddings_chunk_id ON embeddings(chunk_id)`,
	`CREATE INDEX idx_embeddings_image_id ON embeddings(image_id)`,

	`CREATE TABLE provenance (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL CHECK (type IN (
			'DOCUMENT','OCR_RESULT','CHUNK','IMAGE','VLM_DESCRIPTION','EMBEDDING',
			'EXTRACTION','FORM_FILL','COMPARISON','CLUSTERING','KNOWLEDGE_GRAPH','ENTITY_EXTRACTION'
		)),
		source_type TEXT NOT NULL,
		source_path TEXT,
		source_id TEXT,
		root_document_id TEXT NOT NULL,
		location_json TEXT,
		content_hash TEXT NOT NULL,
		input_hash TEXT,
		file_hash TEXT,
		processor TEXT NOT NULL,
		processor_version TEXT NOT NULL,
		processing_params TEXT,
		processing_duration_ms INTEGER,
		quality_score REAL,
		parent_id TEXT REFERENCES provenance(id),
		parent_ids_json TEXT NOT NULL,
		chain_depth INTEGER NOT NULL,
		chain_path_json TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
	`CREATE INDEX idx_provenance_root_document_id ON provenance(root_document_id)`,
	`CREATE INDEX idx_provenance_content_hash ON provenance(content_hash)`,
	`CREATE INDEX idx_provenance_parent_id ON provenance(parent_id)`,
	`CREATE INDEX idx_provenance_source_id ON provenance(source_id)`,

	`CREATE TABLE database_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	// Extension tables supplementing the core DAG (structured extraction
	// output and the knowledge graph built over extracted entities).
	`CREATE TABLE extractions (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		extraction_json TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
	`CREATE INDEX idx_extractions_document_id ON extractions(document_id)`,

	`CREATE TABLE knowledge_nodes (
		id TEXT PRIMARY KEY,
		canonical_name TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
	`CREATE INDEX idx_knowledge_nodes_name_nocase ON knowledge_nodes(canonical_name COLLATE NOCASE)`,

	`CREATE TABLE knowledge_edges (
		id TEXT PRIMARY KEY,
		source_node_id TEXT NOT NULL REFERENCES knowledge_nodes(id),
		target_node_id TEXT NOT NULL REFERENCES knowledge_nodes(id),
		relation TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
	`CREATE INDEX idx_knowledge_edges_source ON knowledge_edges(source_node_id)`,
	`CREATE INDEX idx_knowledge_edges_target ON knowledge_edges(target_node_id)`,

	// Lexical index: external-content FTS5 over chunks.text, porter
	// stemmer + unicode tokenizer, kept in sync by triggers rather than
	// application code (invariant 6).
	`CREATE VIRTUAL TABLE chunks_fts USING fts5(
		text,
		content = 'chunks',
		content_rowid = 'rowid',
		tokenize = 'porter unicode61'
	)`,
	`CREATE TRIGGER chunks_fts_ai AFTER INSERT ON chunks BEGIN
		INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
	END`,
	`CREATE TRIGGER chunks_fts_ad AFTER DELETE ON chunks BEGIN
		INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
	END`,
	`CREATE TRIGGER chunks_fts_au AFTER UPDATE ON chunks BEGIN
		INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
		INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
	END`,

	// Lexical index over image vision descriptions, filtered to
	// image-sourced rows per the Store's table summary.
	`CREATE VIRTUAL TABLE images_fts USING fts5(
		vision_description,
		content = 'images',
		content_rowid = 'rowid',
		tokenize = 'porter unicode61'
	)`,
	`CREATE TRIGGER images_fts_ai AFTER INSERT ON images WHEN new.vision_description IS NOT NULL BEGIN
		INSERT INTO images_fts(rowid, vision_description) VALUES (new.rowid, new.vision_description);
	END`,
	`CREATE TRIGGER images_fts_ad AFTER DELETE ON images WHEN old.vision_description IS NOT NULL BEGIN
		INSERT INTO images_fts(images_fts, rowid, vision_description) VALUES ('delete', old.rowid, old.vision_description);
	END`,
	`CREATE TRIGGER images_fts_au AFTER UPDATE ON images BEGIN
		INSERT INTO images_fts(images_fts, rowid, vision_description) VALUES ('delete', old.rowid, old.vision_description);
		INSERT INTO images_fts(rowid, vision_description) SELECT new.rowid, new.vision_description WHERE new.vision_description IS NOT NULL;
	END`,
}
