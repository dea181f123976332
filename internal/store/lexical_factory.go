package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// LexicalBackend names a pluggable lexical-index implementation that
// mirrors the chunks table for keyword search. The default is
// LexicalBackendSQLite, a thin reader over the chunks_fts/images_fts
// FTS5 virtual tables that the main database's own triggers keep in sync
// (see lexical_sqlite.go, db.go, the migrate package); this factory also
// constructs the alternate, application-managed Bleve backend for corpora
// configured to use it instead.
type LexicalBackend string

const (
	// LexicalBackendSQLite is the native backend: chunks_fts/images_fts
	// inside the main database file, requiring no separate index
	// directory. Constructed directly via NewSQLiteLexicalIndex since it
	// needs the open *sql.DB rather than a basePath.
	LexicalBackendSQLite LexicalBackend = "sqlite"

	// LexicalBackendBleve uses Bleve v2 with its own on-disk index,
	// kept in lockstep by explicit calls from the ingestion write path.
	LexicalBackendBleve LexicalBackend = "bleve"
)

// NewLexicalIndex constructs the alternate, on-disk lexical-index backend
// rooted at basePath (without extension). Only "bleve" is supported here;
// "sqlite" is served natively via NewSQLiteLexicalIndex(db) since it has
// no standalone on-disk form to root at basePath.
func NewLexicalIndex(basePath string, config LexicalConfig, backend string) (LexicalIndex, error) {
	switch LexicalBackend(backend) {
	case LexicalBackendBleve:
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveLexicalIndex(path, config)
	default:
		return nil, fmt.Errorf("store: unknown lexical backend %q (valid options: bleve)", backend)
	}
}

// LexicalIndexPath returns the on-disk path for the alternate lexical
// index rooted at dataDir.
func LexicalIndexPath(dataDir string) string {
	return filepath.Join(dataDir, "lexical") + ".bleve"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
