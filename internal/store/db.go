package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
	"github.com/ptts-corpus/ptts/internal/migrate"
)

// Store is the embedded, single-file database backing one corpus: the
// provenance DAG (documents, ocr_results, chunks, embeddings, images,
// provenance) plus the full-text index virtual tables kept in sync by
// triggers; the vector index lives outside the database. One Store owns one database file; a second process
// opening the same file fails fast via the writer lease.
type Store struct {
	mu    sync.RWMutex
	db    *sql.DB
	path  string
	lease *writerLease
}

// DBFileName returns the on-disk file name for a corpus named name.
func DBFileName(name string) string {
	return name + ".db"
}

// Exists reports whether a database file for name already exists under
// storageDir.
func Exists(name, storageDir string) bool {
	return fileExists(filepath.Join(storageDir, DBFileName(name)))
}

// Open creates (if absent) or opens the database file
// <storageDir>/<name>.db, sets pragmas, acquires the writer lease, and
// runs the migrator to bring the schema up to CurrentSchemaVersion.
func Open(ctx context.Context, name, storageDir string) (*Store, error) {
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		return nil, ptserrors.Internal("create storage directory", err)
	}

	path := filepath.Join(storageDir, DBFileName(name))

	lease := newWriterLease(path)
	acquired, err := lease.tryAcquire()
	if err != nil {
		return nil, ptserrors.Internal("acquire database writer lease", err)
	}
	if !acquired {
		return nil, ptserrors.New(ptserrors.KindInternal,
			fmt.Sprintf("database %q is already open by another process", name), nil)
	}

	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lease.release()
		return nil, ptserrors.Internal("open database", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, lease: lease}
	if err := s.applyPragmas(ctx); err != nil {
		_ = db.Close()
		_ = lease.release()
		return nil, err
	}

	if err := migrate.Run(ctx, db); err != nil {
		_ = db.Close()
		_ = lease.release()
		return nil, err
	}

	return s, nil
}

func (s *Store) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536", // ~64 MiB, negative = KiB
		"PRAGMA wal_autocheckpoint = 1000",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return ptserrors.Internal(fmt.Sprintf("apply pragma %q", p), err)
		}
	}
	return nil
}

// DB returns the underlying *sql.DB for callers that need direct access
// (this package's CRUD files, and the provenance engine and lexical index).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database handle and releases the writer lease.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if releaseErr := s.lease.release(); releaseErr != nil && err == nil {
		err = releaseErr
	}
	return err
}

// WithTx runs fn inside a single transaction, committing on success and
// rolling back on any error or panic. Exported so callers outside this
// package (the pipeline orchestrator, combining an OCR result, its
// chunks, and their provenance records into one commit) can share a
// transaction across several Store and provenance writes.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.withTx(ctx, fn)
}

// withTx runs fn inside a single transaction, committing on success and
// rolling back on any error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ptserrors.Internal("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
