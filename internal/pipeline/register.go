package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
	"github.com/ptts-corpus/ptts/internal/gitignore"
	"github.com/ptts-corpus/ptts/internal/index"
	"github.com/ptts-corpus/ptts/internal/provenance"
	"github.com/ptts-corpus/ptts/internal/store"
)

// RegisteredDocument reports the outcome of registering one file.
type RegisteredDocument struct {
	Path     string
	Document *store.Document
	Skipped  bool // file hash already registered
}

// RegisterFiles inserts one pending Document plus its root DOCUMENT
// provenance node (chain_depth 0) per path, skipping any file whose
// content hash already has a Document row (invariant: file_hash is
// effectively deduplicated at registration, not at process time).
func (o *Orchestrator) RegisterFiles(ctx context.Context, paths []string) ([]RegisteredDocument, error) {
	out := make([]RegisteredDocument, 0, len(paths))
	for _, p := range paths {
		rd, err := o.registerOne(ctx, p)
		if err != nil {
			return out, fmt.Errorf("register %s: %w", p, err)
		}
		out = append(out, rd)
	}
	return out, nil
}

// RegisterDirectory walks root recursively and registers every regular
// file whose extension is in extensions (case-insensitive, dot-prefixed;
// empty means accept any file). A .pttsignore file at root, if present,
// is parsed with gitignore syntax and excludes matching paths.
func (o *Orchestrator) RegisterDirectory(ctx context.Context, root string, extensions []string) ([]RegisteredDocument, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		allowed[strings.ToLower(e)] = true
	}

	matcher := gitignore.New()
	_ = matcher.AddFromFile(filepath.Join(root, ".pttsignore"), root)

	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if matcher.Match(path, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, ptserrors.Internal("walk directory", err)
	}

	return o.RegisterFiles(ctx, paths)
}

func (o *Orchestrator) registerOne(ctx context.Context, path string) (RegisteredDocument, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return RegisteredDocument{}, ptserrors.Internal("resolve path", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return RegisteredDocument{}, ptserrors.New(ptserrors.KindFileNotFound, absPath, err)
	}

	contentHash, err := index.Hash(store.ProvDocument, index.DocumentInput{FileBytes: data})
	if err != nil {
		return RegisteredDocument{}, err
	}

	existing, err := o.store.GetDocumentByHash(ctx, contentHash)
	if err != nil {
		return RegisteredDocument{}, err
	}
	if existing != nil {
		return RegisteredDocument{Path: absPath, Document: existing, Skipped: true}, nil
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return RegisteredDocument{}, ptserrors.Internal("stat file", err)
	}

	docID := uuid.New().String()
	provID, err := o.provenance.Create(ctx, provenance.CreateParams{
		Type:             store.ProvDocument,
		SourceType:       "document",
		SourcePath:       &absPath,
		RootDocumentID:   docID,
		ContentHash:      contentHash,
		FileHash:         &contentHash,
		Processor:        "registration",
		ProcessorVersion: "1",
		ChainDepth:       0,
		ChainPath:        []store.ProvenanceType{store.ProvDocument},
	})
	if err != nil {
		return RegisteredDocument{}, err
	}

	d := &store.Document{
		ID:               docID,
		FilePath:         absPath,
		FileName:         filepath.Base(absPath),
		FileSize:         info.Size(),
		FileType:         strings.TrimPrefix(strings.ToLower(filepath.Ext(absPath)), "."),
		FileHash:         contentHash,
		Status:           store.DocumentPending,
		RootProvenanceID: provID,
	}
	if err := o.store.InsertDocument(ctx, d); err != nil {
		return RegisteredDocument{}, err
	}

	return RegisteredDocument{Path: absPath, Document: d}, nil
}
