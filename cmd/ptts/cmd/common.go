package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ptts-corpus/ptts/internal/collaborator"
	"github.com/ptts-corpus/ptts/internal/embed"
	"github.com/ptts-corpus/ptts/internal/index"
	"github.com/ptts-corpus/ptts/internal/pipeline"
	"github.com/ptts-corpus/ptts/internal/preflight"
	"github.com/ptts-corpus/ptts/internal/provenance"
	"github.com/ptts-corpus/ptts/internal/search"
	"github.com/ptts-corpus/ptts/internal/store"
	"github.com/ptts-corpus/ptts/internal/verify"
)

var (
	storagePathFlag string
	dbNameFlag      string
)

// storageDir resolves the directory holding every corpus database:
// --storage-path, then STORAGE_PATH, then ~/.ptts/data.
func storageDir() string {
	if storagePathFlag != "" {
		return storagePathFlag
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ptts", "data")
	}
	return filepath.Join(home, ".ptts", "data")
}

// currentDBPointerPath is a small marker file recording the last database
// selected with `ptts db select`, so commands need not repeat --db.
func currentDBPointerPath() string {
	return filepath.Join(storageDir(), ".current_db")
}

// resolveDBName resolves --db, then PTTS_DB, then the persisted pointer
// file.
func resolveDBName() (string, error) {
	if dbNameFlag != "" {
		return dbNameFlag, nil
	}
	if v := os.Getenv("PTTS_DB"); v != "" {
		return v, nil
	}
	data, err := os.ReadFile(currentDBPointerPath())
	if err != nil {
		return "", fmt.Errorf("no database selected: pass --db, set PTTS_DB, or run 'ptts db select <name>'")
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", fmt.Errorf("no database selected: pass --db, set PTTS_DB, or run 'ptts db select <name>'")
	}
	return name, nil
}

// setCurrentDB persists name as the default database for future commands.
func setCurrentDB(name string) error {
	dir := storageDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(currentDBPointerPath(), []byte(name), 0o644)
}

// deps bundles every component wired against one open Store. Built once
// per command invocation via openDeps and released with Close.
type deps struct {
	store        *store.Store
	lexical      store.LexicalIndex
	vector       store.VectorStore
	maintainer   *index.Maintainer
	embedder     embed.Embedder
	embedding    collaborator.EmbeddingClient
	ocr          collaborator.OCRClient
	vision       collaborator.VisionClient
	orchestrator *pipeline.Orchestrator
	search       *search.Engine
	provenance   *provenance.Engine
	verify       *verify.Verifier
	vectorPath   string
}

// openOptions controls which collaborators openDeps wires in.
type openOptions struct {
	provider       embed.ProviderType
	model          string
	enableVision   bool
	lexicalBackend string // "" selects the native SQLite FTS5 backend
	ocrMode        store.OCRMode
	maxConcurrent  int
}

func defaultOpenOptions() openOptions {
	return openOptions{provider: embed.ProviderOllama}
}

// openDeps opens the selected database and wires the full dependency
// chain: store, lexical/vector indexes, embedder, collaborators,
// orchestrator, search engine, provenance engine and verifier.
func openDeps(ctx context.Context, opts openOptions) (*deps, error) {
	name, err := resolveDBName()
	if err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, name, storageDir())
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}

	var lexical store.LexicalIndex
	if opts.lexicalBackend == "" || opts.lexicalBackend == string(store.LexicalBackendSQLite) {
		lexical = store.NewSQLiteLexicalIndex(s.DB())
	} else {
		basePath := filepath.Join(storageDir(), name)
		lexical, err = store.NewLexicalIndex(basePath, store.DefaultLexicalConfig(), opts.lexicalBackend)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("open lexical index: %w", err)
		}
	}

	embedder, err := embed.NewEmbedder(ctx, opts.provider, opts.model)
	if err != nil {
		_ = lexical.Close()
		_ = s.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	vectorPath := filepath.Join(storageDir(), name+".hnsw")
	dims := embedder.Dimensions()
	if existing, dimErr := store.ReadHNSWStoreDimensions(vectorPath); dimErr == nil && existing > 0 {
		dims = existing
	}
	vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		_ = embedder.Close()
		_ = lexical.Close()
		_ = s.Close()
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if loadErr := vector.Load(vectorPath); loadErr != nil {
			_ = vector.Close()
			_ = embedder.Close()
			_ = lexical.Close()
			_ = s.Close()
			return nil, fmt.Errorf("load vector store: %w", loadErr)
		}
	}

	maintainer := index.NewMaintainer(lexical, vector)
	embedding := collaborator.NewLocalEmbeddingClient(embedder)

	ocrClient := collaborator.NewDatalabOCRClient(collaborator.DatalabConfig{
		APIKey: os.Getenv(preflight.DatalabAPIKeyEnv),
	})
	var visionClient collaborator.VisionClient
	if opts.enableVision {
		visionClient = collaborator.NewHTTPVisionClient(collaborator.VisionConfig{
			APIKey: os.Getenv(preflight.DatalabAPIKeyEnv),
		})
	}

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.EnableVision = opts.enableVision
	if opts.ocrMode != "" {
		pipelineCfg.OCRMode = opts.ocrMode
	}
	if opts.maxConcurrent > 0 {
		pipelineCfg.MaxConcurrent = opts.maxConcurrent
	}
	orchestrator := pipeline.New(s, maintainer, ocrClient, visionClient, embedding, pipelineCfg)

	return &deps{
		store:        s,
		lexical:      lexical,
		vector:       vector,
		maintainer:   maintainer,
		embedder:     embedder,
		embedding:    embedding,
		ocr:          ocrClient,
		vision:       visionClient,
		orchestrator: orchestrator,
		search:       search.New(s, lexical, vector, embedding),
		provenance:   provenance.New(s.DB()),
		verify:       verify.New(s),
		vectorPath:   vectorPath,
	}, nil
}

// Close persists the vector index and releases every opened resource,
// returning the first error encountered.
func (d *deps) Close() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	record(d.vector.Save(d.vectorPath))
	record(d.vector.Close())
	record(d.lexical.Close())
	record(d.embedder.Close())
	record(d.store.Close())
	return first
}
