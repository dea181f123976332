package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ptts-corpus/ptts/internal/output"
	"github.com/ptts-corpus/ptts/internal/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Create, list, and manage corpus databases",
		Long: `Each corpus lives in its own SQLite database file under the storage
directory (~/.ptts/data by default). Use these subcommands to create a
new corpus, switch between them, and inspect or remove existing ones.`,
	}

	cmd.AddCommand(newDBCreateCmd())
	cmd.AddCommand(newDBListCmd())
	cmd.AddCommand(newDBStatsCmd())
	cmd.AddCommand(newDBDeleteCmd())
	cmd.AddCommand(newDBSelectCmd())

	return cmd
}

func newDBCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new corpus database and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			out := output.New(cmd.OutOrStdout())

			if store.Exists(name, storageDir()) {
				return fmt.Errorf("database %q already exists", name)
			}

			s, err := store.Open(cmd.Context(), name, storageDir())
			if err != nil {
				return fmt.Errorf("create database %q: %w", name, err)
			}
			if err := s.Close(); err != nil {
				return err
			}

			if err := setCurrentDB(name); err != nil {
				return fmt.Errorf("select new database: %w", err)
			}

			out.Success(fmt.Sprintf("Created database %q", name))
			out.Statusf("", "Location: %s", filepath.Join(storageDir(), store.DBFileName(name)))
			return nil
		},
	}
}

func newDBListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known corpus databases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			names, err := listDatabases()
			if err != nil {
				return err
			}

			current, _ := resolveDBName()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(names)
			}

			if len(names) == 0 {
				out.Status("", "No databases found. Run 'ptts db create <name>' to make one.")
				return nil
			}
			for _, n := range names {
				marker := "  "
				if n == current {
					marker = "* "
				}
				out.Status("", marker+n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// readVectorIndexStats loads the selected database's HNSW sidecar file
// just far enough to report its orphan count, without creating an
// embedder. ok is false when the database has no vector index yet.
func readVectorIndexStats(dbName string) (store.HNSWStats, bool, error) {
	vectorPath := filepath.Join(storageDir(), dbName+".hnsw")
	dims, err := store.ReadHNSWStoreDimensions(vectorPath)
	if err != nil {
		return store.HNSWStats{}, false, err
	}
	if dims == 0 {
		return store.HNSWStats{}, false, nil
	}

	vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return store.HNSWStats{}, false, err
	}
	defer func() { _ = vector.Close() }()
	if err := vector.Load(vectorPath); err != nil {
		return store.HNSWStats{}, false, err
	}
	return vector.Stats(), true, nil
}

func listDatabases() ([]string, error) {
	entries, err := os.ReadDir(storageDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".db"))
	}
	sort.Strings(names)
	return names, nil
}

func newDBStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show document/chunk/embedding counts for the selected database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := resolveDBName()
			if err != nil {
				return err
			}
			s, err := store.Open(cmd.Context(), name, storageDir())
			if err != nil {
				return fmt.Errorf("open database %q: %w", name, err)
			}
			defer func() { _ = s.Close() }()

			stats, err := s.GetStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read stats: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			out := output.New(cmd.OutOrStdout())
			out.Statusf("", "Database: %s", name)
			out.Statusf("", "Documents:  %d", stats.TotalDocuments)
			out.Statusf("", "Chunks:     %d", stats.TotalChunks)
			out.Statusf("", "Embeddings: %d", stats.TotalEmbeddings)
			out.Statusf("", "Images:     %d", stats.TotalImages)
			out.Newline()
			for status, count := range stats.ByStatus {
				out.Statusf("", "  %s: %d", status, count)
			}

			if vecStats, ok, err := readVectorIndexStats(name); err != nil {
				return fmt.Errorf("read vector index stats: %w", err)
			} else if ok {
				out.Newline()
				out.Statusf("", "Vector index: %d active, %d orphaned (lazy-deleted)", vecStats.ValidIDs, vecStats.Orphans)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDBDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a corpus database and its indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			out := output.New(cmd.OutOrStdout())

			if !store.Exists(name, storageDir()) {
				return fmt.Errorf("database %q does not exist", name)
			}
			if !force {
				return fmt.Errorf("refusing to delete %q without --force", name)
			}

			paths := []string{
				filepath.Join(storageDir(), store.DBFileName(name)),
				filepath.Join(storageDir(), store.DBFileName(name)+"-wal"),
				filepath.Join(storageDir(), store.DBFileName(name)+"-shm"),
				filepath.Join(storageDir(), name+".hnsw"),
				filepath.Join(storageDir(), name+".bleve"),
			}
			for _, p := range paths {
				if err := os.RemoveAll(p); err != nil {
					return fmt.Errorf("remove %s: %w", p, err)
				}
			}

			if current, _ := resolveDBName(); current == name {
				_ = os.Remove(currentDBPointerPath())
			}

			out.Success(fmt.Sprintf("Deleted database %q", name))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Required to confirm deletion")
	return cmd
}

func newDBSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <name>",
		Short: "Select the default database for subsequent commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !store.Exists(name, storageDir()) {
				return fmt.Errorf("database %q does not exist; run 'ptts db create %s' first", name, name)
			}
			if err := setCurrentDB(name); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Success(fmt.Sprintf("Selected database %q", name))
			return nil
		},
	}
}
