package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ptts-corpus/ptts/internal/output"
	"github.com/ptts-corpus/ptts/internal/store"
)

func newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Inspect registered documents",
	}

	cmd.AddCommand(newDocumentsListCmd())
	cmd.AddCommand(newDocumentsGetCmd())
	cmd.AddCommand(newDocumentsDeleteCmd())

	return cmd
}

func newDocumentsListCmd() *cobra.Command {
	var (
		status     string
		limit      int
		offset     int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, optionally filtered by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			filter := store.DocumentFilter{Limit: limit, Offset: offset}
			if status != "" {
				s := store.DocumentStatus(status)
				filter.Status = &s
			}

			docs, err := d.store.ListDocuments(ctx, filter)
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(docs)
			}

			out := output.New(cmd.OutOrStdout())
			if len(docs) == 0 {
				out.Status("", "No documents found.")
				return nil
			}
			for _, doc := range docs {
				out.Statusf("", "%s  %-10s  %s", doc.ID, doc.Status, doc.FilePath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status: pending, processing, complete, failed")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum documents to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset into the result set")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newDocumentsGetCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <document-id>",
		Short: "Show one document's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			doc, err := d.store.GetDocument(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get document: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}

			out := output.New(cmd.OutOrStdout())
			out.Statusf("", "ID:          %s", doc.ID)
			out.Statusf("", "Path:        %s", doc.FilePath)
			out.Statusf("", "Status:      %s", doc.Status)
			out.Statusf("", "File hash:   %s", doc.FileHash)
			out.Statusf("", "Root prov.:  %s", doc.RootProvenanceID)
			if doc.ErrorMessage != nil {
				out.Statusf("", "Error:       %s", *doc.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDocumentsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and every artifact derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to delete document %q without --force", args[0])
			}

			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			artifacts, err := d.store.DeleteDocument(ctx, args[0])
			if err != nil {
				return fmt.Errorf("delete document: %w", err)
			}

			for _, chunkID := range artifacts.ChunkIDs {
				if err := d.maintainer.RemoveChunk(ctx, chunkID); err != nil {
					return fmt.Errorf("evict chunk %s from lexical index: %w", chunkID, err)
				}
			}
			for _, embID := range artifacts.EmbeddingIDs {
				if err := d.maintainer.RemoveEmbedding(ctx, embID); err != nil {
					return fmt.Errorf("evict embedding %s from vector index: %w", embID, err)
				}
			}
			for _, path := range artifacts.ImagePaths {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove extracted image %s: %w", path, err)
				}
			}

			output.New(cmd.OutOrStdout()).Success("Document deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Required to confirm deletion")
	return cmd
}
