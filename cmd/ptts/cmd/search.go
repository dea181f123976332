package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ptts-corpus/ptts/internal/output"
	"github.com/ptts-corpus/ptts/internal/search"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search a corpus: lexical, vector, or hybrid",
	}

	cmd.AddCommand(newSearchLexicalCmd())
	cmd.AddCommand(newSearchVectorCmd())
	cmd.AddCommand(newSearchHybridCmd())

	return cmd
}

func newSearchLexicalCmd() *cobra.Command {
	var (
		matchType  string
		limit      int
		provenance bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "lexical <query>",
		Short: "Exact, fuzzy, or regex substring search over chunk text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			resp, err := d.search.Lexical(ctx, search.LexicalParams{
				Query:             args[0],
				MatchType:         search.MatchType(matchType),
				Limit:             limit,
				IncludeProvenance: provenance,
			})
			if err != nil {
				return fmt.Errorf("lexical search: %w", err)
			}
			return printSearchResponse(cmd, resp, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&matchType, "match", "fuzzy", "Match type: exact, fuzzy, regex")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results to return")
	cmd.Flags().BoolVar(&provenance, "provenance", false, "Attach each result's provenance chain")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newSearchVectorCmd() *cobra.Command {
	var (
		limit      int
		threshold  float64
		hasThresh  bool
		provenance bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "vector <query>",
		Short: "Nearest-neighbor search over chunk embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			params := search.VectorParams{
				Query:             args[0],
				Limit:             limit,
				IncludeProvenance: provenance,
			}
			if hasThresh {
				params.SimilarityThreshold = &threshold
			}

			resp, err := d.search.Vector(ctx, params)
			if err != nil {
				return fmt.Errorf("vector search: %w", err)
			}
			return printSearchResponse(cmd, resp, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results to return")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum cosine similarity to include")
	cmd.Flags().BoolVar(&provenance, "provenance", false, "Attach each result's provenance chain")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		hasThresh = cmd.Flags().Changed("threshold")
		return nil
	}

	return cmd
}

func newSearchHybridCmd() *cobra.Command {
	var (
		limit          int
		semanticWeight float64
		keywordWeight  float64
		provenance     bool
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "hybrid <query>",
		Short: "Reciprocal-rank-fused lexical + vector search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			weights := search.Weights{Semantic: semanticWeight, Keyword: keywordWeight}
			if !weights.Valid() {
				return fmt.Errorf("--semantic-weight and --keyword-weight must sum to 1.0 (got %.3f + %.3f)", semanticWeight, keywordWeight)
			}

			resp, err := d.search.Hybrid(ctx, search.HybridParams{
				Query:             args[0],
				SemanticWeight:    semanticWeight,
				KeywordWeight:     keywordWeight,
				Limit:             limit,
				IncludeProvenance: provenance,
			})
			if err != nil {
				return fmt.Errorf("hybrid search: %w", err)
			}
			return printSearchResponse(cmd, resp, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results to return")
	cmd.Flags().Float64Var(&semanticWeight, "semantic-weight", 0.5, "Weight given to vector rank in fusion")
	cmd.Flags().Float64Var(&keywordWeight, "keyword-weight", 0.5, "Weight given to keyword rank in fusion")
	cmd.Flags().BoolVar(&provenance, "provenance", false, "Attach each result's provenance chain")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printSearchResponse(cmd *cobra.Command, resp *search.Response, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	out := output.New(cmd.OutOrStdout())
	if resp.Total == 0 {
		out.Status("", "No results.")
		return nil
	}
	for i, r := range resp.Results {
		out.Statusf("", "%d. [%.4f] %s  (%s:%d)", i+1, r.Score, r.ChunkID, r.SourceFileName, r.ChunkIndex)
		out.Statusf("", "   %s", truncate(r.OriginalText, 160))
	}
	out.Newline()
	out.Statusf("", "%d result(s)", resp.Total)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
