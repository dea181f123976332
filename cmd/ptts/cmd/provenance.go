package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ptts-corpus/ptts/internal/output"
)

func newProvenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provenance",
		Short: "Inspect and verify provenance chains",
	}

	cmd.AddCommand(newProvenanceChainCmd())
	cmd.AddCommand(newProvenanceVerifyCmd())
	cmd.AddCommand(newProvenanceExportCmd())

	return cmd
}

func newProvenanceChainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain <provenance-id>",
		Short: "Print a provenance chain from its root document down to this node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			chain, err := d.provenance.ExportChain(ctx, args[0])
			if err != nil {
				return fmt.Errorf("export chain: %w", err)
			}
			if chain == nil {
				return fmt.Errorf("provenance node %q not found", args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(chain)
		},
	}

	return cmd
}

func newProvenanceExportCmd() *cobra.Command {
	var w3c bool

	cmd := &cobra.Command{
		Use:   "export <provenance-id>",
		Short: "Export a provenance chain as plain JSON or W3C PROV-DM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if w3c {
				doc, err := d.provenance.ExportW3C(ctx, args[0])
				if err != nil {
					return fmt.Errorf("export W3C PROV-DM: %w", err)
				}
				if doc == nil {
					return fmt.Errorf("provenance node %q not found", args[0])
				}
				return enc.Encode(doc)
			}

			chain, err := d.provenance.ExportChain(ctx, args[0])
			if err != nil {
				return fmt.Errorf("export chain: %w", err)
			}
			if chain == nil {
				return fmt.Errorf("provenance node %q not found", args[0])
			}
			return enc.Encode(chain)
		},
	}

	cmd.Flags().BoolVar(&w3c, "w3c", false, "Export as W3C PROV-DM instead of plain JSON")
	return cmd
}

func newProvenanceVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify content hashes and chain integrity",
	}

	cmd.AddCommand(newProvenanceVerifyHashCmd())
	cmd.AddCommand(newProvenanceVerifyChainCmd())
	cmd.AddCommand(newProvenanceVerifyDatabaseCmd())
	cmd.AddCommand(newProvenanceVerifyFileCmd())

	return cmd
}

func newProvenanceVerifyHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <provenance-id>",
		Short: "Recompute and compare one node's content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			hc, err := d.verify.VerifyContentHash(ctx, args[0])
			if err != nil {
				return fmt.Errorf("verify content hash: %w", err)
			}

			out := output.New(cmd.OutOrStdout())
			if hc.Valid {
				out.Success("Content hash matches")
			} else {
				out.Errorf("Content hash mismatch: expected %s, computed %s", hc.Expected, hc.Computed)
			}
			return nil
		},
	}
}

func newProvenanceVerifyChainCmd() *cobra.Command {
	var maxFailed int

	cmd := &cobra.Command{
		Use:   "chain <provenance-id>",
		Short: "Verify parent/depth consistency and content hashes up the chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			check, err := d.verify.VerifyChain(ctx, args[0], maxFailed)
			if err != nil {
				return fmt.Errorf("verify chain: %w", err)
			}

			out := output.New(cmd.OutOrStdout())
			out.Statusf("", "Verified: %d", check.Verified)
			if check.ChainIntact && len(check.Failed) == 0 {
				out.Success("Chain intact")
				return nil
			}
			out.Error("Chain verification failed")
			for _, f := range check.Failed {
				out.Statusf("", "  %s: %s", f.ProvenanceID, f.Reason)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxFailed, "max-failed", 20, "Cap on reported failures (0 = unbounded)")
	return cmd
}

func newProvenanceVerifyDatabaseCmd() *cobra.Command {
	var maxFailedPerType int

	cmd := &cobra.Command{
		Use:   "database",
		Short: "Verify every provenance node in the selected corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			report, err := d.verify.VerifyDatabase(ctx, maxFailedPerType)
			if err != nil {
				return fmt.Errorf("verify database: %w", err)
			}

			out := output.New(cmd.OutOrStdout())
			for typ, tc := range report.ByType {
				out.Statusf("", "%-18s total=%-6d verified=%-6d failed=%d", typ, tc.Total, tc.Verified, len(tc.Failed))
			}
			if len(report.ChainErrors) > 0 {
				out.Warningf("%d chain consistency error(s)", len(report.ChainErrors))
			}
			if report.Overflow > 0 {
				out.Statusf("", "(%d additional failures not shown)", report.Overflow)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxFailedPerType, "max-failed-per-type", 20, "Cap on reported failures per type (0 = unbounded)")
	return cmd
}

func newProvenanceVerifyFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file <document-id>",
		Short: "Rehash a document's source file and compare it to the stored file_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			hc, err := d.verify.VerifyFileIntegrity(ctx, args[0])
			if err != nil {
				return fmt.Errorf("verify file integrity: %w", err)
			}

			out := output.New(cmd.OutOrStdout())
			if hc.Valid {
				out.Success("File hash matches")
			} else {
				out.Errorf("File hash mismatch: expected %s, computed %s", hc.Expected, hc.Computed)
			}
			return nil
		},
	}
}
