package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ptts-corpus/ptts/internal/output"
	"github.com/ptts-corpus/ptts/internal/store"
)

func newProcessCmd() *cobra.Command {
	var (
		ocrMode       string
		enableVision  bool
		maxConcurrent int
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the OCR/chunk/embed/vision pipeline over pending documents",
		Long: `Drives every document registered as pending through OCR, chunking,
embedding, and (with --vision) image description, bounded by a worker
pool. Safe to interrupt and rerun: any document left mid-flight from a
previous run is reset to pending before new work starts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := defaultOpenOptions()
			opts.enableVision = enableVision
			opts.maxConcurrent = maxConcurrent
			switch ocrMode {
			case "fast":
				opts.ocrMode = store.OCRModeFast
			case "accurate":
				opts.ocrMode = store.OCRModeAccurate
			case "balanced", "":
				opts.ocrMode = store.OCRModeBalanced
			default:
				return fmt.Errorf("invalid --ocr-mode %q (use: fast, balanced, accurate)", ocrMode)
			}

			d, err := openDeps(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			out := output.New(cmd.OutOrStdout())

			if err := d.orchestrator.RecoverFromRestart(ctx); err != nil {
				return fmt.Errorf("recover from previous run: %w", err)
			}

			out.Status("", "Processing pending documents...")
			if err := d.orchestrator.Run(ctx); err != nil {
				return fmt.Errorf("pipeline run failed: %w", err)
			}

			out.Success("Pipeline run complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&ocrMode, "ocr-mode", "balanced", "OCR speed/accuracy tradeoff: fast, balanced, accurate")
	cmd.Flags().BoolVar(&enableVision, "vision", false, "Describe extracted images with the vision collaborator")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum documents processed concurrently (default: pipeline default)")

	return cmd
}
