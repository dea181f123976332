package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ptts-corpus/ptts/internal/output"
	"github.com/ptts-corpus/ptts/internal/pipeline"
)

func newRegisterCmd() *cobra.Command {
	var extensions []string

	cmd := &cobra.Command{
		Use:   "register <path>...",
		Short: "Register files or a directory for processing",
		Long: `Register one or more files, or every matching file under a directory,
as pending documents. Each registration creates the root DOCUMENT
provenance node and dedupes against any document already registered
with the same content hash.

A .pttsignore file (gitignore syntax) at the root of a registered
directory excludes matching paths.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx, defaultOpenOptions())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			out := output.New(cmd.OutOrStdout())

			var registered []string
			for _, path := range args {
				info, statErr := os.Stat(path)
				if statErr != nil {
					return fmt.Errorf("stat %s: %w", path, statErr)
				}

				if info.IsDir() {
					docs, regErr := d.orchestrator.RegisterDirectory(ctx, path, extensions)
					if regErr != nil {
						return regErr
					}
					for _, rd := range docs {
						printRegistration(out, rd)
					}
				} else {
					docs, regErr := d.orchestrator.RegisterFiles(ctx, []string{path})
					if regErr != nil {
						return regErr
					}
					for _, rd := range docs {
						printRegistration(out, rd)
					}
				}
				registered = append(registered, path)
			}

			out.Newline()
			out.Success(fmt.Sprintf("Registered %d path(s). Run 'ptts process' to run the pipeline.", len(registered)))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "File extensions to accept when registering a directory (e.g. --ext .pdf,.png)")

	return cmd
}

func printRegistration(out *output.Writer, rd pipeline.RegisteredDocument) {
	if rd.Skipped {
		out.Statusf("", "skip  %s (already registered)", rd.Path)
		return
	}
	out.Statusf("", "add   %s  (%s)", rd.Path, rd.Document.ID)
}
