// Package cmd provides the CLI commands for ptts.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ptts-corpus/ptts/internal/logging"
	"github.com/ptts-corpus/ptts/internal/profiling"
	"github.com/ptts-corpus/ptts/pkg/version"
)

// Profiling flags.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// Debug logging flag.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the ptts CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ptts",
		Short: "Content-addressed provenance store for document pipelines",
		Long: `ptts registers documents, runs them through OCR, chunking, embedding
and vision description, and tracks every derived artifact in a
content-addressed provenance DAG.

Every node can be traced back to its source document and every content
hash can be independently recomputed and verified.`,
		Version: version.Version,
	}

	root.SetVersionTemplate("ptts version {{.Version}}\n")

	root.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	root.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	root.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.ptts/logs/")
	root.PersistentFlags().StringVar(&storagePathFlag, "storage-path", "", "Override the database storage directory (default ~/.ptts/data)")
	root.PersistentFlags().StringVar(&dbNameFlag, "db", "", "Database name to operate on (default: the currently selected database)")

	root.PersistentPreRunE = startProfilingAndLogging
	root.PersistentPostRunE = stopProfilingAndLogging

	root.AddCommand(newDBCmd())
	root.AddCommand(newRegisterCmd())
	root.AddCommand(newProcessCmd())
	root.AddCommand(newDocumentsCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newProvenanceCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newLogsCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// startProfilingAndLogging starts CPU/trace profiling and debug logging if flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

// stopProfilingAndLogging stops profiling and logging, writing the memory profile if requested.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}

	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
