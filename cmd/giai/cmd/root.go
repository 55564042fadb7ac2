// Package cmd provides the CLI commands for Giai.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/giai-dev/giai/internal/config"
	"github.com/giai-dev/giai/internal/logging"
	"github.com/giai-dev/giai/internal/output"
	"github.com/giai-dev/giai/internal/preflight"
	"github.com/giai-dev/giai/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for giai CLI.
func NewRootCmd() *cobra.Command {
	var reindex bool
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "giai",
		Short: "Repository-local code intelligence engine",
		Long: `Giai builds and queries a repository-local code intelligence index:
semantic similarity over quantized vectors, symbol lookup, an
AST-derived symbol graph, per-commit semantic records, and a
PageRank-ranked repo map.

It runs entirely locally with zero configuration required.

Just run 'giai' in your project directory to index it, then use
'giai query "..."' to search.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			// If help was explicitly requested, show it
			if len(args) > 0 {
				return cmd.Help()
			}
			return runSmartDefault(cmd.Context(), cmd, reindex, skipCheck)
		},
	}

	// Set version template
	cmd.SetVersionTemplate("giai version {{.Version}}\n")

	// Root flags
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Force reindex even if index exists")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip pre-flight system checks")

	// Debug logging flag
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.giai/logs/")

	// Setup logging hooks
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	// Add subcommands
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newGraphCmd())
	cmd.AddCommand(newDsrCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newSymbolCmd())
	cmd.AddCommand(newRepomapCmd())

	return cmd
}

// startLogging enables debug logging to file if requested.
func startLogging(_ *cobra.Command, _ []string) error {
	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}
	return nil
}

// stopLogging closes the debug log file if one was opened.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// runSmartDefault indexes the current project if needed, then prints a
// status summary. There is no daemon or server mode: every invocation is
// a single pass over the repository.
func runSmartDefault(ctx context.Context, cmd *cobra.Command, reindex, skipCheck bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	dataDir := filepath.Join(root, ".git-ai")

	if !skipCheck && preflight.NeedsCheck(dataDir) {
		checker := preflight.New(
			preflight.WithOutput(io.Discard),
		)
		results := checker.RunAll(ctx, root)

		if checker.HasCriticalFailures(results) {
			out.Warning("System check failed - run 'giai doctor' for diagnostics")
			return fmt.Errorf("system check failed")
		}

		if err := preflight.MarkPassed(dataDir); err != nil {
			slog.Debug("Failed to mark preflight as passed", slog.String("error", err.Error()))
		}
	}

	metaPath := filepath.Join(dataDir, "meta.json")
	needsIndex := reindex || !fileExists(metaPath)

	if needsIndex {
		out.Statusf("📊", "Indexing %s...", root)
		if err := runIndex(ctx, cmd, root, false); err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}
		out.Success("Index complete")
	} else {
		out.Statusf("✓", "Index found at %s", metaPath)
	}

	out.Newline()
	out.Status("💡", "Run 'giai query \"...\"' to search, or 'giai status' for details")
	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
