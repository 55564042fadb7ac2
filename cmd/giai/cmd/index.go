package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/giai-dev/giai/internal/astgraph"
	"github.com/giai-dev/giai/internal/config"
	"github.com/giai-dev/giai/internal/embed"
	"github.com/giai-dev/giai/internal/index"
	"github.com/giai-dev/giai/internal/logging"
	"github.com/giai-dev/giai/internal/output"
	"github.com/giai-dev/giai/internal/store"
	"github.com/giai-dev/giai/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory for querying",
		Long: `Index a directory to enable semantic, symbol, and structural queries
over its contents.

This scans files, parses symbols and references, writes the AST graph
and per-language chunk/ref partitions, and builds the HNSW proximity
index for each language.

Use --force to clear existing index data and rebuild from scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ctrl+C cancels the in-flight run cleanly.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(ctx, cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Clear existing index and rebuild from scratch")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, force bool) error {
	// File-only logging so user-facing output stays clean.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	out := output.New(cmd.OutOrStdout())

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("path does not exist: %s", absPath)
	}

	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}
	dataDir := filepath.Join(root, ".git-ai")

	if force {
		if err := clearIndexData(dataDir); err != nil {
			return fmt.Errorf("failed to clear index data: %w", err)
		}
		out.Status("", "Cleared existing index data, starting fresh...")
		slog.Info("index_force_clear", slog.String("data_dir", dataDir))
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	embedder := embed.NewStaticEmbedder768()
	defer func() { _ = embedder.Close() }()

	astPath := filepath.Join(dataDir, "ast-graph.sqlite")
	opened := astgraph.Open(astPath)
	defer func() { _ = opened.Store.Close() }()

	partitions := store.OpenPartitionSet(filepath.Join(dataDir, "lancedb"))
	defer func() { _ = partitions.CloseAll() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithProjectDir(root)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	totalFiles := 0
	eng := index.NewEngine(index.EngineConfig{
		RepoRoot:          root,
		ScanRoot:          absPath,
		DataDir:           dataDir,
		Dim:               embedder.Dimensions(),
		QuantizationBits:  cfg.Quantize.Bits,
		PoolSize:          cfg.Workers.PoolSize,
		ParallelThreshold: cfg.Workers.ParallelThreshold,
		ParserFallback:    cfg.Parser.Fallback,
		LineChunkSize:     cfg.Parser.LineChunkSize,
		OnProgress: func(p index.Progress) {
			totalFiles = p.TotalFiles
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageIndexing,
				Current:     p.ProcessedFiles,
				Total:       p.TotalFiles,
				CurrentFile: filepath.Base(p.CurrentFile),
			})
		},
	}, embedder, opened.Store, partitions)

	started := time.Now()
	meta, err := eng.Full(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if err := opened.Persist(astPath); err != nil {
		slog.Warn("ast_graph_snapshot_failed", slog.String("error", err.Error()))
	}
	meta.AstGraph.Engine = opened.Backend
	meta.AstGraph.DBPath = astPath
	meta.AstGraph.Enabled = &opened.Enabled
	meta.AstGraph.SkippedReason = opened.SkipReason
	if err := meta.Write(filepath.Join(dataDir, "meta.json")); err != nil {
		return err
	}

	chunks := 0
	for _, counts := range meta.ByLang {
		chunks += counts.ChunksAdded
	}
	renderer.Complete(ui.CompletionStats{
		Files:    totalFiles,
		Chunks:   chunks,
		Duration: time.Since(started),
		Embedder: ui.EmbedderInfo{
			Backend:    "static",
			Model:      embedder.ModelName(),
			Dimensions: embedder.Dimensions(),
		},
	})
	return nil
}

// clearIndexData removes all index-related files from the data directory.
// The project config file lives at the repo root, not in dataDir, and is
// preserved.
func clearIndexData(dataDir string) error {
	indexFiles := []string{
		filepath.Join(dataDir, "ast-graph.sqlite"),      // AST graph relations
		filepath.Join(dataDir, "ast-graph.export.json"), // memory-backend snapshot
		filepath.Join(dataDir, "lancedb"),               // per-language chunk/ref partitions
		filepath.Join(dataDir, "vectors"),               // per-language HNSW snapshots
		filepath.Join(dataDir, "meta.json"),             // index metadata snapshot
	}

	for _, path := range indexFiles {
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
