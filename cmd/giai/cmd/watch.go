package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/giai-dev/giai/internal/astgraph"
	"github.com/giai-dev/giai/internal/config"
	"github.com/giai-dev/giai/internal/embed"
	"github.com/giai-dev/giai/internal/hashid"
	"github.com/giai-dev/giai/internal/index"
	"github.com/giai-dev/giai/internal/output"
	"github.com/giai-dev/giai/internal/store"
	"github.com/giai-dev/giai/internal/watcher"
)

// newWatchCmd runs an opt-in filesystem watch that keeps the AST graph
// and vector partitions current between explicit 'giai index' runs, as
// changes land on disk rather than at commit time.
func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch the working tree and incrementally update the index",
		Long: `Watches the project directory for file changes and reprocesses only
the changed files through the indexer. Runs until interrupted; a full
'giai index' run is still the way to rebuild from scratch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(cmd.Context(), cmd, path)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string) error {
	out := output.New(cmd.OutOrStdout())

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}
	dataDir := filepath.Join(root, ".git-ai")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	embedder := embed.NewStaticEmbedder768()
	defer func() { _ = embedder.Close() }()

	astPath := filepath.Join(dataDir, "ast-graph.sqlite")
	opened := astgraph.Open(astPath)
	defer func() {
		if err := opened.Persist(astPath); err != nil {
			slog.Warn("ast_graph_snapshot_failed", slog.String("error", err.Error()))
		}
		_ = opened.Store.Close()
	}()
	partitions := store.OpenPartitionSet(filepath.Join(dataDir, "lancedb"))
	defer func() { _ = partitions.CloseAll() }()

	eng := index.NewEngine(index.EngineConfig{
		RepoRoot:         root,
		DataDir:          dataDir,
		Dim:              embedder.Dimensions(),
		QuantizationBits: 8,
	}, embedder, opened.Store, partitions)

	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	if err := w.Start(ctx, root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	defer func() { _ = w.Stop() }()

	out.Statusf("👀", "Watching %s for changes (Ctrl-C to stop)...", root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			applyWatchBatch(ctx, eng, out, batch)
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			if err != nil {
				slog.Warn("watch_error", slog.String("error", err.Error()))
			}
		}
	}
}

func applyWatchBatch(ctx context.Context, eng *index.Engine, out *output.Writer, batch []watcher.FileEvent) {
	var changed, deleted []string
	for _, ev := range batch {
		if ev.IsDir {
			continue
		}
		rel := hashid.NormalizePath(ev.Path)
		switch ev.Operation {
		case watcher.OpDelete:
			deleted = append(deleted, rel)
		case watcher.OpRename:
			if ev.OldPath != "" {
				deleted = append(deleted, hashid.NormalizePath(ev.OldPath))
			}
			changed = append(changed, rel)
		default:
			changed = append(changed, rel)
		}
	}
	if len(changed) == 0 && len(deleted) == 0 {
		return
	}
	if _, err := eng.ApplyPaths(ctx, changed, deleted); err != nil {
		slog.Warn("watch_apply_failed", slog.String("error", err.Error()))
		return
	}
	out.Statusf("✓", "Reprocessed %d changed, %d deleted", len(changed), len(deleted))
}
