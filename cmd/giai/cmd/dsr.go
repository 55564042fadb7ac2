package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/giai-dev/giai/internal/chunk"
	"github.com/giai-dev/giai/internal/config"
	"github.com/giai-dev/giai/internal/dsr"
	"github.com/giai-dev/giai/internal/gitplumbing"
)

// newDsrCmd exposes Deterministic Semantic Records: generate
// writes one per commit, show reads it back, evolution walks history
// for one symbol's changes.
func newDsrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dsr",
		Short: "Generate and query Deterministic Semantic Records",
		Long: `DSRs are canonical, content-addressed per-commit symbol diffs stored
under .git-ai/dsr/. They are never synthesized retroactively: a commit
either has one, generated at commit time, or it doesn't.`,
	}
	cmd.AddCommand(newDsrGenerateCmd(), newDsrShowCmd(), newDsrEvolutionCmd())
	return cmd
}

func openDsrRepo() (*gitplumbing.Repo, *dsr.Store, string, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}
	ctx := context.Background()
	repo, err := gitplumbing.Open(ctx, root)
	if err != nil {
		return nil, nil, "", fmt.Errorf("not a git repository: %w", err)
	}
	dataDir := filepath.Join(root, ".git-ai")
	return repo, dsr.NewStore(filepath.Join(dataDir, "dsr")), root, nil
}

func newDsrGenerateCmd() *cobra.Command {
	var commit string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the DSR for a commit (defaults to HEAD)",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, store, root, err := openDsrRepo()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if commit == "" {
				commit, err = repo.HeadCommit(ctx)
				if err != nil {
					return err
				}
			}
			resolved, err := repo.ResolveCommit(ctx, commit)
			if err != nil {
				return err
			}
			gen := dsr.NewGenerator(repo, chunk.NewParser(), chunk.NewSymbolExtractor())
			rec, err := gen.Generate(ctx, resolved)
			if err != nil {
				return err
			}
			if err := store.Write(rec); err != nil {
				return err
			}
			updateDsrIndex(root, rec)
			return printJSON(cmd, rec)
		},
	}
	cmd.Flags().StringVar(&commit, "commit", "", "commit-ish to generate a DSR for (default: HEAD)")
	return cmd
}

func newDsrShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <commit>",
		Short: "Print the stored DSR for a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, store, _, err := openDsrRepo()
			if err != nil {
				return err
			}
			resolved, err := repo.ResolveCommit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !store.Has(resolved) {
				return fmt.Errorf("no DSR recorded for %s", resolved)
			}
			rec, err := store.Read(resolved)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
}

func newDsrEvolutionCmd() *cobra.Command {
	var start string
	var all bool
	var limit int
	cmd := &cobra.Command{
		Use:   "evolution <symbol-name>",
		Short: "Trace a symbol's history across recorded DSRs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, store, _, err := openDsrRepo()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if start == "" {
				start, err = repo.HeadCommit(ctx)
				if err != nil {
					return err
				}
			}
			result, err := dsr.Evolution(ctx, repo, store, start, all, limit, args[0])
			if err != nil {
				return err
			}
			if !result.Ok {
				return fmt.Errorf("missing DSRs for commits: %v (run 'giai dsr generate --commit <sha>' for each)", result.MissingDsrs)
			}
			return printJSON(cmd, result.Hits)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "commit-ish to start walking from (default: HEAD)")
	cmd.Flags().BoolVar(&all, "all", false, "also walk commits reachable from every ref, not only from --start")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum commits to walk (0 = unbounded)")
	return cmd
}

// updateDsrIndex refreshes the materialized dsr-index.sqlite and its
// JSON export for a newly written record. The index is a derived
// cache: failures here are logged, never fatal to generation.
func updateDsrIndex(root string, rec *dsr.Record) {
	dir := filepath.Join(root, ".git-ai", "dsr")
	idx, err := dsr.OpenIndex(dir)
	if err != nil {
		slog.Warn("dsr_index_open_failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = idx.Close() }()
	if err := idx.Put(rec); err != nil {
		slog.Warn("dsr_index_put_failed", slog.String("error", err.Error()))
		return
	}
	if err := idx.Export(dir); err != nil {
		slog.Warn("dsr_index_export_failed", slog.String("error", err.Error()))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
