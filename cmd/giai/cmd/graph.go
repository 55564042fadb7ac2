package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/giai-dev/giai/internal/astgraph"
	"github.com/giai-dev/giai/internal/config"
)

// newGraphCmd exposes the AST graph's query surface: find,
// children, refs, callers, callees, and chain, mirroring the
// store's typed operations rather than offering one freeform
// query escape hatch.
func newGraphCmd() *cobra.Command {
	var lang string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Query the AST graph built during indexing",
		Long: `Inspect symbols, containment, heritage, references, and calls
recorded in the AST graph (.git-ai/ast-graph.sqlite), populated by 'giai index'.`,
	}
	cmd.PersistentFlags().StringVar(&lang, "lang", "", "restrict to one storage-layer language (go, ts, python, java, rust, c)")
	cmd.PersistentFlags().IntVar(&limit, "limit", 50, "maximum rows to print")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	cmd.AddCommand(
		newGraphFindCmd(&lang, &limit, &jsonOutput),
		newGraphChildrenCmd(&lang, &jsonOutput),
		newGraphRefsCmd(&lang, &limit, &jsonOutput),
		newGraphCallersCmd(&lang, &limit, &jsonOutput),
		newGraphCalleesCmd(&lang, &limit, &jsonOutput),
		newGraphChainCmd(&lang, &limit, &jsonOutput),
	)
	return cmd
}

func openGraphStore() (astgraph.Store, func(), error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}
	path := filepath.Join(root, ".git-ai", "ast-graph.sqlite")
	if !fileExists(path) {
		return nil, nil, fmt.Errorf("no AST graph found at %s\nRun 'giai index' first", path)
	}
	opened := astgraph.Open(path)
	return opened.Store, func() { _ = opened.Store.Close() }, nil
}

func printRows(cmd *cobra.Command, jsonOutput bool, rows any) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", rows)
	return nil
}

func newGraphFindCmd(lang *string, limit *int, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "find <prefix>",
		Short: "Find symbols whose name starts with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openGraphStore()
			if err != nil {
				return err
			}
			defer closeFn()
			rows, err := st.Find(context.Background(), args[0], *lang, *limit)
			if err != nil {
				return err
			}
			return printRows(cmd, *jsonOutput, rows)
		},
	}
}

func newGraphChildrenCmd(lang *string, jsonOutput *bool) *cobra.Command {
	var asFile bool
	cmd := &cobra.Command{
		Use:   "children <parent-id>",
		Short: "List direct children of a symbol or file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openGraphStore()
			if err != nil {
				return err
			}
			defer closeFn()
			rows, err := st.Children(context.Background(), args[0], *lang, asFile)
			if err != nil {
				return err
			}
			return printRows(cmd, *jsonOutput, rows)
		},
	}
	cmd.Flags().BoolVar(&asFile, "file", false, "treat parent-id as a file path rather than a symbol id")
	return cmd
}

func newGraphRefsCmd(lang *string, limit *int, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "refs <name>",
		Short: "List occurrences of a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openGraphStore()
			if err != nil {
				return err
			}
			defer closeFn()
			rows, err := st.Refs(context.Background(), args[0], *lang, *limit)
			if err != nil {
				return err
			}
			return printRows(cmd, *jsonOutput, rows)
		},
	}
}

func newGraphCallersCmd(lang *string, limit *int, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "callers <name>",
		Short: "List call sites that call name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openGraphStore()
			if err != nil {
				return err
			}
			defer closeFn()
			rows, err := st.Callers(context.Background(), args[0], *lang, *limit)
			if err != nil {
				return err
			}
			return printRows(cmd, *jsonOutput, rows)
		},
	}
}

func newGraphCalleesCmd(lang *string, limit *int, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "callees <name>",
		Short: "List names that name calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openGraphStore()
			if err != nil {
				return err
			}
			defer closeFn()
			rows, err := st.Callees(context.Background(), args[0], *lang, *limit)
			if err != nil {
				return err
			}
			return printRows(cmd, *jsonOutput, rows)
		},
	}
}

func newGraphChainCmd(lang *string, limit *int, jsonOutput *bool) *cobra.Command {
	var depth int
	var downstream bool
	var minNameLen int
	cmd := &cobra.Command{
		Use:   "chain <name>",
		Short: "Walk the call graph upstream or downstream from name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openGraphStore()
			if err != nil {
				return err
			}
			defer closeFn()
			dir := astgraph.DirectionUpstream
			if downstream {
				dir = astgraph.DirectionDownstream
			}
			rows, err := st.Chain(context.Background(), args[0], dir, depth, *limit, minNameLen)
			if err != nil {
				return err
			}
			return printRows(cmd, *jsonOutput, rows)
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 3, "maximum traversal depth")
	cmd.Flags().BoolVar(&downstream, "downstream", false, "walk callees instead of callers")
	cmd.Flags().IntVar(&minNameLen, "min-name-len", 0, "skip names shorter than this (filters noisy short identifiers)")
	return cmd
}
