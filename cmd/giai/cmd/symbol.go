package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giai-dev/giai/internal/symbolsearch"
)

// newSymbolCmd exposes the symbol-search modes directly over the
// AST graph's symbol relation, independent of the adaptive
// pipeline's `giai query` which uses the same package internally as
// one of its candidate sources.
func newSymbolCmd() *cobra.Command {
	var lang string
	var mode string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "symbol <query>",
		Short: "Look up symbols by name (substring, prefix, wildcard, regex, fuzzy)",
		Long: `Search symbol names recorded in the AST graph using one of the matching
modes: substring, prefix, wildcard (*,?), regex (^.../...$), fuzzy
(subsequence), or auto (the default, which picks a mode from the query's
shape).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openGraphStore()
			if err != nil {
				return err
			}
			defer closeFn()

			rows, err := st.Find(context.Background(), "", lang, 0)
			if err != nil {
				return fmt.Errorf("loading symbols: %w", err)
			}

			candidates := make([]symbolsearch.Candidate, len(rows))
			for i, r := range rows {
				candidates[i] = symbolsearch.Candidate{
					Name: r.Name, Kind: r.Kind, File: r.File,
					StartLine: r.StartLine, EndLine: r.EndLine, Signature: r.Signature,
				}
			}

			results, err := symbolsearch.Search(candidates, args[0], symbolsearch.Mode(mode))
			if err != nil {
				return err
			}
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			return printRows(cmd, jsonOutput, results)
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "restrict to one storage-layer language")
	cmd.Flags().StringVar(&mode, "mode", string(symbolsearch.ModeAuto), "substring|prefix|wildcard|regex|fuzzy|auto")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results to print")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
