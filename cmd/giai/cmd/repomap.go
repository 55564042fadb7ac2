package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giai-dev/giai/internal/astgraph"
	"github.com/giai-dev/giai/internal/repomap"
)

// newRepomapCmd exposes the repo map: PageRank over the containment/call
// graph, rolled up into a top-file, top-symbol summary.
func newRepomapCmd() *cobra.Command {
	var topFiles, topSymbols, iterations, maxNodes int
	var wikiLinks, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "repomap",
		Short: "Rank files and symbols by PageRank over the AST graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openGraphStore()
			if err != nil {
				return err
			}
			defer closeFn()

			data, err := st.Export()
			if err != nil {
				return fmt.Errorf("exporting graph snapshot: %w", err)
			}
			var snap astgraph.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("decoding graph snapshot: %w", err)
			}

			result := repomap.Build(snap, repomap.Config{
				Iterations: iterations,
				TopFiles:   topFiles,
				TopSymbols: topSymbols,
				MaxNodes:   maxNodes,
				WikiLinks:  wikiLinks,
			})

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprint(cmd.OutOrStdout(), repomap.Render(result, repomap.Config{WikiLinks: wikiLinks}))
			return nil
		},
	}

	cmd.Flags().IntVar(&topFiles, "top-files", 20, "number of files to include")
	cmd.Flags().IntVar(&topSymbols, "top-symbols", 5, "number of symbols per file")
	cmd.Flags().IntVar(&iterations, "iterations", 10, "PageRank power-method iterations (1-20)")
	cmd.Flags().IntVar(&maxNodes, "max-nodes", 5000, "cap on symbol nodes considered")
	cmd.Flags().BoolVar(&wikiLinks, "wiki-links", false, "decorate symbol names as [[name]]")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
