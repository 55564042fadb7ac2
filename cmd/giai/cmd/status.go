package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/giai-dev/giai/internal/config"
	"github.com/giai-dev/giai/internal/index"
	"github.com/giai-dev/giai/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the current index including:
  - Indexed languages and per-language chunk/ref counts
  - Last indexing time and commit
  - Storage sizes (AST graph, partitions, HNSW snapshots)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}

	dataDir := filepath.Join(root, ".git-ai")

	metaPath := filepath.Join(dataDir, "meta.json")
	if !fileExists(metaPath) {
		return fmt.Errorf("no index found in %s\nRun 'giai index' to create one", root)
	}

	info, err := collectStatus(root, dataDir)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	noColor := ui.DetectNoColor()
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)

	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(root, dataDir string) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		ProjectName: filepath.Base(root),
	}

	metaPath := filepath.Join(dataDir, "meta.json")
	meta, err := index.ReadMeta(metaPath)
	if err != nil {
		return info, fmt.Errorf("failed to read meta.json: %w", err)
	}

	info.Languages = meta.Languages
	info.CommitHash = meta.CommitHash
	info.EmbedderDim = meta.Dim
	info.AstEngine = meta.AstGraph.Engine
	for _, counts := range meta.ByLang {
		info.TotalChunks += counts.ChunksAdded
		info.TotalRefs += counts.RefsAdded
	}
	if st, err := os.Stat(metaPath); err == nil {
		info.LastIndexed = st.ModTime()
	}

	info.AstGraphSize = getFileSize(filepath.Join(dataDir, "ast-graph.sqlite")) +
		getFileSize(filepath.Join(dataDir, "ast-graph.export.json"))
	info.PartitionSize = getDirSize(filepath.Join(dataDir, "lancedb"))
	info.VectorSize = getDirSize(filepath.Join(dataDir, "vectors"))
	info.TotalSize = info.AstGraphSize + info.PartitionSize + info.VectorSize

	return info, nil
}

// getFileSize returns the size of a file in bytes.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// getDirSize returns the total size of all files in a directory.
func getDirSize(path string) int64 {
	var size int64

	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	return size
}
