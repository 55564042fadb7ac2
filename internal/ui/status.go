package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// StatusInfo summarizes an index's health for display.
type StatusInfo struct {
	ProjectName string    `json:"project_name"`
	Languages   []string  `json:"languages"`
	TotalChunks int       `json:"total_chunks"`
	TotalRefs   int       `json:"total_refs"`
	LastIndexed time.Time `json:"last_indexed"`
	CommitHash  string    `json:"commit_hash,omitempty"`

	AstGraphSize  int64 `json:"ast_graph_size"`
	PartitionSize int64 `json:"partition_size"`
	VectorSize    int64 `json:"vector_size"`
	TotalSize     int64 `json:"total_size"`

	AstEngine   string `json:"ast_engine"`
	EmbedderDim int    `json:"embedder_dim"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info as human-readable text.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.ProjectName))

	_, _ = fmt.Fprintf(r.out, "  Languages:    %s\n", strings.Join(info.Languages, ", "))
	_, _ = fmt.Fprintf(r.out, "  Chunks:       %d\n", info.TotalChunks)
	_, _ = fmt.Fprintf(r.out, "  Refs:         %d\n", info.TotalRefs)
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.LastIndexed))
	}
	if info.CommitHash != "" {
		_, _ = fmt.Fprintf(r.out, "  Commit:       %s\n", info.CommitHash)
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    AST graph:  %s\n", FormatBytes(info.AstGraphSize))
	_, _ = fmt.Fprintf(r.out, "    Partitions: %s\n", FormatBytes(info.PartitionSize))
	_, _ = fmt.Fprintf(r.out, "    Vectors:    %s\n", FormatBytes(info.VectorSize))
	_, _ = fmt.Fprintf(r.out, "    Total:      %s\n", FormatBytes(info.TotalSize))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  AST engine:   %s\n", info.AstEngine)
	_, _ = fmt.Fprintf(r.out, "  Embedding dim: %d\n", info.EmbedderDim)

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats a byte count in human-readable units.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
