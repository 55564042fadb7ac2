// Package ui renders indexing progress and index status as plain text.
//
// Progress is modeled as a plain callback/channel
// (no user-visible coroutine): callers push
// ProgressEvent/ErrorEvent/CompletionStats values into a Renderer from
// whatever goroutine produced them. There is no interactive terminal UI
// here; a full TUI framework has no component in this engine to drive it.
package ui

import (
	"context"
	"io"
	"os"
	"time"
)

// Stage represents an indexing stage.
type Stage int

const (
	// StageScanning is the file scanning stage.
	StageScanning Stage = iota
	// StageChunking is the parsing/chunking stage.
	StageChunking
	// StageEmbedding is the embedding generation stage.
	StageEmbedding
	// StageIndexing is the storage-write stage (vector + AST graph).
	StageIndexing
	// StageComplete indicates indexing is complete.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageChunking:
		return "Chunking"
	case StageEmbedding:
		return "Embedding"
	case StageIndexing:
		return "Indexing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag used in plain-text output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageChunking:
		return "CHUNK"
	case StageEmbedding:
		return "EMBED"
	case StageIndexing:
		return "INDEX"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent represents a per-file error or warning (WorkerFailure).
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each indexing stage.
type StageTimings struct {
	Scan  time.Duration
	Chunk time.Duration
	Embed time.Duration
	Index time.Duration
}

// EmbedderInfo describes the embedding backend used for a run.
type EmbedderInfo struct {
	Backend    string
	Model      string
	Dimensions int
}

// CompletionStats summarizes a finished indexing run.
type CompletionStats struct {
	Files    int
	Chunks   int
	Duration time.Duration
	Errors   int
	Warnings int
	Stages   StageTimings
	Embedder EmbedderInfo
}

// Renderer receives progress from an indexing run. Implementations must
// be safe to call from any scheduling context.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures the renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	ProjectDir string
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain is accepted for API compatibility; rendering is always
// plain text and the renderer does not read this setting.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor sets Config.NoColor. The progress renderer does not read
// it; StatusRenderer takes its own noColor argument.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithProjectDir sets Config.ProjectDir. The progress renderer does not
// print it.
func WithProjectDir(dir string) ConfigOption {
	return func(c *Config) { c.ProjectDir = dir }
}

// NewConfig builds a Config from the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a plain-text progress renderer.
func NewRenderer(cfg Config) Renderer {
	return NewPlainRenderer(cfg)
}

// DetectNoColor reports whether NO_COLOR is set in the environment.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
