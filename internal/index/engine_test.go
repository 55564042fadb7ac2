package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/giai-dev/giai/internal/astgraph"
	"github.com/giai-dev/giai/internal/embed"
	"github.com/giai-dev/giai/internal/store"
)

func writeRepoFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestEngine(t *testing.T, root string) (*Engine, *astgraph.MemoryStore, *store.PartitionSet) {
	t.Helper()
	dataDir := filepath.Join(root, ".git-ai")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	astStore := astgraph.NewMemoryStore()
	partitions := store.OpenPartitionSet(filepath.Join(dataDir, "lancedb"))

	cfg := EngineConfig{
		RepoRoot:         root,
		DataDir:          dataDir,
		Dim:              768,
		QuantizationBits: 8,
		PoolSize:         2,
	}
	e := NewEngine(cfg, embed.NewStaticEmbedder(), astStore, partitions)
	return e, astStore, partitions
}

func TestEngineFull_IndexesGoFile(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "main.go", "package main\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n")

	e, astStore, partitions := newTestEngine(t, root)
	defer partitions.CloseAll()

	meta, err := e.Full(context.Background())
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if meta.Dim != 768 {
		t.Fatalf("expected dim 768, got %d", meta.Dim)
	}
	if len(meta.Languages) == 0 {
		t.Fatal("expected at least one language recorded")
	}

	part, err := partitions.Partition("go")
	if err != nil {
		t.Fatalf("Partition(go): %v", err)
	}
	refs, err := part.RefsByFile(context.Background(), "main.go")
	if err != nil {
		t.Fatalf("RefsByFile: %v", err)
	}
	if len(refs) == 0 {
		t.Fatal("expected at least one ref row for main.go")
	}

	rows, err := astStore.Find(context.Background(), "Add", "", 10)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected Add symbol to be present in the AST graph")
	}

	metaPath := filepath.Join(root, ".git-ai", "meta.json")
	if _, err := os.Stat(metaPath); err != nil {
		t.Fatalf("expected meta.json to be written: %v", err)
	}
}

func TestEngineFull_RespectsAiignore(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, ".aiignore", "vendor/\n")
	writeRepoFile(t, root, "main.go", "package main\n")
	writeRepoFile(t, root, "vendor/lib.go", "package vendor\n")

	e, _, partitions := newTestEngine(t, root)
	defer partitions.CloseAll()

	if _, err := e.Full(context.Background()); err != nil {
		t.Fatalf("Full: %v", err)
	}

	part, err := partitions.Partition("go")
	if err != nil {
		t.Fatalf("Partition(go): %v", err)
	}
	refs, err := part.RefsByFile(context.Background(), "vendor/lib.go")
	if err != nil {
		t.Fatalf("RefsByFile: %v", err)
	}
	if len(refs) != 0 {
		t.Fatal("expected vendor/lib.go to be excluded by .aiignore")
	}
}

func TestEngineFull_SkipsUnparseableFileViaFallback(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "notes.md", "# Title\n\nSome text.\n")

	e, _, partitions := newTestEngine(t, root)
	defer partitions.CloseAll()

	meta, err := e.Full(context.Background())
	if err != nil {
		t.Fatalf("Full: %v", err)
	}

	found := false
	for _, l := range meta.Languages {
		if l == "markdown" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected markdown language recorded, got %v", meta.Languages)
	}
}
