package astgraph

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// OpenResult reports which backend Open actually started, for
// meta.json's astGraph block.
type OpenResult struct {
	Store      Store
	Backend    string // "sqlite" or "mem"
	Enabled    bool
	SkipReason string
}

// ExportPath derives the JSON snapshot sibling of an AST-graph
// database path (ast-graph.sqlite -> ast-graph.export.json).
func ExportPath(dbPath string) string {
	base := strings.TrimSuffix(filepath.Base(dbPath), filepath.Ext(dbPath))
	return filepath.Join(filepath.Dir(dbPath), base+".export.json")
}

// Open starts the SQLite-backed store at path, degrading to an
// in-memory store if the driver can't be loaded or the file can't be
// opened (the index proceeds without a persistent AST graph rather
// than failing the run). A memory fallback re-imports the JSON
// snapshot from a previous run when one exists next to path. An empty
// path always opens a fresh in-memory store.
func Open(path string) OpenResult {
	if path == "" {
		return OpenResult{Store: NewMemoryStore(), Backend: "mem", Enabled: true}
	}

	db, err := OpenSQLiteStore(path)
	if err != nil {
		slog.Warn("astgraph_sqlite_unavailable",
			slog.String("path", path), slog.String("error", err.Error()))
		mem := NewMemoryStore()
		if data, rerr := os.ReadFile(ExportPath(path)); rerr == nil {
			if ierr := mem.Import(data); ierr != nil {
				slog.Warn("astgraph_snapshot_import_failed", slog.String("error", ierr.Error()))
			}
		}
		return OpenResult{
			Store: mem, Backend: "mem", Enabled: true,
			SkipReason: "sqlite backend unavailable: " + err.Error(),
		}
	}
	return OpenResult{Store: db, Backend: "sqlite", Enabled: true}
}

// Persist writes the JSON snapshot sibling for a memory-backed open,
// so the next Open can re-import it. SQLite-backed stores persist
// through their own database file and are left alone.
func (r OpenResult) Persist(dbPath string) error {
	if r.Backend != "mem" || dbPath == "" {
		return nil
	}
	data, err := r.Store.Export()
	if err != nil {
		return err
	}
	tmp := ExportPath(dbPath) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, ExportPath(dbPath))
}
