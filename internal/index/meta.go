package index

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// schemaVersion is the on-disk meta.json version
const schemaVersion = 3
const metaVersion = "2.1"

// LangCounts tracks per-language write counts for one indexing run.
type LangCounts struct {
	ChunksAdded int `json:"chunksAdded"`
	RefsAdded   int `json:"refsAdded"`
}

// AstGraphMeta is the astGraph block of meta.json. Backend is always the
// literal "cozo" regardless of which
// concrete store backs it (Engine is "sqlite" or "mem", matching
// astgraph.OpenResult.Backend); when the graph could not be opened at
// all, Enabled is false and SkippedReason explains why (the
// storage-backend-unavailable degradation path).
type AstGraphMeta struct {
	Backend       string         `json:"backend"`
	Engine        string         `json:"engine,omitempty"`
	DBPath        string         `json:"dbPath,omitempty"`
	Counts        map[string]int `json:"counts,omitempty"`
	Enabled       *bool          `json:"enabled,omitempty"`
	SkippedReason string         `json:"skippedReason,omitempty"`
}

// Meta is the exact shape of .git-ai/meta.json
type Meta struct {
	Version            string                `json:"version"`
	IndexSchemaVersion int                   `json:"index_schema_version"`
	Dim                int                   `json:"dim"`
	DBDir              string                `json:"dbDir"`
	ScanRoot           string                `json:"scanRoot"`
	Languages          []string              `json:"languages"`
	ByLang             map[string]LangCounts `json:"byLang"`
	CommitHash         string                `json:"commit_hash,omitempty"`
	AstGraph           AstGraphMeta          `json:"astGraph"`
}

// NewMeta builds an empty Meta ready to be filled in by an indexing
// run.
func NewMeta(dim int, dbDir, scanRoot string) *Meta {
	return &Meta{
		Version:            metaVersion,
		IndexSchemaVersion: schemaVersion,
		Dim:                dim,
		DBDir:              dbDir,
		ScanRoot:           scanRoot,
		ByLang:             make(map[string]LangCounts),
	}
}

// Write serializes m as indented JSON and overwrites path atomically.
// meta.json is always-overwritable (unlike DSR records): it is
// overwritten on every successful full index and updated on
// incremental runs.
func (m *Meta) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadMeta loads meta.json from path.
func ReadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
