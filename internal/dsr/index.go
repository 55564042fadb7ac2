package dsr

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Index is the materialized dsr-index.sqlite: a flat (commit, name,
// operation) table letting Evolution-style lookups skip opening every
// record file in range. It is a derived cache, never the source of
// truth — Records on disk remain authoritative; the index can always
// be rebuilt from them.
type Index struct {
	db   *sql.DB
	path string
}

// OpenIndex opens (creating if absent) the sqlite index at
// <dir>/dsr-index.sqlite.
func OpenIndex(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dsr: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, "dsr-index.sqlite")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("dsr: opening index %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS dsr_operation (
		commit_hash TEXT NOT NULL,
		subject     TEXT NOT NULL,
		name        TEXT NOT NULL,
		prev_name   TEXT NOT NULL DEFAULT '',
		op_type     TEXT NOT NULL,
		file        TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("dsr: migrating index: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_dsr_operation_name ON dsr_operation(name)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("dsr: migrating index: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_dsr_operation_commit ON dsr_operation(commit_hash)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("dsr: migrating index: %w", err)
	}
	return &Index{db: db, path: path}, nil
}

// Put materializes rec's operations, replacing any previously indexed
// rows for the same commit (so re-indexing an unchanged record is
// idempotent).
func (idx *Index) Put(rec *Record) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM dsr_operation WHERE commit_hash = ?`, rec.CommitHash); err != nil {
		return err
	}
	for _, op := range rec.AstOperations {
		prev := ""
		if op.Previous != nil {
			prev = op.Previous.Name
		}
		if _, err := tx.Exec(
			`INSERT INTO dsr_operation (commit_hash, subject, name, prev_name, op_type, file) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.CommitHash, rec.Subject, op.Symbol.Name, prev, op.Type, op.Symbol.File,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Lookup returns every indexed operation whose current or previous
// name contains name. Row order is not history order: callers reorder
// by their own commit walk when that matters.
func (idx *Index) Lookup(name string) ([]EvolutionHit, error) {
	rows, err := idx.db.Query(
		`SELECT commit_hash, subject, name, prev_name, op_type, file FROM dsr_operation
		 WHERE name LIKE '%' || ? || '%' OR prev_name LIKE '%' || ? || '%'`,
		name, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []EvolutionHit
	for rows.Next() {
		var commit, subject, symName, prevName, opType, file string
		if err := rows.Scan(&commit, &subject, &symName, &prevName, &opType, &file); err != nil {
			return nil, err
		}
		op := Operation{Type: opType, Symbol: SymbolRef{File: file, Name: symName}}
		if prevName != "" {
			op.Previous = &SymbolRef{File: file, Name: prevName}
		}
		hits = append(hits, EvolutionHit{CommitHash: commit, Subject: subject, Operation: op})
	}
	return hits, rows.Err()
}

// indexRow mirrors one dsr_operation row for JSON export.
type indexRow struct {
	CommitHash string `json:"commit_hash"`
	Subject    string `json:"subject"`
	Name       string `json:"name"`
	PrevName   string `json:"prev_name,omitempty"`
	OpType     string `json:"op_type"`
	File       string `json:"file"`
}

// Export writes the full index to dsr-index.export.json alongside the
// sqlite file.
func (idx *Index) Export(dir string) error {
	rows, err := idx.db.Query(`SELECT commit_hash, subject, name, prev_name, op_type, file FROM dsr_operation ORDER BY commit_hash, name`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var out []indexRow
	for rows.Next() {
		var r indexRow
		if err := rows.Scan(&r.CommitHash, &r.Subject, &r.Name, &r.PrevName, &r.OpType, &r.File); err != nil {
			return err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "dsr-index.export.json"), data, 0o644)
}

// Close closes the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }
