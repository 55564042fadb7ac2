package astgraph

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // cgo driver, the default per the domain stack
)

// SQLiteStore is the preferred AST-graph backend: the five relations
// live in real tables so incremental mutation (per-path delete
// then insert) is cheap, in the same WAL-mode SQLite idiom as the
// per-language partitions. Chain and Query run against an
// in-memory snapshot loaded from the tables, so traversal queries on
// a live index see a consistent read view.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (creating if needed) the AST graph database at
// path. An empty path opens an in-memory database, useful for tests.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if strings.IndexByte(path, 0) >= 0 {
			return nil, fmt.Errorf("astgraph: open: path contains a NUL byte")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("astgraph: create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("astgraph: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ast_file (
		file_id TEXT PRIMARY KEY,
		path TEXT UNIQUE NOT NULL,
		language TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS ast_symbol (
		symbol_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		lang TEXT NOT NULL,
		file TEXT NOT NULL,
		signature TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ast_symbol_name ON ast_symbol(name);
	CREATE INDEX IF NOT EXISTS idx_ast_symbol_file ON ast_symbol(file);

	CREATE TABLE IF NOT EXISTS ast_contains (
		parent_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		file TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ast_contains_parent ON ast_contains(parent_id);
	CREATE INDEX IF NOT EXISTS idx_ast_contains_file ON ast_contains(file);

	CREATE TABLE IF NOT EXISTS ast_extends_name (
		symbol_id TEXT NOT NULL,
		name TEXT NOT NULL,
		file TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ast_extends_file ON ast_extends_name(file);

	CREATE TABLE IF NOT EXISTS ast_implements_name (
		symbol_id TEXT NOT NULL,
		name TEXT NOT NULL,
		file TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ast_implements_file ON ast_implements_name(file);

	CREATE TABLE IF NOT EXISTS ast_refs_name (
		from_id TEXT NOT NULL,
		lang TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		column INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ast_refs_name ON ast_refs_name(name);
	CREATE INDEX IF NOT EXISTS idx_ast_refs_file ON ast_refs_name(file);

	CREATE TABLE IF NOT EXISTS ast_calls_name (
		from_id TEXT NOT NULL,
		callee_name TEXT NOT NULL,
		lang TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		column INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ast_calls_callee ON ast_calls_name(callee_name);
	CREATE INDEX IF NOT EXISTS idx_ast_calls_from ON ast_calls_name(from_id);
	CREATE INDEX IF NOT EXISTS idx_ast_calls_file ON ast_calls_name(file);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put replaces every row the batch's file previously contributed
// (upsert-by-key, :put semantics) inside a single transaction.
func (s *SQLiteStore) Put(ctx context.Context, b Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteFileTx(ctx, tx, b.File.Path); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO ast_file(file_id, path, language) VALUES (?, ?, ?)`,
		b.File.FileID, b.File.Path, b.File.Language); err != nil {
		return fmt.Errorf("astgraph: insert file: %w", err)
	}

	for _, sym := range b.Symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO ast_symbol(symbol_id, name, kind, lang, file, signature, start_line, end_line)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sym.SymbolID, sym.Name, sym.Kind, sym.Lang, sym.File, sym.Signature, sym.StartLine, sym.EndLine); err != nil {
			return fmt.Errorf("astgraph: insert symbol: %w", err)
		}
	}
	for _, e := range b.Contains {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ast_contains(parent_id, child_id, file) VALUES (?, ?, ?)`,
			e.ParentID, e.ChildID, e.File); err != nil {
			return fmt.Errorf("astgraph: insert contains: %w", err)
		}
	}
	for _, e := range b.Extends {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ast_extends_name(symbol_id, name, file) VALUES (?, ?, ?)`,
			e.SymbolID, e.Name, e.File); err != nil {
			return fmt.Errorf("astgraph: insert extends: %w", err)
		}
	}
	for _, e := range b.Implements {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ast_implements_name(symbol_id, name, file) VALUES (?, ?, ?)`,
			e.SymbolID, e.Name, e.File); err != nil {
			return fmt.Errorf("astgraph: insert implements: %w", err)
		}
	}
	for _, r := range b.Refs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ast_refs_name(from_id, lang, name, kind, file, line, column) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.FromID, r.Lang, r.Name, r.Kind, r.File, r.Line, r.Column); err != nil {
			return fmt.Errorf("astgraph: insert ref: %w", err)
		}
	}
	for _, c := range b.Calls {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ast_calls_name(from_id, callee_name, lang, file, line, column) VALUES (?, ?, ?, ?, ?, ?)`,
			c.FromID, c.CalleeName, c.Lang, c.File, c.Line, c.Column); err != nil {
			return fmt.Errorf("astgraph: insert call: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteFile removes every row the file contributed across all six
// relations. This runs alone (the indexer's serialized deletions
// phase) so no transaction coordination with concurrent writers
// is required here.
func (s *SQLiteStore) DeleteFile(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := deleteFileTx(ctx, tx, path); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteFileTx(ctx context.Context, tx *sql.Tx, path string) error {
	if path == "" {
		return nil
	}
	stmts := []string{
		`DELETE FROM ast_file WHERE path = ?`,
		`DELETE FROM ast_symbol WHERE file = ?`,
		`DELETE FROM ast_contains WHERE file = ?`,
		`DELETE FROM ast_extends_name WHERE file = ?`,
		`DELETE FROM ast_implements_name WHERE file = ?`,
		`DELETE FROM ast_refs_name WHERE file = ?`,
		`DELETE FROM ast_calls_name WHERE file = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, path); err != nil {
			return fmt.Errorf("astgraph: delete file rows: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Find(ctx context.Context, prefix, lang string, limit int) ([]FindRow, error) {
	query := `SELECT name, kind, file, signature, start_line, end_line FROM ast_symbol
	          WHERE lower(name) LIKE lower(?) || '%'`
	args := []any{prefix}
	if lang != "" {
		query += ` AND lang = ?`
		args = append(args, lang)
	}
	query += ` ORDER BY name`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("astgraph: find: %w", err)
	}
	defer rows.Close()

	var out []FindRow
	for rows.Next() {
		var r FindRow
		if err := rows.Scan(&r.Name, &r.Kind, &r.File, &r.Signature, &r.StartLine, &r.EndLine); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Children(ctx context.Context, parentID, lang string, asFile bool) ([]ChildRow, error) {
	id := parentID
	if asFile {
		var fileID string
		if err := s.db.QueryRowContext(ctx, `SELECT file_id FROM ast_file WHERE path = ?`, parentID).Scan(&fileID); err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, fmt.Errorf("astgraph: resolve file: %w", err)
		}
		id = fileID
	}

	query := `SELECT sy.symbol_id, sy.name, sy.kind, sy.file, sy.start_line, sy.end_line
	          FROM ast_contains c JOIN ast_symbol sy ON sy.symbol_id = c.child_id
	          WHERE c.parent_id = ?`
	args := []any{id}
	if lang != "" {
		query += ` AND sy.lang = ?`
		args = append(args, lang)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("astgraph: children: %w", err)
	}
	defer rows.Close()

	var out []ChildRow
	for rows.Next() {
		var r ChildRow
		if err := rows.Scan(&r.RefID, &r.Name, &r.Kind, &r.File, &r.StartLine, &r.EndLine); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Refs(ctx context.Context, name, lang string, limit int) ([]RefRow, error) {
	query := `SELECT from_id, lang, name, kind, file, line, column FROM ast_refs_name WHERE name = ?`
	args := []any{name}
	if lang != "" {
		query += ` AND lang = ?`
		args = append(args, lang)
	}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("astgraph: refs: %w", err)
	}
	defer rows.Close()

	var out []RefRow
	for rows.Next() {
		var r RefRow
		if err := rows.Scan(&r.FromID, &r.Lang, &r.Name, &r.Kind, &r.File, &r.Line, &r.Column); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Callers(ctx context.Context, name, lang string, limit int) ([]CallRow, error) {
	query := `SELECT from_id, callee_name, lang, file, line, column FROM ast_calls_name WHERE callee_name = ?`
	args := []any{name}
	if lang != "" {
		query += ` AND lang = ?`
		args = append(args, lang)
	}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	return s.scanCalls(ctx, query, args...)
}

func (s *SQLiteStore) Callees(ctx context.Context, name, lang string, limit int) ([]CallRow, error) {
	query := `SELECT c.from_id, c.callee_name, c.lang, c.file, c.line, c.column
	          FROM ast_calls_name c JOIN ast_symbol sy ON sy.symbol_id = c.from_id
	          WHERE sy.name = ?`
	args := []any{name}
	if lang != "" {
		query += ` AND c.lang = ?`
		args = append(args, lang)
	}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	return s.scanCalls(ctx, query, args...)
}

func (s *SQLiteStore) scanCalls(ctx context.Context, query string, args ...any) ([]CallRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("astgraph: calls query: %w", err)
	}
	defer rows.Close()

	var out []CallRow
	for rows.Next() {
		var r CallRow
		if err := rows.Scan(&r.FromID, &r.CalleeName, &r.Lang, &r.File, &r.Line, &r.Column); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Chain and Query load a read-only snapshot of the current tables and
// delegate to the in-memory engine's traversal logic's
// requirement that graph queries on a live index use a read snapshot.
func (s *SQLiteStore) Chain(ctx context.Context, name string, dir Direction, depth, limit, minNameLen int) ([]ChainHop, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return NewMemoryStoreFromSnapshot(snap).Chain(ctx, name, dir, depth, limit, minNameLen)
}

func (s *SQLiteStore) Query(ctx context.Context, script string, params map[string]any) (QueryResult, error) {
	snap, err := s.loadSnapshotFull(ctx)
	if err != nil {
		return QueryResult{}, err
	}
	return NewMemoryStoreFromSnapshot(snap).Query(ctx, script, params)
}

func (s *SQLiteStore) loadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	fileRows, err := s.db.QueryContext(ctx, `SELECT file_id, path, language FROM ast_file`)
	if err != nil {
		return snap, err
	}
	for fileRows.Next() {
		var f FileRow
		if err := fileRows.Scan(&f.FileID, &f.Path, &f.Language); err != nil {
			fileRows.Close()
			return snap, err
		}
		snap.Files = append(snap.Files, f)
	}
	fileRows.Close()

	symRows, err := s.db.QueryContext(ctx, `SELECT symbol_id, name, kind, lang, file, signature, start_line, end_line FROM ast_symbol`)
	if err != nil {
		return snap, err
	}
	for symRows.Next() {
		var sy SymbolRow
		if err := symRows.Scan(&sy.SymbolID, &sy.Name, &sy.Kind, &sy.Lang, &sy.File, &sy.Signature, &sy.StartLine, &sy.EndLine); err != nil {
			symRows.Close()
			return snap, err
		}
		snap.Symbols = append(snap.Symbols, sy)
	}
	symRows.Close()

	callRows, err := s.db.QueryContext(ctx, `SELECT from_id, callee_name, lang, file, line, column FROM ast_calls_name`)
	if err != nil {
		return snap, err
	}
	for callRows.Next() {
		var c CallEdge
		if err := callRows.Scan(&c.FromID, &c.CalleeName, &c.Lang, &c.File, &c.Line, &c.Column); err != nil {
			callRows.Close()
			return snap, err
		}
		snap.Calls = append(snap.Calls, c)
	}
	callRows.Close()

	return snap, nil
}

// Export dumps every relation to the same JSON snapshot form the
// in-memory engine uses, matching meta.json's astGraph.dbPath-less
// export sibling file (ast-graph.export.json).
func (s *SQLiteStore) Export() ([]byte, error) {
	snap, err := s.loadSnapshotFull(context.Background())
	if err != nil {
		return nil, err
	}
	return NewMemoryStoreFromSnapshot(snap).Export()
}

func (s *SQLiteStore) loadSnapshotFull(ctx context.Context) (Snapshot, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return snap, err
	}

	extRows, err := s.db.QueryContext(ctx, `SELECT symbol_id, name, file FROM ast_extends_name`)
	if err != nil {
		return snap, err
	}
	for extRows.Next() {
		var e ExtendsEdge
		if err := extRows.Scan(&e.SymbolID, &e.Name, &e.File); err != nil {
			extRows.Close()
			return snap, err
		}
		snap.Extends = append(snap.Extends, e)
	}
	extRows.Close()

	implRows, err := s.db.QueryContext(ctx, `SELECT symbol_id, name, file FROM ast_implements_name`)
	if err != nil {
		return snap, err
	}
	for implRows.Next() {
		var e ImplementsEdge
		if err := implRows.Scan(&e.SymbolID, &e.Name, &e.File); err != nil {
			implRows.Close()
			return snap, err
		}
		snap.Implements = append(snap.Implements, e)
	}
	implRows.Close()

	containsRows, err := s.db.QueryContext(ctx, `SELECT parent_id, child_id, file FROM ast_contains`)
	if err != nil {
		return snap, err
	}
	for containsRows.Next() {
		var e ContainsEdge
		if err := containsRows.Scan(&e.ParentID, &e.ChildID, &e.File); err != nil {
			containsRows.Close()
			return snap, err
		}
		snap.Contains = append(snap.Contains, e)
	}
	containsRows.Close()

	refRows, err := s.db.QueryContext(ctx, `SELECT from_id, lang, name, kind, file, line, column FROM ast_refs_name`)
	if err != nil {
		return snap, err
	}
	for refRows.Next() {
		var r RefEdge
		if err := refRows.Scan(&r.FromID, &r.Lang, &r.Name, &r.Kind, &r.File, &r.Line, &r.Column); err != nil {
			refRows.Close()
			return snap, err
		}
		snap.Refs = append(snap.Refs, r)
	}
	refRows.Close()

	return snap, nil
}

// Import replaces every table's contents with the snapshot's rows,
// inside one transaction.
func (s *SQLiteStore) Import(data []byte) error {
	mem := NewMemoryStore()
	if err := mem.Import(data); err != nil {
		return err
	}
	snap := mem.Snapshot()

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	tables := []string{"ast_file", "ast_symbol", "ast_contains", "ast_extends_name", "ast_implements_name", "ast_refs_name", "ast_calls_name"}
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return fmt.Errorf("astgraph: import clear %s: %w", t, err)
		}
	}

	for _, f := range snap.Files {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ast_file(file_id, path, language) VALUES (?, ?, ?)`, f.FileID, f.Path, f.Language); err != nil {
			return err
		}
	}
	for _, sy := range snap.Symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ast_symbol(symbol_id, name, kind, lang, file, signature, start_line, end_line) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sy.SymbolID, sy.Name, sy.Kind, sy.Lang, sy.File, sy.Signature, sy.StartLine, sy.EndLine); err != nil {
			return err
		}
	}
	for _, e := range snap.Contains {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ast_contains(parent_id, child_id, file) VALUES (?, ?, ?)`, e.ParentID, e.ChildID, e.File); err != nil {
			return err
		}
	}
	for _, e := range snap.Extends {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ast_extends_name(symbol_id, name, file) VALUES (?, ?, ?)`, e.SymbolID, e.Name, e.File); err != nil {
			return err
		}
	}
	for _, e := range snap.Implements {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ast_implements_name(symbol_id, name, file) VALUES (?, ?, ?)`, e.SymbolID, e.Name, e.File); err != nil {
			return err
		}
	}
	for _, r := range snap.Refs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ast_refs_name(from_id, lang, name, kind, file, line, column) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.FromID, r.Lang, r.Name, r.Kind, r.File, r.Line, r.Column); err != nil {
			return err
		}
	}
	for _, c := range snap.Calls {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ast_calls_name(from_id, callee_name, lang, file, line, column) VALUES (?, ?, ?, ?, ?, ?)`,
			c.FromID, c.CalleeName, c.Lang, c.File, c.Line, c.Column); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
