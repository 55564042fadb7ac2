package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SupportedPartitionLanguages is the fixed set of per-language
// partitions the vector store maintains
var SupportedPartitionLanguages = []string{
	"java", "ts", "python", "go", "rust", "c", "markdown", "yaml",
}

// ChunkRow is a content-addressed record in a partition's chunks
// table: (content_hash PK, text, dim, scale, qvec_bytes).
type ChunkRow struct {
	ContentHash string
	Text        string
	Dim         int
	Scale       float32
	QVecBytes   []byte
}

// RefRow is a single occurrence record in a partition's refs table:
// (ref_id PK, content_hash, file, symbol, kind, signature, start_line,
// end_line).
type RefRow struct {
	RefID       string
	ContentHash string
	File        string
	Symbol      string
	Kind        string
	Signature   string
	StartLine   int
	EndLine     int
}

// Partition is a single per-language sub-store inside the vector
// store, holding the chunks (content-addressed) and refs (per-
// occurrence) tables.
type Partition struct {
	mu       sync.Mutex
	db       *sql.DB
	Language string
	path     string
}

// OpenPartition opens (creating if necessary) the SQLite-backed
// partition for one language. Using SQLite here, rather than a Lance
// columnar file, keeps the on-disk `lancedb/` directory name from
// the external-interfaces layout while keeping an
// everything-is-SQLite storage posture (see DESIGN.md).
func OpenPartition(dir, language string) (*Partition, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("partition %s: create dir: %w", language, err)
	}
	path := filepath.Join(dir, language+".sqlite")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("partition %s: open: %w", language, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("partition %s: wal: %w", language, err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			content_hash TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			dim INTEGER NOT NULL,
			scale REAL NOT NULL,
			qvec_bytes BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS refs (
			ref_id TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			file TEXT NOT NULL,
			symbol TEXT NOT NULL,
			kind TEXT NOT NULL,
			signature TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_refs_file ON refs(file);`,
		`CREATE INDEX IF NOT EXISTS idx_refs_symbol ON refs(symbol);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("partition %s: schema: %w", language, err)
		}
	}

	return &Partition{db: db, Language: language, path: path}, nil
}

// InsertChunks inserts content-addressed chunks. Chunk insertion is
// idempotent by primary key; re-inserting an existing content_hash is
// a no-op, never an error.
func (p *Partition) InsertChunks(ctx context.Context, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO chunks(content_hash, text, dim, scale, qvec_bytes) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ContentHash, r.Text, r.Dim, r.Scale, r.QVecBytes); err != nil {
			return fmt.Errorf("insert chunk %s: %w", r.ContentHash, err)
		}
	}
	return tx.Commit()
}

// WriteFileRefs replaces all refs belonging to file with the given
// rows: DELETE FROM refs WHERE file = P, then insert the new set.
// This runs once per file per indexing pass.
func (p *Partition) WriteFileRefs(ctx context.Context, file string, rows []RefRow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM refs WHERE file = ?`, file); err != nil {
		return fmt.Errorf("delete refs for %s: %w", file, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO refs(ref_id, content_hash, file, symbol, kind, signature, start_line, end_line) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.RefID, r.ContentHash, r.File, r.Symbol, r.Kind, r.Signature, r.StartLine, r.EndLine); err != nil {
			return fmt.Errorf("insert ref %s: %w", r.RefID, err)
		}
	}
	return tx.Commit()
}

// GetChunk fetches a single chunk by content hash.
func (p *Partition) GetChunk(ctx context.Context, contentHash string) (*ChunkRow, error) {
	row := p.db.QueryRowContext(ctx, `SELECT content_hash, text, dim, scale, qvec_bytes FROM chunks WHERE content_hash = ?`, contentHash)
	var c ChunkRow
	if err := row.Scan(&c.ContentHash, &c.Text, &c.Dim, &c.Scale, &c.QVecBytes); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ExistingChunkHashes returns the set of content hashes already
// present in this partition, used to seed the worker pool's
// existingChunkHashes dedup set.
func (p *Partition) ExistingChunkHashes(ctx context.Context) (map[string]bool, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT content_hash FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out[h] = true
	}
	return out, rows.Err()
}

// AllChunks returns every chunk currently stored in this partition,
// used to rebuild the partition's HNSW layer after a write.
func (p *Partition) AllChunks(ctx context.Context) ([]ChunkRow, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT content_hash, text, dim, scale, qvec_bytes FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var c ChunkRow
		if err := rows.Scan(&c.ContentHash, &c.Text, &c.Dim, &c.Scale, &c.QVecBytes); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RefsByContentHash returns every ref row occurrence of a given
// content-addressed chunk, used to map an HNSW hit back to its
// symbol occurrences.
func (p *Partition) RefsByContentHash(ctx context.Context, contentHash string) ([]RefRow, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT ref_id, content_hash, file, symbol, kind, signature, start_line, end_line FROM refs WHERE content_hash = ?`, contentHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RefRow
	for rows.Next() {
		var r RefRow
		if err := rows.Scan(&r.RefID, &r.ContentHash, &r.File, &r.Symbol, &r.Kind, &r.Signature, &r.StartLine, &r.EndLine); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RefsByFile returns all ref rows currently stored for a file.
func (p *Partition) RefsByFile(ctx context.Context, file string) ([]RefRow, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT ref_id, content_hash, file, symbol, kind, signature, start_line, end_line FROM refs WHERE file = ?`, file)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RefRow
	for rows.Next() {
		var r RefRow
		if err := rows.Scan(&r.RefID, &r.ContentHash, &r.File, &r.Symbol, &r.Kind, &r.Signature, &r.StartLine, &r.EndLine); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteFileRefs removes all refs for a file without inserting a
// replacement set (used for the deletions phase of incremental
// indexing).
func (p *Partition) DeleteFileRefs(ctx context.Context, file string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.db.ExecContext(ctx, `DELETE FROM refs WHERE file = ?`, file)
	return err
}

// Close closes the underlying database handle.
func (p *Partition) Close() error {
	return p.db.Close()
}

// PartitionSet manages the per-language partitions that make up the
// vector store for one repository index.
type PartitionSet struct {
	mu         sync.RWMutex
	dir        string
	partitions map[string]*Partition
}

// OpenPartitionSet opens (lazily creating) partitions under dir, one
// SQLite file per supported language.
func OpenPartitionSet(dir string) *PartitionSet {
	return &PartitionSet{dir: dir, partitions: make(map[string]*Partition)}
}

// Partition returns (opening lazily) the partition for language.
// LanguageNotAvailable is the caller's concern: unsupported languages
// are simply not recognized by the extension map upstream.
func (s *PartitionSet) Partition(language string) (*Partition, error) {
	s.mu.RLock()
	p, ok := s.partitions[language]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.partitions[language]; ok {
		return p, nil
	}
	p, err := OpenPartition(s.dir, language)
	if err != nil {
		return nil, err
	}
	s.partitions[language] = p
	return p, nil
}

// CloseAll closes every opened partition.
func (s *PartitionSet) CloseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, p := range s.partitions {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
