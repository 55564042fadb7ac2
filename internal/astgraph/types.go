// Package astgraph implements the relational AST graph store described
// as five relations populated during indexing (files, symbols,
// containment, heritage, references, calls) behind a query surface
// that supports both exact lookups and small graph traversals.
//
// Two backends satisfy the same Store contract: a SQLite-backed one
// (the preferred, incrementally-mutable persistence) and an in-memory
// one with JSON snapshot export/import, used when the SQLite driver
// can't be loaded. Both share the same read-side semantics because
// Chain and Query run against an in-memory Snapshot either way: the
// SQLite backend loads one from its tables before traversing it.
package astgraph

import "context"

// FileRow is one row of the implicit file relation: every indexed
// file gets a node so Children can be called with as_file=true.
type FileRow struct {
	FileID   string
	Path     string
	Language string
}

// SymbolRow is one row of ast_symbol: a declared entity.
type SymbolRow struct {
	SymbolID  string
	Name      string
	Kind      string
	Lang      string
	File      string
	Signature string
	StartLine int
	EndLine   int
}

// ContainsEdge is one row of ast_contains: ParentID (a file ID or a
// container symbol's ID) directly contains ChildID (a symbol ID).
// File records which file contributed the edge, so a file's rows can
// be replaced or deleted as a unit.
type ContainsEdge struct {
	ParentID string
	ChildID  string
	File     string
}

// ExtendsEdge is one row of ast_extends_name: SymbolID names Name as
// a supertype. Name is not resolved to a SymbolID because the
// supertype may live in an unindexed file or external package.
type ExtendsEdge struct {
	SymbolID string
	Name     string
	File     string
}

// ImplementsEdge is one row of ast_implements_name, structurally
// identical to ExtendsEdge but for interface implementation.
type ImplementsEdge struct {
	SymbolID string
	Name     string
	File     string
}

// RefEdge is one row of ast_refs_name: an occurrence of Name at a
// source location, attributed to the enclosing FromID (a symbol ID,
// or the file ID when the reference falls back to file scope).
type RefEdge struct {
	FromID string
	Lang   string
	Name   string
	Kind   string // call | new | type
	File   string
	Line   int
	Column int
}

// CallEdge is one row of ast_calls_name: the symbol at FromID calls a
// function/method named CalleeName. Unlike RefEdge, calls are always
// attributed to an enclosing symbol (file-scoped calls still get an
// edge, with FromID set to the file ID).
type CallEdge struct {
	FromID     string
	CalleeName string
	Lang       string
	File       string
	Line       int
	Column     int
}

// Batch is the full set of rows one file contributes during indexing.
// Put replaces whatever rows the file previously contributed with
// this batch (upsert-by-key, ":put" semantics).
type Batch struct {
	File       FileRow
	Symbols    []SymbolRow
	Contains   []ContainsEdge
	Extends    []ExtendsEdge
	Implements []ImplementsEdge
	Refs       []RefEdge
	Calls      []CallEdge
}

// FindRow is one result row of Find.
type FindRow struct {
	Name      string
	Kind      string
	File      string
	Signature string
	StartLine int
	EndLine   int
}

// ChildRow is one result row of Children.
type ChildRow struct {
	RefID     string
	Name      string
	Kind      string
	File      string
	StartLine int
	EndLine   int
}

// RefRow is one result row of Refs.
type RefRow struct {
	FromID string
	Lang   string
	Name   string
	Kind   string
	File   string
	Line   int
	Column int
}

// CallRow is one result row of Callers/Callees.
type CallRow struct {
	FromID     string
	CalleeName string
	Lang       string
	File       string
	Line       int
	Column     int
}

// Direction selects which way Chain walks ast_calls_name.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"
	DirectionDownstream Direction = "downstream"
)

// ChainHop is one edge surfaced by a Chain traversal, tagged with the
// depth at which it was discovered.
type ChainHop struct {
	Depth  int
	From   string
	To     string
	Lang   string
	File   string
	Line   int
	Column int
}

// QueryResult is the generic {headers, rows} shape Query returns for
// an opaque script.
type QueryResult struct {
	Headers []string
	Rows    [][]any
}

// Store is the contract every AST-graph backend satisfies:
// run/export/import/close, plus the
// typed query operations the engine uses directly.
type Store interface {
	Put(ctx context.Context, b Batch) error
	DeleteFile(ctx context.Context, path string) error

	Find(ctx context.Context, prefix, lang string, limit int) ([]FindRow, error)
	Children(ctx context.Context, parentID, lang string, asFile bool) ([]ChildRow, error)
	Refs(ctx context.Context, name, lang string, limit int) ([]RefRow, error)
	Callers(ctx context.Context, name, lang string, limit int) ([]CallRow, error)
	Callees(ctx context.Context, name, lang string, limit int) ([]CallRow, error)
	Chain(ctx context.Context, name string, dir Direction, depth, limit, minNameLen int) ([]ChainHop, error)
	Query(ctx context.Context, script string, params map[string]any) (QueryResult, error)

	Export() ([]byte, error)
	Import(data []byte) error
	Close() error
}
