// Package dsr generates and queries Deterministic Semantic Records:
// canonical, content-addressed per-commit symbol diffs.
package dsr

// SymbolRef identifies one side of a matched (or unmatched) symbol in
// an operation. ContentHash is sha256 over the symbol's own line
// range, independent of the rest of the file.
type SymbolRef struct {
	File        string `json:"file"`
	Container   string `json:"container,omitempty"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Signature   string `json:"signature"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	ContentHash string `json:"content_hash"`
}

// Operation is one symbol-level change: add, modify, delete, or
// rename. Previous is set only for modify and rename.
type Operation struct {
	Type     string     `json:"type"`
	Symbol   SymbolRef  `json:"symbol"`
	Previous *SymbolRef `json:"previous,omitempty"`
}

const (
	OpAdd    = "add"
	OpModify = "modify"
	OpDelete = "delete"
	OpRename = "rename"
)

// Record is the canonical per-commit semantic diff written to
// dsr/<commit>.json.
type Record struct {
	CommitHash         string      `json:"commit_hash"`
	ParentHash         string      `json:"parent_hash"`
	Subject            string      `json:"subject"`
	SemanticChangeType string      `json:"semantic_change_type"`
	RiskLevel          string      `json:"risk_level"`
	AffectedSymbols    []string    `json:"affected_symbols"`
	AstOperations      []Operation `json:"ast_operations"`
}

// symbolEntry is the matcher's working representation of a parsed
// symbol, before it is split into the Symbol/Previous shape of an
// Operation.
type symbolEntry struct {
	File        string
	Container   string
	Kind        string
	Name        string
	Signature   string
	StartLine   int
	EndLine     int
	ContentHash string
}

func (s symbolEntry) ref() SymbolRef {
	return SymbolRef{
		File:        s.File,
		Container:   s.Container,
		Kind:        s.Kind,
		Name:        s.Name,
		Signature:   s.Signature,
		StartLine:   s.StartLine,
		EndLine:     s.EndLine,
		ContentHash: s.ContentHash,
	}
}
