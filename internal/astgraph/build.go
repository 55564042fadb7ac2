package astgraph

import (
	"github.com/giai-dev/giai/internal/chunk"
	"github.com/giai-dev/giai/internal/hashid"
)

// BuildBatch turns one file's parsed symbols and references into the
// relation rows Put expects. Every ID is derived content-addressably
// via internal/hashid so reindexing an unchanged file produces the
// same IDs and the same rows (content-addressed idempotence
// property, extended here from chunks to AST-graph rows).
func BuildBatch(path, language string, symbols []*chunk.Symbol, refs []*chunk.AstReference) Batch {
	path = hashid.NormalizePath(path)
	fileID := hashid.FileID(path)

	b := Batch{File: FileRow{FileID: fileID, Path: path, Language: language}}

	symIDByName := make(map[string]string, len(symbols))
	containerID := func(sym *chunk.Symbol) string {
		if sym.Container == nil {
			return fileID
		}
		return hashid.ContentHash(path, string(sym.Container.Kind), sym.Container.Name, sym.Container.Signature)
	}

	for _, sym := range symbols {
		id := hashid.ContentHash(path, string(sym.Kind), sym.Name, sym.Signature)
		symIDByName[sym.Name] = id

		b.Symbols = append(b.Symbols, SymbolRow{
			SymbolID: id, Name: sym.Name, Kind: string(sym.Kind), Lang: language,
			File: path, Signature: sym.Signature, StartLine: sym.StartLine, EndLine: sym.EndLine,
		})
		// ast_contains edges run from a symbol's enclosing container
		// (or the file node) to the symbol; child IDs hash the path,
		// kind, name and first-line signature of the symbol itself.
		b.Contains = append(b.Contains, ContainsEdge{ParentID: containerID(sym), ChildID: id, File: path})

		for _, ext := range sym.Extends {
			b.Extends = append(b.Extends, ExtendsEdge{SymbolID: id, Name: ext, File: path})
		}
		for _, impl := range sym.Implements {
			b.Implements = append(b.Implements, ImplementsEdge{SymbolID: id, Name: impl, File: path})
		}
	}

	for _, ref := range refs {
		fromID := fileID
		if ref.Scope != "" {
			if id, ok := symIDByName[ref.Scope]; ok {
				fromID = id
			}
		}

		b.Refs = append(b.Refs, RefEdge{
			FromID: fromID, Lang: language, Name: ref.Name, Kind: string(ref.Kind),
			File: path, Line: ref.Line, Column: ref.Column,
		})

		// ast_calls_name is the subset of refs that Chain/Callers/Callees
		// traverse: calls and instantiations, not bare type references.
		if ref.Kind == chunk.RefKindCall || ref.Kind == chunk.RefKindNew {
			b.Calls = append(b.Calls, CallEdge{
				FromID: fromID, CalleeName: ref.Name, Lang: language,
				File: path, Line: ref.Line, Column: ref.Column,
			})
		}
	}

	return b
}
