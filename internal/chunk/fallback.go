package chunk

import (
	"bytes"
	"fmt"
	"path/filepath"
)

// ParseFailureFallback selects what the indexer does when a language is
// unsupported or tree-sitter fails to produce a usable parse.
type ParseFailureFallback string

const (
	// FallbackSkip emits nothing for the file.
	FallbackSkip ParseFailureFallback = "skip"
	// FallbackLineChunk emits N-line virtual "document" symbols.
	FallbackLineChunk ParseFailureFallback = "line-chunk"
	// FallbackTextOnly emits a single file-spanning "document" symbol.
	FallbackTextOnly ParseFailureFallback = "text-only"
)

// ParseFallback normalizes a configured fallback name to the enum,
// accepting both the hyphenated and underscored spellings. Anything
// unrecognized falls back to line chunking.
func ParseFallback(s string) ParseFailureFallback {
	switch s {
	case "skip":
		return FallbackSkip
	case "text-only", "text_only":
		return FallbackTextOnly
	default:
		return FallbackLineChunk
	}
}

// FallbackSymbols emits the virtual symbols for a file that could not
// be parsed: nothing for skip, N-line document symbols for line-chunk,
// a single file-spanning document symbol for text-only. Every fallback
// path emits Kind == "document" symbols so downstream stores stay
// typed like the parsed path.
func FallbackSymbols(fb ParseFailureFallback, path string, content []byte, lineChunkSize int) []*Symbol {
	switch fb {
	case FallbackSkip:
		return nil
	case FallbackTextOnly:
		return []*Symbol{DocumentSymbol(path, content)}
	default:
		if lineChunkSize <= 0 {
			lineChunkSize = 40
		}
		lines := bytes.Split(content, []byte("\n"))
		var out []*Symbol
		for start := 0; start < len(lines); start += lineChunkSize {
			end := start + lineChunkSize
			if end > len(lines) {
				end = len(lines)
			}
			out = append(out, &Symbol{
				Name:      fmt.Sprintf("%s:%d-%d", filepath.Base(path), start+1, end),
				Kind:      SymbolTypeDocument,
				StartLine: start + 1,
				EndLine:   end,
				Signature: string(bytes.Join(lines[start:end], []byte("\n"))),
			})
		}
		return out
	}
}

// DocumentSymbol wraps a whole file in a single document-kind symbol,
// used both by the text-only fallback and for formats with no symbol
// parser (markdown, yaml).
func DocumentSymbol(path string, content []byte) *Symbol {
	lineCount := bytes.Count(content, []byte("\n")) + 1
	return &Symbol{
		Name:      filepath.Base(path),
		Kind:      SymbolTypeDocument,
		StartLine: 1,
		EndLine:   lineCount,
		Signature: string(content),
	}
}
