package chunk

import "strings"

// SpecLanguageForPath returns the storage-layer language name for
// path's language-inference table. This is the name used
// for partition selection, the AST graph's lang column, and symbol
// search's language filter — distinct from ParserLanguageForPath
// because four tree-sitter grammars (ts, tsx, js, jsx) collapse into
// one "ts" partition.
func SpecLanguageForPath(path string) (string, bool) {
	switch extOf(path) {
	case ".md", ".mdx":
		return "markdown", true
	case ".yml", ".yaml":
		return "yaml", true
	case ".java":
		return "java", true
	case ".c", ".h":
		return "c", true
	case ".go":
		return "go", true
	case ".py":
		return "python", true
	case ".rs":
		return "rust", true
	case ".ts", ".tsx", ".js", ".jsx":
		return "ts", true
	default:
		return "", false
	}
}

// ParserLanguageForPath returns the tree-sitter registry language name
// for path, or false for languages with no symbol parser (markdown,
// yaml — represented as document symbols instead).
func ParserLanguageForPath(path string) (string, bool) {
	switch extOf(path) {
	case ".go":
		return "go", true
	case ".ts":
		return "typescript", true
	case ".tsx":
		return "tsx", true
	case ".js", ".mjs":
		return "javascript", true
	case ".jsx":
		return "jsx", true
	case ".py":
		return "python", true
	case ".java":
		return "java", true
	case ".rs":
		return "rust", true
	case ".c", ".h":
		return "c", true
	default:
		return "", false
	}
}

func extOf(path string) string {
	p := strings.ToLower(path)
	i := strings.LastIndexByte(p, '.')
	if i < 0 {
		return ""
	}
	return p[i:]
}
