package chunk

import "strings"

// ParseHeritage parses the `extends`/`implements` clauses out of a
// declaration signature: "extends X" adds one super name;
// "implements I, J, K<T, U>" splits by top-level commas, tracking <>
// depth so generic type arguments aren't mistaken for separators.
func ParseHeritage(signature string) (extends []string, implements []string) {
	if signature == "" {
		return nil, nil
	}

	extendsIdx := indexWord(signature, "extends")
	implementsIdx := indexWord(signature, "implements")

	var extendsClause, implementsClause string

	switch {
	case extendsIdx >= 0 && implementsIdx >= 0:
		if extendsIdx < implementsIdx {
			extendsClause = signature[extendsIdx+len("extends") : implementsIdx]
			implementsClause = signature[implementsIdx+len("implements"):]
		} else {
			implementsClause = signature[implementsIdx+len("implements") : extendsIdx]
			extendsClause = signature[extendsIdx+len("extends"):]
		}
	case extendsIdx >= 0:
		extendsClause = signature[extendsIdx+len("extends"):]
	case implementsIdx >= 0:
		implementsClause = signature[implementsIdx+len("implements"):]
	default:
		return nil, nil
	}

	if extendsClause != "" {
		for _, name := range splitTopLevelCommas(extendsClause) {
			if name != "" {
				extends = append(extends, name)
			}
		}
	}
	if implementsClause != "" {
		implements = splitTopLevelCommas(implementsClause)
	}

	return extends, implements
}

// indexWord finds the index of word as a standalone token (not a
// substring of a longer identifier) in s, or -1.
func indexWord(s, word string) int {
	start := 0
	for {
		idx := strings.Index(s[start:], word)
		if idx < 0 {
			return -1
		}
		abs := start + idx
		before := byte(' ')
		if abs > 0 {
			before = s[abs-1]
		}
		after := byte(' ')
		if abs+len(word) < len(s) {
			after = s[abs+len(word)]
		}
		if !isIdentChar(before) && !isIdentChar(after) {
			return abs
		}
		start = abs + len(word)
	}
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// splitTopLevelCommas splits s on commas that occur outside of any
// <...> nesting (generic type argument lists), trimming whitespace
// and the trailing "{" some signatures still carry.
func splitTopLevelCommas(s string) []string {
	s = strings.TrimRight(strings.TrimSpace(s), "{")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))

	result := make([]string, 0, len(out))
	for _, name := range out {
		if name != "" {
			result = append(result, name)
		}
	}
	return result
}
