package chunk

import (
	"context"
	"strings"
)

// ParseSymbolsAndRefs is the parser adapter's primary entry point:
// parse(language, bytes) -> (Symbols, References).
func ParseSymbolsAndRefs(ctx context.Context, parser *Parser, extractor *SymbolExtractor, language string, content []byte) (*Tree, []*Symbol, []*AstReference, error) {
	tree, err := parser.Parse(ctx, content, language)
	if err != nil {
		return nil, nil, nil, err
	}

	symbols := extractor.Extract(tree, content)
	AssignContainers(symbols)

	config, _ := extractor.registry.GetByName(language)
	refs := ExtractReferences(tree, config, symbols, language)

	return tree, symbols, refs, nil
}

// AssignContainers sets each symbol's Container to the smallest
// enclosing container-kind symbol (class/interface/enum/record/
// annotation), per the data-model's one-level-of-nesting rule.
func AssignContainers(symbols []*Symbol) {
	for _, s := range symbols {
		var best *Symbol
		for _, candidate := range symbols {
			if candidate == s || !IsContainerKind(candidate.Kind) {
				continue
			}
			if candidate.StartLine <= s.StartLine && s.EndLine <= candidate.EndLine {
				if best == nil || (candidate.EndLine-candidate.StartLine) < (best.EndLine-best.StartLine) {
					best = candidate
				}
			}
		}
		s.Container = best
	}
}

// ExtractReferences walks the tree for call/new/type-identifier nodes
// and emits an AstReference per occurrence, attributed to the
// narrowest enclosing callable symbol (function or method) at that
// line, falling back to file scope. Callee names are resolved by a
// textual heuristic, not full type/binding resolution.
func ExtractReferences(tree *Tree, config *LanguageConfig, symbols []*Symbol, language string) []*AstReference {
	if tree == nil || tree.Root == nil || config == nil {
		return nil
	}

	callTypes := toSet(config.CallTypes)
	newTypes := toSet(config.NewTypes)
	typeTypes := toSet(config.TypeRefTypes)

	var refs []*AstReference
	tree.Root.Walk(func(n *Node) bool {
		line := int(n.StartPoint.Row) + 1
		col := int(n.StartPoint.Column)

		switch {
		case callTypes[n.Type]:
			if name := calleeName(n.GetContent(tree.Source)); name != "" {
				refs = append(refs, &AstReference{
					Name: name, Kind: RefKindCall, Line: line, Column: col,
					Scope: enclosingScope(symbols, line),
				})
			}
		case newTypes[n.Type]:
			if name := newTargetName(n.GetContent(tree.Source)); name != "" {
				refs = append(refs, &AstReference{
					Name: name, Kind: RefKindNew, Line: line, Column: col,
					Scope: enclosingScope(symbols, line),
				})
			}
		case typeTypes[n.Type]:
			if name := n.GetContent(tree.Source); name != "" {
				refs = append(refs, &AstReference{
					Name: name, Kind: RefKindType, Line: line, Column: col,
					Scope: enclosingScope(symbols, line),
				})
			}
		}
		return true
	})

	return refs
}

func toSet(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// enclosingScope finds the narrowest function/method symbol containing
// line, or "" if none (file scope).
func enclosingScope(symbols []*Symbol, line int) string {
	var best *Symbol
	for _, s := range symbols {
		if s.Kind != SymbolTypeFunction && s.Kind != SymbolTypeMethod {
			continue
		}
		if s.StartLine <= line && line <= s.EndLine {
			if best == nil || (s.EndLine-s.StartLine) < (best.EndLine-best.StartLine) {
				best = s
			}
		}
	}
	if best == nil {
		return ""
	}
	return best.Name
}

// calleeName extracts the callee identifier from call-expression
// source text such as "foo.Bar(x, y)" -> "Bar", "foo(x)" -> "foo".
func calleeName(text string) string {
	paren := strings.IndexByte(text, '(')
	if paren < 0 {
		return ""
	}
	head := strings.TrimSpace(text[:paren])
	head = lastIdentifier(head)
	return head
}

// newTargetName extracts the constructed type name from "new T(...)"
// or "new pkg.T(...)" source text.
func newTargetName(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "new ")
	return calleeName(text)
}

// lastIdentifier returns the trailing identifier-looking suffix of s,
// splitting on the usual member-access separators.
func lastIdentifier(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if !isIdentChar(c) {
			return s[i+1:]
		}
	}
	return s
}
