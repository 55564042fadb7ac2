package adaptive

import (
	"regexp"
	"sort"
	"strings"
)

// minConfidence and maxConfidence bound a classification's confidence
// ("confidence ∈ [0.25, 0.95]").
const (
	minConfidence  = 0.25
	maxConfidence  = 0.95
	baseConfidence = 0.45
)

// hint sets: lexical cues that push a query toward one primary.
var semanticHints = []string{
	"how", "what", "why", "explain", "describe", "understand",
	"purpose", "works", "meaning", "overview", "summarize", "intent",
}

var structuralHints = []string{
	"callers", "callees", "calls", "calling", "extends", "implements",
	"inherits", "inheritance", "subclass", "children", "contains",
	"hierarchy", "chain", "parent", "references", "referenced",
	"upstream", "downstream", "implementors",
}

var historicalHints = []string{
	"history", "commit", "commits", "evolution", "changed", "rename",
	"renamed", "blame", "introduced", "deprecated", "diff", "since",
	"over time", "regression", "when was", "who added",
}

var symbolHints = []string{
	"function", "method", "class", "interface", "symbol", "definition",
	"signature", "declared", "defined",
}

// fileExtensionPattern recognizes a path-like token ending in a
// recognized source extension, promoted to a `file` entity.
var fileExtensionPattern = regexp.MustCompile(`(?i)[\w./-]+\.(go|py|ts|tsx|js|jsx|java|rs|c|h|md|mdx|ya?ml)\b`)

// identifierPattern recognizes camelCase/PascalCase/snake_case tokens
// likely to name a code symbol rather than an English word.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Classify performs lexical scoring over the
// four hint sets plus a file-extension regex, producing a primary
// strategy, a bounded confidence, and extracted entities.
func Classify(query string) Classification {
	lower := strings.ToLower(query)
	words := strings.Fields(lower)

	scores := map[Primary]int{
		PrimarySemantic:   countHints(lower, semanticHints),
		PrimaryStructural: countHints(lower, structuralHints),
		PrimaryHistorical: countHints(lower, historicalHints),
	}
	symbolScore := countHints(lower, symbolHints)

	primary, confidence := pickPrimary(scores, symbolScore, len(words))
	entities := extractEntities(query)

	return Classification{Primary: primary, Confidence: confidence, Entities: entities}
}

// countHints returns how many hint phrases occur in text.
func countHints(text string, hints []string) int {
	n := 0
	for _, h := range hints {
		if strings.Contains(text, h) {
			n++
		}
	}
	return n
}

// pickPrimary picks the dominant category and derives a bounded
// confidence from the margin between the winner and the runner-up.
// A tie (including an all-zero score, which includes a lone symbol
// hint with no structural/semantic/historical signal) falls back to
// hybrid.
func pickPrimary(scores map[Primary]int, symbolScore, wordCount int) (Primary, float64) {
	type entry struct {
		p Primary
		s int
	}
	ordered := []entry{
		{PrimarySemantic, scores[PrimarySemantic]},
		{PrimaryStructural, scores[PrimaryStructural]},
		{PrimaryHistorical, scores[PrimaryHistorical]},
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].s > ordered[j].s })

	top, second := ordered[0], ordered[1]
	if top.s == 0 {
		// No structural/semantic/historical signal. A strong symbol
		// hint alone still counts as hybrid (structural+semantic mix
		// typical of "definition of X" queries), just with low
		// confidence.
		if symbolScore > 0 {
			return PrimaryHybrid, clampConfidence(baseConfidence)
		}
		return PrimaryHybrid, minConfidence
	}
	if top.s == second.s {
		return PrimaryHybrid, clampConfidence(baseConfidence + 0.05*float64(top.s))
	}

	margin := top.s - second.s
	confidence := baseConfidence + 0.12*float64(margin) + 0.03*float64(top.s)
	if wordCount > 0 && wordCount <= 3 {
		// Short, sharply-worded queries are classified with more
		// conviction than long rambling ones.
		confidence += 0.05
	}
	return top.p, clampConfidence(confidence)
}

func clampConfidence(c float64) float64 {
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

// extractEntities pulls file-path-like and symbol-like tokens, plus
// any remaining salient keyword, out of the raw query text.
func extractEntities(query string) []Entity {
	var entities []Entity
	seen := make(map[string]bool)

	for _, m := range fileExtensionPattern.FindAllString(query, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		entities = append(entities, Entity{Type: EntityFile, Value: m, Confidence: 0.9})
	}

	for _, tok := range strings.Fields(query) {
		tok = strings.Trim(tok, `.,:;!?"'()`)
		if tok == "" || seen[tok] {
			continue
		}
		if looksLikeSymbol(tok) {
			seen[tok] = true
			entities = append(entities, Entity{Type: EntitySymbol, Value: tok, Confidence: 0.75})
			continue
		}
	}

	if len(entities) == 0 {
		for _, tok := range strings.Fields(query) {
			tok = strings.Trim(tok, `.,:;!?"'()`)
			lower := strings.ToLower(tok)
			if len(tok) > 2 && !seen[tok] && !isStopword(lower) {
				seen[tok] = true
				entities = append(entities, Entity{Type: EntityKeyword, Value: tok, Confidence: 0.5})
			}
		}
	}

	return entities
}

// looksLikeSymbol reports whether a token has camelCase, PascalCase,
// or snake_case shape characteristic of a code identifier rather than
// a plain English word.
func looksLikeSymbol(tok string) bool {
	if !identifierPattern.MatchString(tok) {
		return false
	}
	hasUpperInMiddle := false
	for i, r := range tok {
		if i > 0 && r >= 'A' && r <= 'Z' {
			hasUpperInMiddle = true
		}
	}
	hasUnderscore := strings.Contains(tok, "_")
	return hasUpperInMiddle || hasUnderscore
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true,
	"in": true, "for": true, "and": true, "or": true, "is": true,
	"are": true, "does": true, "do": true,
}

func isStopword(w string) bool { return stopwords[w] }
