package adaptive

import "strings"

// maxExpansions caps the expansion list at 12 unique entries.
const maxExpansions = 12

// abbreviations maps common shorthand to its expansion, the vocabulary
// mismatch case expansion exists to bridge.
var abbreviations = map[string][]string{
	"auth":   {"authentication", "authorization"},
	"cfg":    {"config", "configuration"},
	"db":     {"database"},
	"impl":   {"implementation"},
	"repo":   {"repository"},
	"svc":    {"service"},
	"ctx":    {"context"},
	"init":   {"initialize", "initialization"},
	"async":  {"asynchronous"},
	"sync":   {"synchronous"},
	"err":    {"error"},
	"req":    {"request"},
	"resp":   {"response"},
	"pkg":    {"package"},
	"fn":     {"function"},
	"var":    {"variable"},
}

// synonyms maps a code-domain term to near-synonyms a caller might
// prefer, distinct from abbreviation expansion.
var synonyms = map[string][]string{
	"function":   {"method", "func"},
	"method":     {"function"},
	"class":      {"type", "struct"},
	"delete":     {"remove"},
	"remove":     {"delete"},
	"create":     {"add", "new"},
	"fetch":      {"get", "retrieve"},
	"retrieve":   {"fetch", "get"},
	"error":      {"exception", "failure"},
	"start":      {"begin", "init"},
	"stop":       {"end", "halt"},
	"handler":    {"callback"},
	"invoke":     {"call"},
}

// domainVocab adds neighbors for terms common to this system's own
// domain vocabulary (symbols, graphs, commits) that plain English
// synonym lists wouldn't surface.
var domainVocab = map[string][]string{
	"symbol":  {"identifier", "declaration"},
	"graph":   {"ast", "structure"},
	"commit":  {"revision", "changeset"},
	"caller":  {"callers", "invoker"},
	"callee":  {"callees", "invoked"},
}

// Expand implements expander: abbreviation table, synonym
// table, domain vocab, plus two history/structure suffixes appended
// when the classification's primary matches. Returns at most 12
// unique expansions (the original query terms are not counted against
// the cap — they are the seed, not an expansion).
func Expand(query string, c Classification) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(term string) bool {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" || seen[key] {
			return false
		}
		if len(out) >= maxExpansions {
			return false
		}
		seen[key] = true
		out = append(out, term)
		return true
	}

	for _, tok := range strings.Fields(query) {
		lower := strings.ToLower(tok)
		for _, table := range []map[string][]string{abbreviations, synonyms, domainVocab} {
			for _, exp := range table[lower] {
				add(exp)
			}
		}
	}

	switch c.Primary {
	case PrimaryHistorical:
		add(query + " history")
		add(query + " evolution")
	case PrimaryStructural:
		add(query + " callers")
		add(query + " callees")
	}

	return out
}
