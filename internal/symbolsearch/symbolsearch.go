// Package symbolsearch implements six symbol-search modes
// over a caller-supplied candidate set, independent of which
// backend (SQLite metadata store, AST graph) produced the candidates.
package symbolsearch

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// Mode selects one of the six lookup strategies.
type Mode string

const (
	ModeSubstring Mode = "substring"
	ModePrefix    Mode = "prefix"
	ModeWildcard  Mode = "wildcard"
	ModeRegex     Mode = "regex"
	ModeFuzzy     Mode = "fuzzy"
	ModeAuto      Mode = "auto"
)

// Candidate is one symbol eligible for matching.
type Candidate struct {
	Name      string
	Kind      string
	File      string
	StartLine int
	EndLine   int
	Signature string
}

// Result is a matched candidate with its rank tier, lower is better.
type Result struct {
	Candidate Candidate
	Tier      int // 0 = exact, 1 = prefix, 2 = substring/other
}

// DetectMode implements auto-detection: a query containing
// `*` or `?` is wildcard, one that starts with `^` or ends with `$`
// is regex, otherwise substring.
func DetectMode(query string) Mode {
	if strings.ContainsAny(query, "*?") {
		return ModeWildcard
	}
	if strings.HasPrefix(query, "^") || strings.HasSuffix(query, "$") {
		return ModeRegex
	}
	return ModeSubstring
}

// Search matches query against candidates using mode (resolving
// ModeAuto via DetectMode first), returning results ranked exact >
// prefix > substring/other, stable on (name, file, start_line).
func Search(candidates []Candidate, query string, mode Mode) ([]Result, error) {
	if mode == ModeAuto || mode == "" {
		mode = DetectMode(query)
	}

	matchFn, err := matcherFor(mode, query)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, c := range candidates {
		ok, tier := matchFn(c.Name)
		if !ok {
			continue
		}
		results = append(results, Result{Candidate: c, Tier: tier})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.Candidate.Name != b.Candidate.Name {
			return a.Candidate.Name < b.Candidate.Name
		}
		if a.Candidate.File != b.Candidate.File {
			return a.Candidate.File < b.Candidate.File
		}
		return a.Candidate.StartLine < b.Candidate.StartLine
	})
	return results, nil
}

// matcherFor returns a function reporting whether name matches query
// under mode, and if so, the rank tier it falls into.
func matcherFor(mode Mode, query string) (func(name string) (bool, int), error) {
	switch mode {
	case ModeSubstring:
		q := strings.ToLower(query)
		return func(name string) (bool, int) {
			n := strings.ToLower(name)
			switch {
			case n == q:
				return true, 0
			case strings.HasPrefix(n, q):
				return true, 1
			case strings.Contains(n, q):
				return true, 2
			}
			return false, 0
		}, nil

	case ModePrefix:
		q := strings.ToLower(query)
		return func(name string) (bool, int) {
			n := strings.ToLower(name)
			if n == q {
				return true, 0
			}
			if strings.HasPrefix(n, q) {
				return true, 1
			}
			return false, 0
		}, nil

	case ModeWildcard:
		return func(name string) (bool, int) {
			ok, _ := path.Match(query, name)
			if !ok {
				return false, 0
			}
			if name == query {
				return true, 0
			}
			return true, 2
		}, nil

	case ModeRegex:
		re, err := regexp.Compile(query)
		if err != nil {
			return nil, err
		}
		return func(name string) (bool, int) {
			if !re.MatchString(name) {
				return false, 0
			}
			if name == query {
				return true, 0
			}
			return true, 2
		}, nil

	case ModeFuzzy:
		q := strings.ToLower(query)
		return func(name string) (bool, int) {
			n := strings.ToLower(name)
			if n == q {
				return true, 0
			}
			if !isSubsequence(q, n) {
				return false, 0
			}
			if strings.HasPrefix(n, q) {
				return true, 1
			}
			return true, 2
		}, nil
	}
	return nil, &unknownModeError{mode: mode}
}

// isSubsequence reports whether every rune of q appears in n in order
// (not necessarily contiguous) — the "fuzzy" subsequence mode's
// match test.
func isSubsequence(q, n string) bool {
	if q == "" {
		return true
	}
	qi := 0
	qr := []rune(q)
	for _, r := range n {
		if qr[qi] == r {
			qi++
			if qi == len(qr) {
				return true
			}
		}
	}
	return false
}

type unknownModeError struct{ mode Mode }

func (e *unknownModeError) Error() string { return "symbolsearch: unknown mode " + string(e.mode) }
