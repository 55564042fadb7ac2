// Package repomap ranks a repository's symbols by PageRank over the
// containment and call graph, then rolls the result up to a top-file,
// top-symbol summary.
package repomap

import (
	"fmt"
	"sort"

	"github.com/giai-dev/giai/internal/astgraph"
)

// Config bounds the PageRank computation and the output shape.
type Config struct {
	// Iterations is the power-method iteration count, clamped to 1..20.
	Iterations int
	// TopFiles is how many files appear in the result, ranked by
	// aggregate symbol score.
	TopFiles int
	// TopSymbols is how many symbols are kept per file.
	TopSymbols int
	// MaxNodes caps how many symbol nodes participate in the PageRank
	// computation; repositories larger than this are truncated rather
	// than refused.
	MaxNodes int
	// Damping is the PageRank damping factor; 0 selects the
	// conventional default of 0.85.
	Damping float64
	// WikiLinks decorates rendered symbol names as `[[name]]`.
	WikiLinks bool
}

func (c Config) normalized() Config {
	if c.Iterations <= 0 {
		c.Iterations = 10
	}
	if c.Iterations > 20 {
		c.Iterations = 20
	}
	if c.TopFiles <= 0 {
		c.TopFiles = 20
	}
	if c.TopSymbols <= 0 {
		c.TopSymbols = 5
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = 5000
	}
	if c.Damping <= 0 {
		c.Damping = 0.85
	}
	return c
}

// RankedSymbol is one symbol with its computed PageRank score.
type RankedSymbol struct {
	SymbolID string
	Name     string
	Kind     string
	File     string
	Score    float64
}

// RankedFile is one file with its top-ranked symbols and their
// summed score.
type RankedFile struct {
	Path    string
	Score   float64
	Symbols []RankedSymbol
}

// Result is the full repo map: the top files, and whether the
// MaxNodes cap truncated the input graph.
type Result struct {
	Files     []RankedFile
	Truncated bool
	NodeCount int
}

// Build computes the repo map from snap, a read snapshot of the AST
// graph (Export/Snapshot shape).
func Build(snap astgraph.Snapshot, cfg Config) Result {
	cfg = cfg.normalized()

	symbolByID := make(map[string]astgraph.SymbolRow, len(snap.Symbols))
	order := make([]string, 0, len(snap.Symbols))
	for _, s := range snap.Symbols {
		if _, exists := symbolByID[s.SymbolID]; exists {
			continue
		}
		symbolByID[s.SymbolID] = s
		order = append(order, s.SymbolID)
	}

	truncated := false
	if len(order) > cfg.MaxNodes {
		sort.Strings(order)
		order = order[:cfg.MaxNodes]
		truncated = true
		filtered := make(map[string]astgraph.SymbolRow, len(order))
		for _, id := range order {
			filtered[id] = symbolByID[id]
		}
		symbolByID = filtered
	}

	namesByName := make(map[string][]string) // name -> symbol IDs with that name
	for id, s := range symbolByID {
		namesByName[s.Name] = append(namesByName[s.Name], id)
	}

	// out[u] = list of v that u links to (contains child, or call
	// target), restricted to nodes that survived the MaxNodes cap.
	out := make(map[string][]string, len(symbolByID))
	addEdge := func(u, v string) {
		if _, ok := symbolByID[u]; !ok {
			return
		}
		if _, ok := symbolByID[v]; !ok {
			return
		}
		out[u] = append(out[u], v)
	}

	for _, c := range snap.Contains {
		addEdge(c.ParentID, c.ChildID)
	}
	for _, c := range snap.Calls {
		for _, calleeID := range namesByName[c.CalleeName] {
			addEdge(c.FromID, calleeID)
		}
	}

	scores := pageRank(order, out, cfg.Iterations, cfg.Damping)

	byFile := make(map[string][]RankedSymbol)
	for id, s := range symbolByID {
		byFile[s.File] = append(byFile[s.File], RankedSymbol{
			SymbolID: id, Name: s.Name, Kind: s.Kind, File: s.File, Score: scores[id],
		})
	}

	var files []RankedFile
	for path, syms := range byFile {
		sort.Slice(syms, func(i, j int) bool {
			if syms[i].Score != syms[j].Score {
				return syms[i].Score > syms[j].Score
			}
			return syms[i].Name < syms[j].Name
		})
		top := syms
		if len(top) > cfg.TopSymbols {
			top = top[:cfg.TopSymbols]
		}
		var score float64
		for _, s := range top {
			score += s.Score
		}
		files = append(files, RankedFile{Path: path, Score: score, Symbols: top})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Score != files[j].Score {
			return files[i].Score > files[j].Score
		}
		return files[i].Path < files[j].Path
	})
	if len(files) > cfg.TopFiles {
		files = files[:cfg.TopFiles]
	}

	return Result{Files: files, Truncated: truncated, NodeCount: len(order)}
}

// pageRank runs the standard power-method iteration over a directed
// graph given as an adjacency list, with dangling nodes (no outbound
// edges) redistributing their mass uniformly, as is conventional.
func pageRank(nodes []string, out map[string][]string, iterations int, damping float64) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return map[string]float64{}
	}
	scores := make(map[string]float64, n)
	base := 1.0 / float64(n)
	for _, id := range nodes {
		scores[id] = base
	}

	outDegree := make(map[string]int, n)
	for _, id := range nodes {
		outDegree[id] = len(out[id])
	}

	for iter := 0; iter < iterations; iter++ {
		next := make(map[string]float64, n)
		var danglingMass float64
		for _, id := range nodes {
			if outDegree[id] == 0 {
				danglingMass += scores[id]
			}
		}
		evenShare := danglingMass / float64(n)

		for _, id := range nodes {
			next[id] = (1 - damping) / float64(n)
		}
		for _, id := range nodes {
			if outDegree[id] == 0 {
				continue
			}
			share := damping * scores[id] / float64(outDegree[id])
			for _, v := range out[id] {
				next[v] += share
			}
		}
		for _, id := range nodes {
			next[id] += damping * evenShare
		}
		scores = next
	}
	return scores
}

// Render produces a short markdown summary of a Result, decorating
// symbol names as `[[name]]` wiki-links when cfg.WikiLinks is set.
func Render(result Result, cfg Config) string {
	cfg = cfg.normalized()
	out := ""
	for _, f := range result.Files {
		out += fmt.Sprintf("## %s (%.4f)\n", f.Path, f.Score)
		for _, s := range f.Symbols {
			name := s.Name
			if cfg.WikiLinks {
				name = "[[" + name + "]]"
			}
			out += fmt.Sprintf("- %s %s (%.4f)\n", s.Kind, name, s.Score)
		}
	}
	return out
}
