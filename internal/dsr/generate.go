package dsr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/giai-dev/giai/internal/chunk"
	"github.com/giai-dev/giai/internal/gitplumbing"
	"github.com/giai-dev/giai/internal/hashid"
)

// Generator builds Records by diffing a commit against its first
// parent using the repository's parser adapter.
type Generator struct {
	repo      *gitplumbing.Repo
	parser    *chunk.Parser
	extractor *chunk.SymbolExtractor
}

// NewGenerator builds a Generator over an already-opened repository.
func NewGenerator(repo *gitplumbing.Repo, parser *chunk.Parser, extractor *chunk.SymbolExtractor) *Generator {
	return &Generator{repo: repo, parser: parser, extractor: extractor}
}

// Generate computes the canonical Record for commit against its first
// parent (or the empty tree, for a root commit).
func (g *Generator) Generate(ctx context.Context, commit string) (*Record, error) {
	parent, subject, err := g.repo.Parent(ctx, commit)
	if err != nil {
		return nil, fmt.Errorf("dsr: resolving parent of %s: %w", commit, err)
	}

	changes, err := g.repo.DiffTreeNameStatus(ctx, commit)
	if err != nil {
		return nil, fmt.Errorf("dsr: diffing %s: %w", commit, err)
	}

	var ops []Operation
	for _, ch := range changes {
		beforePath := ch.Path
		if ch.Status == gitplumbing.StatusRenamed {
			beforePath = ch.OldPath
		}

		var beforeContent, afterContent []byte
		if ch.Status != gitplumbing.StatusAdded {
			beforeContent, err = g.repo.ShowBlob(ctx, parent, beforePath)
			if err != nil {
				return nil, fmt.Errorf("dsr: reading %s at parent %s: %w", beforePath, parent, err)
			}
		}
		if ch.Status != gitplumbing.StatusDeleted {
			afterContent, err = g.repo.ShowBlob(ctx, commit, ch.Path)
			if err != nil {
				return nil, fmt.Errorf("dsr: reading %s at %s: %w", ch.Path, commit, err)
			}
		}

		before, err := g.parseEntries(ctx, beforePath, beforeContent)
		if err != nil {
			return nil, fmt.Errorf("dsr: parsing %s before %s: %w", beforePath, commit, err)
		}
		after, err := g.parseEntries(ctx, ch.Path, afterContent)
		if err != nil {
			return nil, fmt.Errorf("dsr: parsing %s at %s: %w", ch.Path, commit, err)
		}

		ops = append(ops, matchFile(before, after)...)
	}

	rec := &Record{
		CommitHash: commit,
		ParentHash: parent,
		Subject:    subject,
	}
	canonicalize(rec, ops)
	return rec, nil
}

// parseEntries parses content at path into symbolEntry rows, or
// returns nil when content is absent (file added/deleted on this
// side) or the path has no symbol parser (e.g. markdown, yaml).
func (g *Generator) parseEntries(ctx context.Context, path string, content []byte) ([]symbolEntry, error) {
	if content == nil {
		return nil, nil
	}
	lang, ok := chunk.ParserLanguageForPath(path)
	if !ok {
		return nil, nil
	}
	_, symbols, _, err := chunk.ParseSymbolsAndRefs(ctx, g.parser, g.extractor, lang, content)
	if err != nil {
		return nil, err
	}

	entries := make([]symbolEntry, 0, len(symbols))
	for _, s := range symbols {
		container := ""
		if s.Container != nil {
			container = s.Container.Name
		}
		entries = append(entries, symbolEntry{
			File:        path,
			Container:   container,
			Kind:        string(s.Kind),
			Name:        s.Name,
			Signature:   s.Signature,
			StartLine:   s.StartLine,
			EndLine:     s.EndLine,
			ContentHash: hashid.BlobHash(sliceLines(content, s.StartLine, s.EndLine)),
		})
	}
	return entries, nil
}

// sliceLines extracts the inclusive 1-indexed line range
// [start,end] from content, clamped to content's bounds.
func sliceLines(content []byte, start, end int) []byte {
	lines := strings.Split(string(content), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return nil
	}
	return []byte(strings.Join(lines[start-1:end], "\n"))
}

// canonicalize derives semantic_change_type/risk_level, sorts
// ast_operations and affected_symbols on their tuple keys, and fills
// rec in place.
func canonicalize(rec *Record, ops []Operation) {
	sort.Slice(ops, func(i, j int) bool {
		return operationKey(ops[i]) < operationKey(ops[j])
	})
	rec.AstOperations = ops
	rec.AffectedSymbols = affectedSymbols(ops)
	rec.SemanticChangeType = semanticChangeType(ops)
	rec.RiskLevel = riskLevel(ops)
}

func operationKey(op Operation) string {
	return op.Symbol.File + "\x00" + op.Symbol.Container + "\x00" + op.Symbol.Kind + "\x00" + op.Symbol.Name + "\x00" + op.Type
}

func affectedSymbols(ops []Operation) []string {
	seen := map[string]bool{}
	for _, op := range ops {
		seen[op.Symbol.File+":"+op.Symbol.Name] = true
		if op.Previous != nil {
			seen[op.Previous.File+":"+op.Previous.Name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// semanticChangeType classifies the whole commit from the set of
// operation types present.
func semanticChangeType(ops []Operation) string {
	present := map[string]bool{}
	for _, op := range ops {
		present[op.Type] = true
	}
	switch len(present) {
	case 0:
		return "no-op"
	case 1:
		for t := range present {
			switch t {
			case OpAdd:
				return "additive"
			case OpModify:
				return "modification"
			case OpDelete:
				return "deletion"
			case OpRename:
				return "rename"
			}
		}
	}
	return "mixed"
}

// riskLevel: any delete or rename is high risk, any
// modify (with no delete/rename) is medium, anything else (additive
// only, or no-op) is low.
func riskLevel(ops []Operation) string {
	hasModify := false
	for _, op := range ops {
		switch op.Type {
		case OpDelete, OpRename:
			return "high"
		case OpModify:
			hasModify = true
		}
	}
	if hasModify {
		return "medium"
	}
	return "low"
}
