package dsr

import (
	"context"
	"fmt"
	"strings"

	"github.com/giai-dev/giai/internal/gitplumbing"
)

// EvolutionHit is one commit along a symbol's history whose DSR
// recorded an operation touching that symbol.
type EvolutionHit struct {
	CommitHash string
	Subject    string
	Operation  Operation
}

// EvolutionResult is the outcome of a symbol-evolution query. Ok is
// false if any commit in the walked range is missing a DSR; in that
// case MissingDsrs lists the offending commits and Hits is nil;
// missing records are never synthesized.
type EvolutionResult struct {
	Ok          bool
	Hits        []EvolutionHit
	MissingDsrs []string
}

// Evolution walks the commit history from start (topological order,
// optionally the full --all set, optionally capped at limit commits)
// and collects every operation whose symbol name matches name exactly
// or as a substring.
func Evolution(ctx context.Context, repo *gitplumbing.Repo, store *Store, start string, all bool, limit int, name string) (*EvolutionResult, error) {
	commits, err := repo.RevList(ctx, start, all, limit)
	if err != nil {
		return nil, fmt.Errorf("dsr: walking history from %s: %w", start, err)
	}

	var missing []string
	for _, c := range commits {
		if !store.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &EvolutionResult{Ok: false, MissingDsrs: missing}, nil
	}

	var hits []EvolutionHit
	for _, c := range commits {
		rec, err := store.Read(c)
		if err != nil {
			return nil, fmt.Errorf("dsr: reading record for %s: %w", c, err)
		}
		for _, op := range rec.AstOperations {
			if matchesName(op, name) {
				hits = append(hits, EvolutionHit{CommitHash: c, Subject: rec.Subject, Operation: op})
			}
		}
	}
	return &EvolutionResult{Ok: true, Hits: hits}, nil
}

func matchesName(op Operation, name string) bool {
	if strings.Contains(op.Symbol.Name, name) {
		return true
	}
	return op.Previous != nil && strings.Contains(op.Previous.Name, name)
}
