package adaptive

import (
	"context"
	"math"
	"strings"
)

// lexicalBoost and crossSourceBoost are fixed reranker
// constants.
const (
	lexicalBoost     = 0.2
	crossSourceBoost = 0.05
	jaccardThreshold = 0.2
)

// RerankLexical implements the lexical reranker: for each
// candidate, add `0.2 * |Q ∩ tokens(text)| / |Q|` to its fused score,
// then add a one-time `+0.05` cross-source overlap boost to any
// candidate whose text has Jaccard similarity >0.2 with a candidate
// from a *different* source. Returns a new, re-sorted slice; the
// input is left untouched.
func RerankLexical(query string, candidates []FusedCandidate) []FusedCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	q := tokenSet(query)
	out := make([]FusedCandidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		out[i].Fused += lexicalBoost * overlapRatio(q, tokenSet(out[i].Text))
	}

	boosted := make([]bool, len(out))
	for i := range out {
		for j := range out {
			if i == j || boosted[i] || out[i].Source == out[j].Source {
				continue
			}
			if jaccard(tokenSet(out[i].Text), tokenSet(out[j].Text)) > jaccardThreshold {
				out[i].Fused += crossSourceBoost
				boosted[i] = true
				break
			}
		}
	}

	stableSortByFused(out)
	return out
}

// tokenSet lowercases and splits text into a set of whitespace/punct
// delimited tokens.
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_')
	}) {
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}

// overlapRatio returns |Q ∩ tokens| / |Q|, 0 when Q is empty.
func overlapRatio(q, tokens map[string]bool) float64 {
	if len(q) == 0 {
		return 0
	}
	hit := 0
	for t := range q {
		if tokens[t] {
			hit++
		}
	}
	return float64(hit) / float64(len(q))
}

// jaccard returns |A ∩ B| / |A ∪ B|, 0 when both sets are empty.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func stableSortByFused(out []FusedCandidate) {
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Fused > out[j-1].Fused; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
}

// HashEmbedder is the minimal capability the cross-encoder fallback
// needs: a deterministic text-to-vector function, matching the
// hash-embedding fallback (the same role internal/embed.StaticEmbedder
// already plays for the indexer's own embedding path).
type HashEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CrossEncoder jointly scores a (query, text) pair. A real
// implementation loads an ONNX pair-scoring model; see
// NewONNXCrossEncoder.
type CrossEncoder interface {
	Score(ctx context.Context, query, text string) (float64, error)
	Close() error
}

// CrossEncoderRerank reranks candidates with enc, falling back to
// hash-embed similarity for any candidate enc fails to score:
// on any load or inference error the pipeline degrades to hash-embed
// similarity via sigmoid(sum(embed(query ‖ text))).
func CrossEncoderRerank(ctx context.Context, enc CrossEncoder, fallback HashEmbedder, query string, candidates []FusedCandidate) []FusedCandidate {
	out := make([]FusedCandidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		score, err := scoreOne(ctx, enc, fallback, query, out[i].Text)
		if err == nil {
			out[i].Fused = score
		}
		// On error (including a nil enc/fallback), leave the
		// pre-existing fused score untouched rather than propagate.
	}

	stableSortByFused(out)
	return out
}

func scoreOne(ctx context.Context, enc CrossEncoder, fallback HashEmbedder, query, text string) (float64, error) {
	if enc != nil {
		if score, err := enc.Score(ctx, query, text); err == nil {
			return score, nil
		}
	}
	return hashEmbedScore(ctx, fallback, query, text)
}

// hashEmbedScore implements the fallback formula: sigmoid(sum(embed(q
// ‖ t))), where q ‖ t is the query and text concatenated with a
// separator before embedding.
func hashEmbedScore(ctx context.Context, embedder HashEmbedder, query, text string) (float64, error) {
	if embedder == nil {
		return 0, errNoFallbackEmbedder
	}
	vec, err := embedder.Embed(ctx, query+" "+text)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v)
	}
	return sigmoid(sum), nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errNoFallbackEmbedder = sentinelError("adaptive: no fallback embedder configured")
