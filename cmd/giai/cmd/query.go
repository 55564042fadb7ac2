package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giai-dev/giai/internal/adaptive"
	"github.com/giai-dev/giai/internal/astgraph"
	"github.com/giai-dev/giai/internal/config"
	"github.com/giai-dev/giai/internal/embed"
	"github.com/giai-dev/giai/internal/index"
	"github.com/giai-dev/giai/internal/output"
	"github.com/giai-dev/giai/internal/store"
	"github.com/giai-dev/giai/internal/symbolsearch"
)

// newQueryCmd exposes the adaptive retrieval pipeline: classify
// the query, expand it, gather candidates from the vector, AST-graph,
// and symbol sources, fuse their scores, and rerank lexically.
func newQueryCmd() *cobra.Command {
	var limit int
	var jsonOutput bool
	var noVector bool

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Adaptive retrieval: classify, expand, fuse vector/graph/symbol sources, rerank",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "), queryOptions{
				limit: limit, json: jsonOutput, noVector: noVector,
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum fused results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&noVector, "no-vector", false, "skip the vector source (faster, no embedder needed)")
	return cmd
}

type queryOptions struct {
	limit    int
	json     bool
	noVector bool
}

type queryResult struct {
	Classification adaptive.Classification     `json:"classification"`
	Expansions     []string                    `json:"expansions"`
	Weights        map[adaptive.Source]float64 `json:"weights"`
	Results        []adaptive.FusedCandidate   `json:"results"`
}

func runQuery(cmd *cobra.Command, query string, opts queryOptions) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	dataDir := filepath.Join(root, ".git-ai")

	meta, err := index.ReadMeta(filepath.Join(dataDir, "meta.json"))
	if err != nil {
		return fmt.Errorf("no index found (%w). Run 'giai index' first", err)
	}

	astPath := filepath.Join(dataDir, "ast-graph.sqlite")
	opened := astgraph.Open(astPath)
	astStore := opened.Store
	defer func() { _ = astStore.Close() }()

	partitions := store.OpenPartitionSet(filepath.Join(dataDir, "lancedb"))
	defer func() { _ = partitions.CloseAll() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	classification := adaptive.Classify(query)
	expansions := adaptive.Expand(query, classification)

	var candidates []adaptive.Candidate
	candidates = append(candidates, symbolCandidates(ctx, astStore, query, classification)...)
	candidates = append(candidates, graphCandidates(ctx, astStore, classification)...)
	if !opts.noVector {
		candidates = append(candidates, vectorCandidates(ctx, root, meta, partitions, query, expansions)...)
	}

	weights := adaptive.Weights(classification.Primary, nil, "")
	fused := adaptive.Fuse(candidates, weights)
	reranked := adaptive.RerankLexical(query, fused)
	reranked = crossEncoderRerank(ctx, root, meta, query, reranked)

	if opts.limit > 0 && len(reranked) > opts.limit {
		reranked = reranked[:opts.limit]
	}

	result := queryResult{
		Classification: classification,
		Expansions:     expansions,
		Weights:        weights,
		Results:        reranked,
	}

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "primary=%s confidence=%.2f expansions=%d", classification.Primary, classification.Confidence, len(expansions))
	for i, r := range reranked {
		out.Statusf("", "%d. [%s] %s (fused %.3f, raw %.3f)", i+1, r.Source, r.ID, r.Fused, r.Score)
		if r.Text != "" {
			out.Status("", "   "+firstLine(r.Text))
		}
	}
	return nil
}

// symbolCandidates runs the symbol-search modes over every
// indexed symbol name, seeded by any symbol/keyword entity the
// classifier extracted (or the raw query when it found none).
func symbolCandidates(ctx context.Context, st astgraph.Store, query string, c adaptive.Classification) []adaptive.Candidate {
	rows, err := st.Find(ctx, "", "", 0)
	if err != nil || len(rows) == 0 {
		return nil
	}
	cands := make([]symbolsearch.Candidate, len(rows))
	for i, r := range rows {
		cands[i] = symbolsearch.Candidate{
			Name: r.Name, Kind: r.Kind, File: r.File,
			StartLine: r.StartLine, EndLine: r.EndLine, Signature: r.Signature,
		}
	}

	terms := entityTerms(c, query)
	var out []adaptive.Candidate
	seen := make(map[string]bool)
	for _, term := range terms {
		results, err := symbolsearch.Search(cands, term, symbolsearch.ModeAuto)
		if err != nil {
			continue
		}
		for i, r := range results {
			if i >= 10 {
				break
			}
			id := fmt.Sprintf("%s:%s:%d", r.Candidate.File, r.Candidate.Name, r.Candidate.StartLine)
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, adaptive.Candidate{
				Source: adaptive.SourceSymbol,
				ID:     id,
				Score:  1.0 / float64(r.Tier+1),
				Text:   r.Candidate.Signature,
			})
		}
	}
	return out
}

// graphCandidates follows callers/callees for every symbol entity the
// classifier extracted, surfacing structurally related symbols as
// the "structural" source.
func graphCandidates(ctx context.Context, st astgraph.Store, c adaptive.Classification) []adaptive.Candidate {
	var out []adaptive.Candidate
	for _, e := range c.Entities {
		if e.Type != adaptive.EntitySymbol {
			continue
		}
		callers, err := st.Callers(ctx, e.Value, "", 10)
		if err == nil {
			for _, r := range callers {
				out = append(out, adaptive.Candidate{
					Source: adaptive.SourceGraph,
					ID:     fmt.Sprintf("%s:%d", r.File, r.Line),
					Score:  0.8,
					Text:   fmt.Sprintf("caller of %s in %s", e.Value, r.File),
				})
			}
		}
		callees, err := st.Callees(ctx, e.Value, "", 10)
		if err == nil {
			for _, r := range callees {
				out = append(out, adaptive.Candidate{
					Source: adaptive.SourceGraph,
					ID:     fmt.Sprintf("%s:%d", r.File, r.Line),
					Score:  0.8,
					Text:   fmt.Sprintf("callee of %s in %s", e.Value, r.File),
				})
			}
		}
	}
	return out
}

// vectorCandidates embeds query (and its expansions) with the hash
// embedder matching the index's dimension and searches every
// language's HNSW layer, mapping hits back to their source text via
// the owning partition.
func vectorCandidates(ctx context.Context, root string, meta *index.Meta, partitions *store.PartitionSet, query string, expansions []string) []adaptive.Candidate {
	embedder := embed.ForDimension(meta.Dim)
	defer func() { _ = embedder.Close() }()
	if embedder.Dimensions() != meta.Dim {
		return nil
	}

	terms := append([]string{query}, expansions...)

	var out []adaptive.Candidate
	seen := make(map[string]bool)
	for _, lang := range meta.Languages {
		vs, ok := index.OpenHNSW(filepath.Join(root, ".git-ai"), lang)
		if !ok {
			continue
		}
		for _, term := range terms {
			vec, err := embedder.Embed(ctx, term)
			if err != nil {
				continue
			}
			results, err := vs.Search(ctx, vec, 10)
			if err != nil {
				continue
			}
			for _, r := range results {
				if seen[r.ID] {
					continue
				}
				seen[r.ID] = true
				chunkRow, _, err := index.ChunkLookup(ctx, partitions, lang, r.ID)
				if err != nil || chunkRow == nil {
					continue
				}
				out = append(out, adaptive.Candidate{
					Source: adaptive.SourceVector,
					ID:     r.ID,
					Score:  float64(r.Score),
					Text:   chunkRow.Text,
				})
			}
		}
		_ = vs.Close()
	}
	return out
}

// crossEncoderRerank applies the optional ONNX cross-encoder when one
// is configured (retrieval.cross_encoder_model). A load failure is not
// an error: scoring degrades to hash-embed similarity, and with
// neither model nor fallback available the lexical ranking stands.
func crossEncoderRerank(ctx context.Context, root string, meta *index.Meta, query string, candidates []adaptive.FusedCandidate) []adaptive.FusedCandidate {
	cfg, err := config.Load(root)
	if err != nil || cfg.Retrieval.CrossEncoderModel == "" {
		return candidates
	}

	var enc adaptive.CrossEncoder
	onnx, err := adaptive.NewONNXCrossEncoder(cfg.Retrieval.CrossEncoderModel, "", 0, "input_ids", "logits", hashPairTokens)
	if err == nil {
		enc = onnx
		defer func() { _ = onnx.Close() }()
	}

	fallback := embed.ForDimension(meta.Dim)
	defer func() { _ = fallback.Close() }()

	return adaptive.CrossEncoderRerank(ctx, enc, fallback, query, candidates)
}

// hashPairTokens is the default pair tokenizer: deterministic FNV
// hashes of whitespace tokens over "query [SEP] text". A model trained
// with a real subword vocabulary needs its own tokenizer; this default
// keeps the wiring self-contained.
func hashPairTokens(query, text string) ([]int64, error) {
	fields := strings.Fields(query + " [SEP] " + text)
	ids := make([]int64, len(fields))
	for i, f := range fields {
		h := fnv.New64a()
		_, _ = h.Write([]byte(f))
		ids[i] = int64(h.Sum64() & 0x7fffffff)
	}
	return ids, nil
}

// entityTerms returns the symbol/keyword entities the classifier
// extracted, or the raw query if it found none.
func entityTerms(c adaptive.Classification, query string) []string {
	var out []string
	for _, e := range c.Entities {
		if e.Type == adaptive.EntitySymbol || e.Type == adaptive.EntityKeyword {
			out = append(out, e.Value)
		}
	}
	if len(out) == 0 {
		out = append(out, query)
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}
