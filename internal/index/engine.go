package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/giai-dev/giai/internal/astgraph"
	"github.com/giai-dev/giai/internal/chunk"
	"github.com/giai-dev/giai/internal/embed"
	"github.com/giai-dev/giai/internal/giaierr"
	"github.com/giai-dev/giai/internal/gitplumbing"
	"github.com/giai-dev/giai/internal/hashid"
	"github.com/giai-dev/giai/internal/ignore"
	"github.com/giai-dev/giai/internal/quantize"
	"github.com/giai-dev/giai/internal/store"
)

// EngineConfig configures one Engine instance. Engine is the
// indexer: it owns no storage handles of its own beyond what's passed
// in, so the caller controls their lifecycle; the engine holds them
// only for the duration of one run.
type EngineConfig struct {
	RepoRoot          string // the Git working tree root
	ScanRoot          string // subtree actually scanned, defaults to RepoRoot
	DataDir           string // .git-ai
	Dim               int
	QuantizationBits  int
	PoolSize          int
	ParallelThreshold int

	// ParserFallback is one of "skip", "line_chunk", "text_only".
	ParserFallback string
	LineChunkSize  int

	// OnProgress is called from the goroutine that collects worker
	// results, after every file result.
	OnProgress func(Progress)
}

// Progress is the payload passed to EngineConfig.OnProgress.
type Progress struct {
	TotalFiles     int
	ProcessedFiles int
	CurrentFile    string
}

// Engine runs the full and incremental indexing pipelines
// over injected storage handles.
type Engine struct {
	cfg        EngineConfig
	embedder   embed.Embedder
	astStore   astgraph.Store
	partitions *store.PartitionSet
}

// NewEngine builds an Engine. embedder is the opaque SemanticEmbedder
// collaborator; astStore and partitions are the two persistent
// stores the indexer writes into.
func NewEngine(cfg EngineConfig, embedder embed.Embedder, astStore astgraph.Store, partitions *store.PartitionSet) *Engine {
	if cfg.ScanRoot == "" {
		cfg.ScanRoot = cfg.RepoRoot
	}
	if cfg.QuantizationBits == 0 {
		cfg.QuantizationBits = 8
	}
	if cfg.ParserFallback == "" {
		cfg.ParserFallback = "line_chunk"
	}
	if cfg.LineChunkSize == 0 {
		cfg.LineChunkSize = 40
	}
	return &Engine{cfg: cfg, embedder: embedder, astStore: astStore, partitions: partitions}
}

func (e *Engine) poolSize(fileCount int) int {
	if e.cfg.ParallelThreshold > 0 && fileCount < e.cfg.ParallelThreshold {
		return 1
	}
	if e.cfg.PoolSize > 0 {
		return e.cfg.PoolSize
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

func (e *Engine) report(processed, total int, current string) {
	if e.cfg.OnProgress != nil {
		e.cfg.OnProgress(Progress{TotalFiles: total, ProcessedFiles: processed, CurrentFile: current})
	}
}

// Full runs the full-index pipeline: enumerate -> ignore filter
// -> worker pool -> per-language write + AST-graph write -> meta.json.
func (e *Engine) Full(ctx context.Context) (*Meta, error) {
	paths, err := e.enumerate()
	if err != nil {
		return nil, err
	}
	meta, err := e.runBatch(ctx, paths, nil)
	if err != nil {
		return nil, err
	}
	if err := meta.Write(filepath.Join(e.cfg.DataDir, "meta.json")); err != nil {
		return nil, err
	}
	return meta, nil
}

// ApplyPaths re-processes an explicit set of repo-relative paths and
// deletes, used by the filesystem watcher's debounced event batches
// ("opt-in filesystem watch" supplement) where changes come from
// raw FS events rather than a Git diff. deleted paths are removed from
// both stores first; changed paths are then processed through the
// same worker pool as Full/Incremental.
func (e *Engine) ApplyPaths(ctx context.Context, changed, deleted []string) (*Meta, error) {
	for _, p := range deleted {
		if err := e.deleteFile(ctx, hashid.NormalizePath(p)); err != nil {
			return nil, fmt.Errorf("delete %s: %w", p, err)
		}
	}
	meta, err := e.runBatch(ctx, changed, nil)
	if err != nil {
		return nil, err
	}
	if err := meta.Write(filepath.Join(e.cfg.DataDir, "meta.json")); err != nil {
		return nil, err
	}
	return meta, nil
}

// Incremental runs the two-phase pipeline over a Git-diff-driven
// change set: a serialized deletions phase, then a parallel processing
// phase for the remaining add/modify/rename paths. source selects
// whether file content for processed paths is read from the Git index
// ("staged") or the worktree ("worktree").
func (e *Engine) Incremental(ctx context.Context, repo *gitplumbing.Repo, changes []gitplumbing.Change, source string) (*Meta, error) {
	// Phase 1: deletions, serialized. All deletions for
	// incremental mode complete before any insertion begins.
	for _, c := range changes {
		for _, p := range deletionPaths(c) {
			norm := hashid.NormalizePath(p)
			if err := e.deleteFile(ctx, norm); err != nil {
				return nil, fmt.Errorf("delete %s: %w", norm, err)
			}
		}
	}

	// Phase 2: processing, parallel.
	var paths []string
	for _, c := range changes {
		if c.Status == gitplumbing.StatusDeleted {
			continue
		}
		paths = append(paths, c.Path)
	}

	readContent := func(p string) ([]byte, error) {
		if source == "staged" {
			return repo.ShowStagedBlob(ctx, p)
		}
		return os.ReadFile(filepath.Join(e.cfg.RepoRoot, p))
	}

	meta, err := e.runBatch(ctx, paths, readContent)
	if err != nil {
		return nil, err
	}
	if head, herr := repo.HeadCommit(ctx); herr == nil {
		meta.CommitHash = head
	}
	if err := meta.Write(filepath.Join(e.cfg.DataDir, "meta.json")); err != nil {
		return nil, err
	}
	return meta, nil
}

// deletionPaths returns every path a change removes rows for: the
// path for a pure delete, or both old and new paths for a rename.
func deletionPaths(c gitplumbing.Change) []string {
	switch c.Status {
	case gitplumbing.StatusDeleted:
		return []string{c.Path}
	case gitplumbing.StatusRenamed:
		if c.OldPath != "" {
			return []string{c.OldPath, c.Path}
		}
		return []string{c.Path}
	default:
		return nil
	}
}

// deleteFile removes every row the affected path contributed to both
// stores, ahead of any replacement rows (deletion/rename
// invariant).
func (e *Engine) deleteFile(ctx context.Context, path string) error {
	if e.astStore != nil {
		if err := e.astStore.DeleteFile(ctx, path); err != nil {
			return err
		}
	}
	lang, ok := chunk.SpecLanguageForPath(path)
	if !ok || e.partitions == nil {
		return nil
	}
	part, err := e.partitions.Partition(lang)
	if err != nil {
		return err
	}
	return part.DeleteFileRefs(ctx, path)
}

// runBatch is the shared worker-pool-driven body of both Full and
// Incremental.
// readContent, when nil, reads from disk under RepoRoot; Incremental
// supplies a Git-index reader for the "staged" source.
func (e *Engine) runBatch(ctx context.Context, relPaths []string, readContent func(string) ([]byte, error)) (*Meta, error) {
	meta := NewMeta(e.cfg.Dim, e.cfg.DataDir, e.cfg.ScanRoot)
	if e.astStore == nil {
		enabled := false
		meta.AstGraph = AstGraphMeta{Backend: "cozo", Enabled: &enabled, SkippedReason: "ast graph store not configured"}
	} else {
		meta.AstGraph = AstGraphMeta{Backend: "cozo", Counts: map[string]int{}}
	}

	if readContent == nil {
		readContent = func(p string) ([]byte, error) {
			return os.ReadFile(filepath.Join(e.cfg.RepoRoot, p))
		}
	}

	// existingChunkHashes is seeded per language up front, before the
	// dispatch goroutine starts; workers and the dispatcher only read
	// it afterwards, and dedup state stays on the main thread.
	existing := make(map[string]map[string]bool)
	for _, rel := range relPaths {
		lang, ok := chunk.SpecLanguageForPath(hashid.NormalizePath(rel))
		if !ok || existing[lang] != nil {
			continue
		}
		h := make(map[string]bool)
		if e.partitions != nil {
			if part, err := e.partitions.Partition(lang); err == nil {
				if m, err := part.ExistingChunkHashes(ctx); err == nil {
					h = m
				}
			}
		}
		existing[lang] = h
	}

	size := e.poolSize(len(relPaths))
	pool := NewPool(size, func() ProcessFunc {
		parser := chunk.NewParser()
		extractor := chunk.NewSymbolExtractor()
		return func(task FileTask) (FileResult, error) {
			return e.processFile(ctx, parser, extractor, task)
		}
	})

	total := len(relPaths)
	processed := 0
	langs := make(map[string]bool)

	go func() {
		for _, rel := range relPaths {
			norm := hashid.NormalizePath(rel)
			lang, ok := chunk.SpecLanguageForPath(norm)
			if !ok {
				continue
			}
			content, err := readContent(rel)
			if err != nil {
				pool.Submit(FileTask{FilePath: norm, Content: nil, Dim: e.cfg.Dim, QuantizationBits: e.cfg.QuantizationBits})
				continue
			}
			pool.Submit(FileTask{
				FilePath:            norm,
				Content:             content,
				Dim:                 e.cfg.Dim,
				QuantizationBits:    e.cfg.QuantizationBits,
				ExistingChunkHashes: existing[lang],
			})
		}
	}()

	// dedup across the batch: a content_hash already marked new by an
	// earlier file in this same run is not re-embedded or re-inserted.
	newInThisRun := make(map[string]bool)
	var firstErr error

	submitted := 0
	for _, rel := range relPaths {
		if norm := hashid.NormalizePath(rel); norm != "" {
			if _, ok := chunk.SpecLanguageForPath(norm); ok {
				submitted++
			}
		}
	}

	for i := 0; i < submitted; i++ {
		res := <-pool.Results()
		processed++
		e.report(processed, total, res.FilePath)

		if res.Err != nil {
			slog.Warn("file_skipped", slog.String("path", res.FilePath), slog.String("error", res.Err.Error()))
			continue
		}

		langs[res.Lang] = true

		var fresh []store.ChunkRow
		for _, row := range res.ChunkRows {
			if existing[res.Lang][row.ContentHash] || newInThisRun[row.ContentHash] {
				continue
			}
			fresh = append(fresh, row)
			newInThisRun[row.ContentHash] = true
		}

		if e.partitions != nil {
			part, err := e.partitions.Partition(res.Lang)
			if err != nil {
				firstErr = firstOf(firstErr, err)
				continue
			}
			if err := part.InsertChunks(ctx, fresh); err != nil {
				firstErr = firstOf(firstErr, err)
			}
			if err := part.WriteFileRefs(ctx, res.FilePath, res.RefRows); err != nil {
				firstErr = firstOf(firstErr, err)
			}
		}

		if e.astStore != nil {
			if err := e.astStore.Put(ctx, res.Batch); err != nil {
				firstErr = firstOf(firstErr, err)
			}
		}

		counts := meta.ByLang[res.Lang]
		counts.ChunksAdded += len(fresh)
		counts.RefsAdded += len(res.RefRows)
		meta.ByLang[res.Lang] = counts
	}
	pool.Close()

	for lang := range langs {
		meta.Languages = append(meta.Languages, lang)
	}
	sort.Strings(meta.Languages)

	if firstErr != nil {
		return meta, firstErr
	}

	if e.partitions != nil {
		// Per-language table writes are concurrent across partitions,
		// serial within a partition. Each language's HNSW rebuild only
		// touches its own partition, so they fan out independently; one
		// partition's rebuild failure is logged and skipped, not fatal to
		// the run (HNSW is a derived index, rebuildable on the next run).
		g, gctx := errgroup.WithContext(ctx)
		for lang := range langs {
			lang := lang
			g.Go(func() error {
				if err := e.rebuildHNSW(gctx, lang); err != nil {
					slog.Warn("hnsw_rebuild_failed", slog.String("lang", lang), slog.String("error", err.Error()))
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	return meta, nil
}

func firstOf(existing, candidate error) error {
	if existing != nil {
		return existing
	}
	return candidate
}

// processFile parses one file and turns it into a FileResult: chunk
// rows (content-addressed, to be deduped by the caller), ref rows, and
// the AST-graph batch. It is the body every worker goroutine's
// ProcessFunc runs.
func (e *Engine) processFile(ctx context.Context, parser *chunk.Parser, extractor *chunk.SymbolExtractor, task FileTask) (FileResult, error) {
	if task.Content == nil {
		return FileResult{}, fmt.Errorf("could not read %s", task.FilePath)
	}

	lang, ok := chunk.SpecLanguageForPath(task.FilePath)
	if !ok {
		return FileResult{}, fmt.Errorf("no language mapping for %s", task.FilePath)
	}

	var symbols []*chunk.Symbol
	var refs []*chunk.AstReference

	if parserLang, hasParser := chunk.ParserLanguageForPath(task.FilePath); hasParser {
		_, parsedSymbols, parsedRefs, err := chunk.ParseSymbolsAndRefs(ctx, parser, extractor, parserLang, task.Content)
		if err != nil {
			symbols = chunk.FallbackSymbols(chunk.ParseFallback(e.cfg.ParserFallback), task.FilePath, task.Content, e.cfg.LineChunkSize)
		} else {
			symbols, refs = parsedSymbols, parsedRefs
		}
	} else {
		// markdown/yaml: no symbol parser, one document symbol spanning
		// the whole file.
		symbols = []*chunk.Symbol{chunk.DocumentSymbol(task.FilePath, task.Content)}
	}

	batch := astgraph.BuildBatch(task.FilePath, lang, symbols, refs)

	dim := task.Dim
	if dim == 0 && e.embedder != nil {
		dim = e.embedder.Dimensions()
	}

	var chunkRows []store.ChunkRow
	var refRows []store.RefRow
	seenChunks := make(map[string]bool)

	for _, sym := range symbols {
		text := sym.Signature
		if text == "" {
			text = sym.Name
		}
		contentHash := hashid.ContentHash(task.FilePath, string(sym.Kind), sym.Name, sym.Signature)

		if !seenChunks[contentHash] {
			seenChunks[contentHash] = true
			row, err := e.quantizedChunkRow(ctx, contentHash, text, dim)
			if err == nil {
				chunkRows = append(chunkRows, row)
			}
		}

		refRows = append(refRows, store.RefRow{
			RefID:       hashid.RefID(task.FilePath, sym.Name, string(sym.Kind), sym.StartLine, sym.EndLine, contentHash),
			ContentHash: contentHash,
			File:        task.FilePath,
			Symbol:      sym.Name,
			Kind:        string(sym.Kind),
			Signature:   sym.Signature,
			StartLine:   sym.StartLine,
			EndLine:     sym.EndLine,
		})
	}

	return FileResult{Lang: lang, ChunkRows: chunkRows, RefRows: refRows, Batch: batch}, nil
}

func (e *Engine) quantizedChunkRow(ctx context.Context, contentHash, text string, dim int) (store.ChunkRow, error) {
	var vec []float32
	if e.embedder != nil {
		v, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return store.ChunkRow{}, err
		}
		vec = v
	} else {
		vec = make([]float32, dim)
	}

	q, err := quantize.Quantize(vec, e.cfg.QuantizationBits)
	if err != nil {
		return store.ChunkRow{}, err
	}

	return store.ChunkRow{
		ContentHash: contentHash,
		Text:        text,
		Dim:         q.Dim,
		Scale:       q.Scale,
		QVecBytes:   int8ToBytes(q.Q),
	}, nil
}

func int8ToBytes(q []int8) []byte {
	b := make([]byte, len(q))
	for i, v := range q {
		b[i] = byte(v)
	}
	return b
}

// enumerate walks ScanRoot, applying the ignore precedence rules
// and the extension-derived language map.
func (e *Engine) enumerate() ([]string, error) {
	pipeline, err := ignore.Load(e.cfg.RepoRoot)
	if err != nil {
		return nil, giaierr.Wrap(giaierr.KindValidationError, "loading ignore patterns", err)
	}

	var out []string
	err = filepath.WalkDir(e.cfg.ScanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(e.cfg.RepoRoot, path)
		if rerr != nil {
			return rerr
		}
		rel = hashid.NormalizePath(rel)
		if rel == "" {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == ".git-ai" {
				return filepath.SkipDir
			}
			if pipeline.Excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := chunk.SpecLanguageForPath(rel); !ok {
			return nil
		}
		if pipeline.Excluded(rel, false) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
