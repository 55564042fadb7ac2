package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/giai-dev/giai/internal/quantize"
	"github.com/giai-dev/giai/internal/store"
)

// rebuildHNSW regenerates one language partition's HNSW layer
// from its current chunks and persists it under DataDir/vectors:
// the graph is always rebuilt from current chunks or loaded from its
// binary snapshot. It runs after a partition's chunks/refs have been
// written for this run, so the graph always reflects the partition's
// post-run state rather than an incremental patch.
func (e *Engine) rebuildHNSW(ctx context.Context, lang string) error {
	if e.partitions == nil {
		return nil
	}
	part, err := e.partitions.Partition(lang)
	if err != nil {
		return err
	}
	chunks, err := part.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("hnsw rebuild %s: load chunks: %w", lang, err)
	}

	vs, err := store.NewHNSWStore(store.VectorStoreConfig{
		Dimensions:     e.cfg.Dim,
		Metric:         "cos",
		M:              16,
		EfConstruction: 200,
		EfSearch:       64,
	})
	if err != nil {
		return fmt.Errorf("hnsw rebuild %s: %w", lang, err)
	}
	defer vs.Close()

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ContentHash
		vectors[i] = bytesToFloat32(c.QVecBytes, c.Scale)
	}
	if err := vs.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("hnsw rebuild %s: insert: %w", lang, err)
	}

	dir := filepath.Join(e.cfg.DataDir, "vectors")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return vs.Save(filepath.Join(dir, lang+".hnsw"))
}

// bytesToFloat32 dequantizes a partition's stored SQ8 bytes back into
// a float vector, the inverse of int8ToBytes.
func bytesToFloat32(b []byte, scale float32) []float32 {
	q := make([]int8, len(b))
	for i, v := range b {
		q[i] = int8(v)
	}
	return quantize.Dequantize(quantize.Quantized{Dim: len(q), Scale: scale, Q: q})
}

// OpenHNSW loads a language partition's persisted HNSW graph, or
// reports (nil, false) if it hasn't been built yet.
func OpenHNSW(dataDir, lang string) (*store.HNSWStore, bool) {
	path := filepath.Join(dataDir, "vectors", lang+".hnsw")
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}
	dim, err := store.ReadHNSWStoreDimensions(path)
	if err != nil || dim == 0 {
		return nil, false
	}
	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dim))
	if err != nil {
		return nil, false
	}
	if err := vs.Load(path); err != nil {
		_ = vs.Close()
		return nil, false
	}
	return vs, true
}

// ChunkLookup resolves an HNSW hit's content hash back to its source
// text and ref occurrences for one language partition.
func ChunkLookup(ctx context.Context, ps *store.PartitionSet, lang, contentHash string) (*store.ChunkRow, []store.RefRow, error) {
	part, err := ps.Partition(lang)
	if err != nil {
		return nil, nil, err
	}
	chunkRow, err := part.GetChunk(ctx, contentHash)
	if err != nil {
		return nil, nil, err
	}
	refs, err := part.RefsByContentHash(ctx, contentHash)
	if err != nil {
		return nil, nil, err
	}
	return chunkRow, refs, nil
}
