package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/giai-dev/giai/internal/vectorindex"
)

// HNSWStore implements VectorStore over internal/vectorindex's HNSW
// graph: the exact construction algorithm and binary
// persistence format, wrapped in the same lazy-deletion/atomic-save
// posture this store originally built around coder/hnsw.
type HNSWStore struct {
	mu      sync.RWMutex
	graph   *vectorindex.Graph
	config  VectorStoreConfig
	orphans int // nodes superseded by update or delete since the last load
	closed  bool
}

// NewHNSWStore creates a new vectorindex-backed vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction == 0 {
		cfg.EfConstruction = 100
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := vectorindex.NewGraph(vectorindex.Config{
		M:              cfg.M,
		EfConstruction: cfg.EfConstruction,
		EfSearch:       cfg.EfSearch,
		QBits:          8,
		Dim:            cfg.Dimensions,
		MaxElements:    1 << 20,
	})

	return &HNSWStore{graph: graph, config: cfg}, nil
}

// Add inserts vectors with their IDs. If an ID already exists it is
// replaced (lazy deletion handles the old node).
func (s *HNSWStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if s.graph.Contains(id) {
			s.orphans++
		}
		if err := s.graph.Insert(id, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

// Search finds k nearest neighbors to query vector.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}

	results, err := s.graph.Search(query, k)
	if err != nil {
		return nil, err
	}

	out := make([]*VectorResult, 0, len(results))
	for _, r := range results {
		out = append(out, &VectorResult{ID: r.ID, Distance: r.Distance, Score: r.Score})
	}
	return out, nil
}

// Delete removes vectors by ID (lazy deletion).
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	for _, id := range ids {
		if s.graph.Contains(id) {
			s.orphans++
		}
	}
	s.graph.Delete(ids)
	return nil
}

// AllIDs returns all vector IDs in the store.
func (s *HNSWStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	return s.graph.AllIDs()
}

// Contains checks if ID exists.
func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	return s.graph.Contains(id)
}

// Count returns number of vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return s.graph.Len()
}

// HNSWStats contains HNSW store statistics.
type HNSWStats struct {
	ValidIDs   int
	GraphNodes int
	Orphans    int
}

// Stats returns HNSW store statistics for compaction decisions.
func (s *HNSWStore) Stats() HNSWStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return HNSWStats{}
	}
	n := s.graph.Len()
	return HNSWStats{ValidIDs: n, GraphNodes: n + s.orphans, Orphans: s.orphans}
}

// Save persists the index to disk using binary format, atomically
// (temp file + rename).
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return s.graph.SaveFile(path)
}

// Load loads the index from disk.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	g, err := vectorindex.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	s.graph = g
	s.orphans = 0
	s.config.Dimensions = g.Config().Dim
	s.config.M = g.Config().M
	s.config.EfConstruction = g.Config().EfConstruction
	s.config.EfSearch = g.Config().EfSearch
	return nil
}

// Close releases resources.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// ReadHNSWStoreDimensions loads an existing HNSW index file and returns
// the dimension recorded in its header. Returns 0 if the file doesn't
// exist (fresh start).
func ReadHNSWStoreDimensions(vectorPath string) (int, error) {
	if _, err := os.Stat(vectorPath); os.IsNotExist(err) {
		return 0, nil
	}
	g, err := vectorindex.LoadFile(vectorPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read hnsw header: %w", err)
	}
	return g.Config().Dim, nil
}

// Verify interface implementation
var _ VectorStore = (*HNSWStore)(nil)
