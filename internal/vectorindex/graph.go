// Package vectorindex implements the hierarchical navigable small
// world (HNSW) proximity graph: construction,
// approximate search, and an exact versioned binary persistence
// format. Vectors are stored SQ8-quantized (internal/quantize) and
// compared in dequantized float space.
package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/giai-dev/giai/internal/quantize"
)

// Config holds the HNSW construction parameters.
type Config struct {
	M              int // edges per layer, clamped >= 2
	EfConstruction int // build-time beam width, >= 10
	EfSearch       int // query-time beam width, >= 10
	QBits          int // SQ8 quantization bit width
	Dim            int
	MaxElements    int
}

// normalize clamps the config to usable minimums.
func (c *Config) normalize() {
	if c.M < 2 {
		c.M = 2
	}
	if c.EfConstruction < 10 {
		c.EfConstruction = 10
	}
	if c.EfSearch < 10 {
		c.EfSearch = 10
	}
	if c.QBits == 0 {
		c.QBits = 8
	}
	if c.MaxElements == 0 {
		c.MaxElements = 1
	}
}

type node struct {
	id        string
	level     int
	vec       quantize.Quantized
	neighbors [][]uint64 // neighbors[layer] = keys of connected nodes
}

// Graph is a single HNSW index over quantized vectors, keyed by
// caller-supplied string IDs.
type Graph struct {
	mu sync.RWMutex

	cfg Config
	mlt float64 // level generation multiplier, 1/ln(M)

	nodes      map[uint64]*node
	idToKey    map[string]uint64
	nextKey    uint64
	entryPoint uint64
	entryLevel int
	hasEntry   bool

	rng *rand.Rand
}

// NewGraph builds an empty graph with the given configuration.
func NewGraph(cfg Config) *Graph {
	cfg.normalize()
	return &Graph{
		cfg:     cfg,
		mlt:     1.0 / math.Log(float64(cfg.M)),
		nodes:   make(map[uint64]*node),
		idToKey: make(map[string]uint64),
		rng:     rand.New(rand.NewSource(1)),
	}
}

// Config returns the graph's construction parameters.
func (g *Graph) Config() Config {
	return g.cfg
}

// Len returns the number of live nodes in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// maxLevel caps assigned levels at ceil(log_M(maxElements)).
func (g *Graph) maxLevelCap() int {
	if g.cfg.MaxElements <= 1 || g.cfg.M <= 1 {
		return 0
	}
	cap := int(math.Ceil(math.Log(float64(g.cfg.MaxElements)) / math.Log(float64(g.cfg.M))))
	if cap < 0 {
		cap = 0
	}
	return cap
}

func (g *Graph) randomLevel() int {
	u := g.rng.Float64()
	for u == 0 {
		u = g.rng.Float64()
	}
	level := int(math.Floor(-math.Log(u) * g.mlt))
	if capLevel := g.maxLevelCap(); level > capLevel {
		level = capLevel
	}
	return level
}

// distance returns the cosine distance (1 - similarity) between two
// quantized vectors, in [0, 2].
func (g *Graph) distance(a, b quantize.Quantized) float32 {
	return 1 - quantize.CosineQuantized(a, b)
}

func (g *Graph) quantize(vec []float32) (quantize.Quantized, error) {
	return quantize.Quantize(vec, g.cfg.QBits)
}

type candidate struct {
	key  uint64
	dist float32
}

// minHeap / maxHeap over candidates, used by the search-layer routine.
type candidateHeap struct {
	items []candidate
	max   bool // true = pop largest first
}

func (h *candidateHeap) Len() int { return len(h.items) }
func (h *candidateHeap) Less(i, j int) bool {
	if h.max {
		return h.items[i].dist > h.items[j].dist
	}
	return h.items[i].dist < h.items[j].dist
}
func (h *candidateHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *candidateHeap) Push(x interface{}) {
	h.items = append(h.items, x.(candidate))
}
func (h *candidateHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// searchLayer performs a best-first beam search at one layer starting
// from entryPoints, returning up to ef closest candidates to query.
func (g *Graph) searchLayer(query quantize.Quantized, entryPoints []uint64, ef, layer int) []candidate {
	visited := make(map[uint64]bool, len(entryPoints))
	candidates := &candidateHeap{}
	results := &candidateHeap{max: true}

	for _, ep := range entryPoints {
		n, ok := g.nodes[ep]
		if !ok {
			continue
		}
		d := g.distance(query, n.vec)
		visited[ep] = true
		heap.Push(candidates, candidate{ep, d})
		heap.Push(results, candidate{ep, d})
	}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candidate)
		if results.Len() >= ef {
			worst := results.items[0]
			if c.dist > worst.dist {
				break
			}
		}

		n, ok := g.nodes[c.key]
		if !ok || layer >= len(n.neighbors) {
			continue
		}
		for _, nb := range n.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nbNode, ok := g.nodes[nb]
			if !ok {
				continue
			}
			d := g.distance(query, nbNode.vec)
			if results.Len() < ef {
				heap.Push(candidates, candidate{nb, d})
				heap.Push(results, candidate{nb, d})
			} else if d < results.items[0].dist {
				heap.Push(candidates, candidate{nb, d})
				heap.Push(results, candidate{nb, d})
				heap.Pop(results)
			}
		}
	}

	out := make([]candidate, len(results.items))
	copy(out, results.items)
	sort.Slice(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	return out
}

// selectNeighbors keeps the M closest candidates by similarity, a
// simple top-M heuristic rather than the diversity-aware variant.
func selectNeighbors(candidates []candidate, m int) []uint64 {
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]uint64, len(candidates))
	for i, c := range candidates {
		out[i] = c.key
	}
	return out
}

// Insert adds or replaces the vector for id. Vectors are SQ8-quantized
// before insertion; replacement is implemented as a fresh insert after
// orphaning the prior node (lazy deletion), so the graph never has to
// unlink its sole or entry node in place.
func (g *Graph) Insert(id string, vec []float32) error {
	if len(vec) != g.cfg.Dim {
		return fmt.Errorf("vectorindex: dimension mismatch: expected %d, got %d", g.cfg.Dim, len(vec))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if oldKey, exists := g.idToKey[id]; exists {
		delete(g.nodes, oldKey)
		delete(g.idToKey, id)
		if oldKey == g.entryPoint {
			g.hasEntry = false
			for k, other := range g.nodes {
				if !g.hasEntry || other.level > g.entryLevel {
					g.entryPoint, g.entryLevel, g.hasEntry = k, other.level, true
				}
			}
		}
	}

	q, err := g.quantize(vec)
	if err != nil {
		return err
	}
	key := g.nextKey
	g.nextKey++
	level := g.randomLevel()

	n := &node{id: id, level: level, vec: q, neighbors: make([][]uint64, level+1)}
	for i := range n.neighbors {
		n.neighbors[i] = nil
	}

	if !g.hasEntry {
		g.nodes[key] = n
		g.idToKey[id] = key
		g.entryPoint = key
		g.entryLevel = level
		g.hasEntry = true
		return nil
	}

	ep := []uint64{g.entryPoint}
	for lc := g.entryLevel; lc > level; lc-- {
		found := g.searchLayer(q, ep, 1, lc)
		if len(found) > 0 {
			ep = []uint64{found[0].key}
		}
	}

	g.nodes[key] = n
	g.idToKey[id] = key

	for lc := min(level, g.entryLevel); lc >= 0; lc-- {
		found := g.searchLayer(q, ep, g.cfg.EfConstruction, lc)
		neighbors := selectNeighbors(found, g.cfg.M)
		n.neighbors[lc] = neighbors

		for _, nb := range neighbors {
			nbNode := g.nodes[nb]
			if lc >= len(nbNode.neighbors) {
				continue
			}
			nbNode.neighbors[lc] = append(nbNode.neighbors[lc], key)
			if len(nbNode.neighbors[lc]) > g.cfg.M {
				nbNode.neighbors[lc] = g.pruneNeighbors(nbNode.vec, nbNode.neighbors[lc], g.cfg.M)
			}
		}
		if len(found) > 0 {
			ep = make([]uint64, len(found))
			for i, c := range found {
				ep[i] = c.key
			}
		}
	}

	if level > g.entryLevel {
		g.entryPoint = key
		g.entryLevel = level
	}
	return nil
}

// pruneNeighbors keeps the m closest of a node's neighbors to its own
// vector, applied when a bidirectional insert pushes a neighbor list
// over capacity.
func (g *Graph) pruneNeighbors(self quantize.Quantized, keys []uint64, m int) []uint64 {
	cands := make([]candidate, 0, len(keys))
	for _, k := range keys {
		n, ok := g.nodes[k]
		if !ok {
			continue
		}
		cands = append(cands, candidate{k, g.distance(self, n.vec)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	return selectNeighbors(cands, m)
}

// Result is a single nearest-neighbor search hit.
type Result struct {
	ID       string
	Distance float32 // cosine distance, 0 (identical) .. 2 (opposite)
	Score    float32 // 1 - distance/2, normalized to [0, 1]
}

// Search returns up to k nearest neighbors to query, using a
// single-hop greedy descent through the upper layers followed by a
// beam-width max(k, efSearch) search on layer 0.
func (g *Graph) Search(query []float32, k int) ([]Result, error) {
	if len(query) != g.cfg.Dim {
		return nil, fmt.Errorf("vectorindex: dimension mismatch: expected %d, got %d", g.cfg.Dim, len(query))
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasEntry || len(g.nodes) == 0 {
		return nil, nil
	}

	q, err := g.quantize(query)
	if err != nil {
		return nil, err
	}

	ep := []uint64{g.entryPoint}
	for lc := g.entryLevel; lc > 0; lc-- {
		found := g.searchLayer(q, ep, 1, lc)
		if len(found) > 0 {
			ep = []uint64{found[0].key}
		}
	}

	ef := k
	if g.cfg.EfSearch > ef {
		ef = g.cfg.EfSearch
	}
	found := g.searchLayer(q, ep, ef, 0)
	if len(found) > k {
		found = found[:k]
	}

	out := make([]Result, 0, len(found))
	for _, c := range found {
		n, ok := g.nodes[c.key]
		if !ok {
			continue
		}
		out = append(out, Result{ID: n.id, Distance: c.dist, Score: 1 - c.dist/2})
	}
	return out, nil
}

// Delete removes ids from the graph by dropping their node and ID
// mapping (lazy deletion: neighbor references to the removed node
// are left dangling and skipped on lookup, avoiding an in-place
// unlink pass through every remaining neighbor list).
func (g *Graph) Delete(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		if key, ok := g.idToKey[id]; ok {
			delete(g.nodes, key)
			delete(g.idToKey, id)
		}
	}
}

// Contains reports whether id has a live node.
func (g *Graph) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.idToKey[id]
	return ok
}

// AllIDs returns every live vector ID.
func (g *Graph) AllIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.idToKey))
	for id := range g.idToKey {
		ids = append(ids, id)
	}
	return ids
}
