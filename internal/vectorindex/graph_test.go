package vectorindex

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(dim int) Config {
	return Config{M: 8, EfConstruction: 32, EfSearch: 16, QBits: 8, Dim: dim, MaxElements: 10000}
}

func TestGraph_InsertAndSearch_ExactMatch(t *testing.T) {
	// Given: a graph with a handful of orthogonal-ish vectors
	g := NewGraph(testConfig(4))
	require.NoError(t, g.Insert("a", []float32{1, 0, 0, 0}))
	require.NoError(t, g.Insert("b", []float32{0, 1, 0, 0}))
	require.NoError(t, g.Insert("c", []float32{0.9, 0.1, 0, 0}))

	// When: searching for the exact vector "a"
	results, err := g.Search([]float32{1, 0, 0, 0}, 2)

	// Then: "a" is the closest match, followed by "c"
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.Greater(t, results[0].Score, float32(0.99))
}

func TestGraph_DimensionMismatch(t *testing.T) {
	g := NewGraph(testConfig(4))
	err := g.Insert("a", []float32{1, 2, 3})
	assert.Error(t, err)

	require.NoError(t, g.Insert("b", []float32{1, 0, 0, 0}))
	_, err = g.Search([]float32{1, 2, 3}, 1)
	assert.Error(t, err)
}

func TestGraph_Delete(t *testing.T) {
	g := NewGraph(testConfig(4))
	require.NoError(t, g.Insert("a", []float32{1, 0, 0, 0}))
	require.NoError(t, g.Insert("b", []float32{0, 1, 0, 0}))

	g.Delete([]string{"a"})

	assert.False(t, g.Contains("a"))
	assert.True(t, g.Contains("b"))
	assert.Equal(t, 1, g.Len())
}

// TestGraph_RecallR8 inserts 200 deterministic
// vectors in R^8 generated by v_i = sin(31*seed + 17*i) + cos(11*seed + 13*i),
// then searching for v_120 at k=5 must surface "v120".
func TestGraph_RecallR8(t *testing.T) {
	const dim = 8
	const n = 200
	seed := 7.0

	g := NewGraph(Config{M: 16, EfConstruction: 64, EfSearch: 32, QBits: 8, Dim: dim, MaxElements: n})

	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for d := 0; d < dim; d++ {
			phase := float64(d)
			v[d] = float32(math.Sin(31*seed+17*float64(i)+phase) + math.Cos(11*seed+13*float64(i)+phase))
		}
		vectors[i] = v
		require.NoError(t, g.Insert(fmt.Sprintf("v%d", i), v))
	}

	results, err := g.Search(vectors[120], 5)
	require.NoError(t, err)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	assert.Contains(t, ids, "v120")
}

func TestGraph_RoundTrip(t *testing.T) {
	// Given: a populated graph
	g := NewGraph(testConfig(4))
	ids := []string{"a", "b", "c", "d"}
	vecs := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0.5, 0.5, 0, 0},
	}
	for i, id := range ids {
		require.NoError(t, g.Insert(id, vecs[i]))
	}

	query := []float32{0.9, 0.1, 0, 0}
	want, err := g.Search(query, 3)
	require.NoError(t, err)

	// When: saving and reloading the graph
	var buf bytes.Buffer
	require.NoError(t, g.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	// Then: the reloaded graph returns the same ordered results
	got, err := loaded.Search(query, 3)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
	}
}

func TestLoad_RejectsBadMagic(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not-an-hnsw-file-at-all")))
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownVersion(t *testing.T) {
	g := NewGraph(testConfig(4))
	require.NoError(t, g.Insert("a", []float32{1, 0, 0, 0}))

	var buf bytes.Buffer
	require.NoError(t, g.Save(&buf))

	raw := buf.Bytes()
	// Version is the 4 bytes immediately after the magic.
	raw[4] = 0xFF
	raw[5] = 0xFF

	_, err := Load(bytes.NewReader(raw))
	assert.Error(t, err)
}
