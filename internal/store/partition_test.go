package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPartition(t *testing.T) *Partition {
	t.Helper()
	p, err := OpenPartition(t.TempDir(), "ts")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func chunkFixture(hash, text string) ChunkRow {
	return ChunkRow{ContentHash: hash, Text: text, Dim: 4, Scale: 0.5, QVecBytes: []byte{1, 2, 3, 4}}
}

func TestPartition_ChunkInsertIsIdempotent(t *testing.T) {
	p := newTestPartition(t)
	ctx := context.Background()

	require.NoError(t, p.InsertChunks(ctx, []ChunkRow{chunkFixture("h1", "first")}))
	// Re-inserting the same content hash, even with different text, is
	// a no-op: content-addressed rows never change under their key.
	require.NoError(t, p.InsertChunks(ctx, []ChunkRow{chunkFixture("h1", "rewritten")}))

	got, err := p.GetChunk(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Text)

	hashes, err := p.ExistingChunkHashes(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
}

func TestPartition_WriteFileRefsReplacesPerFile(t *testing.T) {
	p := newTestPartition(t)
	ctx := context.Background()

	// Given: one ref for src/new.ts from a first indexing pass
	require.NoError(t, p.WriteFileRefs(ctx, "src/new.ts", []RefRow{
		{RefID: "r1", ContentHash: "h1", File: "src/new.ts", Symbol: "greet", Kind: "function", StartLine: 1, EndLine: 3},
	}))
	// And: a ref for an unrelated file that must survive
	require.NoError(t, p.WriteFileRefs(ctx, "src/other.ts", []RefRow{
		{RefID: "r9", ContentHash: "h9", File: "src/other.ts", Symbol: "other", Kind: "function", StartLine: 1, EndLine: 1},
	}))

	// When: a second pass over src/new.ts carries two refs with fresh IDs
	require.NoError(t, p.WriteFileRefs(ctx, "src/new.ts", []RefRow{
		{RefID: "r2", ContentHash: "h1", File: "src/new.ts", Symbol: "greet", Kind: "function", StartLine: 1, EndLine: 3},
		{RefID: "r3", ContentHash: "h2", File: "src/new.ts", Symbol: "farewell", Kind: "function", StartLine: 5, EndLine: 7},
	}))

	// Then: exactly the two new rows remain for the file, no residue
	refs, err := p.RefsByFile(ctx, "src/new.ts")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	for _, r := range refs {
		assert.NotEqual(t, "r1", r.RefID)
	}

	other, err := p.RefsByFile(ctx, "src/other.ts")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestPartition_DeleteFileRefs(t *testing.T) {
	p := newTestPartition(t)
	ctx := context.Background()

	require.NoError(t, p.WriteFileRefs(ctx, "a.ts", []RefRow{
		{RefID: "r1", ContentHash: "h1", File: "a.ts", Symbol: "f", Kind: "function", StartLine: 1, EndLine: 1},
	}))
	require.NoError(t, p.DeleteFileRefs(ctx, "a.ts"))

	refs, err := p.RefsByFile(ctx, "a.ts")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestPartition_RefsByContentHash(t *testing.T) {
	p := newTestPartition(t)
	ctx := context.Background()

	require.NoError(t, p.InsertChunks(ctx, []ChunkRow{chunkFixture("shared", "func f()")}))
	require.NoError(t, p.WriteFileRefs(ctx, "a.ts", []RefRow{
		{RefID: "r1", ContentHash: "shared", File: "a.ts", Symbol: "f", Kind: "function", StartLine: 1, EndLine: 1},
	}))
	require.NoError(t, p.WriteFileRefs(ctx, "b.ts", []RefRow{
		{RefID: "r2", ContentHash: "shared", File: "b.ts", Symbol: "f", Kind: "function", StartLine: 4, EndLine: 4},
	}))

	refs, err := p.RefsByContentHash(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestPartitionSet_LazyOpenAndClose(t *testing.T) {
	dir := t.TempDir()
	set := OpenPartitionSet(dir)

	a, err := set.Partition("go")
	require.NoError(t, err)
	b, err := set.Partition("go")
	require.NoError(t, err)
	assert.Same(t, a, b)

	require.NoError(t, set.CloseAll())
}
