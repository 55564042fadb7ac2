package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFallback(t *testing.T) {
	assert.Equal(t, FallbackSkip, ParseFallback("skip"))
	assert.Equal(t, FallbackTextOnly, ParseFallback("text-only"))
	assert.Equal(t, FallbackTextOnly, ParseFallback("text_only"))
	assert.Equal(t, FallbackLineChunk, ParseFallback("line_chunk"))
	assert.Equal(t, FallbackLineChunk, ParseFallback(""))
	assert.Equal(t, FallbackLineChunk, ParseFallback("nonsense"))
}

func TestFallbackSymbols_Skip(t *testing.T) {
	assert.Nil(t, FallbackSymbols(FallbackSkip, "a.xyz", []byte("anything"), 10))
}

func TestFallbackSymbols_TextOnly(t *testing.T) {
	content := []byte("line one\nline two\nline three")
	syms := FallbackSymbols(FallbackTextOnly, "dir/a.xyz", content, 10)

	require.Len(t, syms, 1)
	assert.Equal(t, SymbolTypeDocument, syms[0].Kind)
	assert.Equal(t, "a.xyz", syms[0].Name)
	assert.Equal(t, 1, syms[0].StartLine)
	assert.Equal(t, 3, syms[0].EndLine)
}

func TestFallbackSymbols_LineChunk(t *testing.T) {
	// 5 lines chunked in twos: [1-2], [3-4], [5-5]
	content := []byte("a\nb\nc\nd\ne")
	syms := FallbackSymbols(FallbackLineChunk, "a.xyz", content, 2)

	require.Len(t, syms, 3)
	for _, s := range syms {
		assert.Equal(t, SymbolTypeDocument, s.Kind)
	}
	assert.Equal(t, 1, syms[0].StartLine)
	assert.Equal(t, 2, syms[0].EndLine)
	assert.Equal(t, 5, syms[2].StartLine)
	assert.Equal(t, 5, syms[2].EndLine)
}

func TestDocumentSymbol(t *testing.T) {
	sym := DocumentSymbol("docs/readme.md", []byte("# Title\n\nBody\n"))
	assert.Equal(t, "readme.md", sym.Name)
	assert.Equal(t, SymbolTypeDocument, sym.Kind)
	assert.Equal(t, 1, sym.StartLine)
	assert.Equal(t, 4, sym.EndLine)
}
