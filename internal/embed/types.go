package embed

import (
	"context"
	"math"
)

// Embedding dimensions for the two hash embedders. The engine treats
// real embedding models as external collaborators; these deterministic
// token-hash embedders are the built-in fallback.
const (
	// StaticDimensions is the embedding dimension for the static embedder.
	StaticDimensions = 256

	// DefaultDimensions is the dimension the 768-wide variant targets,
	// matching the width common to small sentence-embedding models so
	// an index built against one stays loadable with the fallback.
	DefaultDimensions = 768
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// ForDimension returns the hash embedder matching dim: the 768-wide
// variant when an existing index was built at that width, the static
// 256-wide embedder otherwise.
func ForDimension(dim int) Embedder {
	if dim == DefaultDimensions {
		return NewStaticEmbedder768()
	}
	return NewStaticEmbedder()
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v // Return as-is if zero vector
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
