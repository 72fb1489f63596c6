package model

import "context"

// DefaultDimension matches the all-MiniLM-L6-v2 reference deployment.
// Ingestion and query paths must share one dimension or queries would
// silently match nothing.
const DefaultDimension = 384

// Embedder maps text to a fixed-length dense vector.
// Implementations must be safe for concurrent use and must return an error
// on failure, never an empty or zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
