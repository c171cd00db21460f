package port

import "context"

// Embedder generates a vector embedding for one text.
type Embedder interface {
	// Embed returns a vector of length Dimension() for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
