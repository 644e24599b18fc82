package driven

import "context"

// VectorIndex stores embeddings and answers similarity queries.
// Backed either by a remote vector database or an in-process index.
type VectorIndex interface {
	// Upsert inserts or replaces the vector stored under id.
	Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]string) error

	// Delete removes a vector from the index. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Search returns up to k hits ordered by descending similarity.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Ping validates the index is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ID is the stored vector id.
	ID string

	// Similarity is the cosine similarity score.
	Similarity float64

	// Metadata is whatever was stored alongside the vector.
	Metadata map[string]string
}
