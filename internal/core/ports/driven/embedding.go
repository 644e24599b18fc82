package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, vector search is skipped.
//
// EmbeddingService generates vectors; VectorIndex stores and searches them.
//
// Implementations may include:
//   - OpenAI (text-embedding-ada-002, text-embedding-3-small)
//   - Google Gemini (text-embedding-004)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 768, 1536).
	// This must match the VectorIndex configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	// Used at startup before committing to a backend.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
