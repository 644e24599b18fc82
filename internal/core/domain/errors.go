package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested conversation, session or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates empty or malformed input such as an empty
	// message, a missing session id or an empty document body.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrCapacityExceeded indicates a conversation is at its maximum length.
	// The write is rejected; the caller decides whether to trim or refuse.
	ErrCapacityExceeded = errors.New("conversation at capacity")

	// ErrInvalidTransition indicates a status change the lifecycle forbids,
	// for example anything leaving the ended state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrGeneratorUnavailable indicates no response generator is configured.
	// The orchestrator falls back to rule-based replies.
	ErrGeneratorUnavailable = errors.New("response generator unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or a call to it failed. Vector search is skipped without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured
	// or a call to it failed. Semantic similarity search is skipped.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrDecryptFailed indicates stored ciphertext could not be decrypted.
	ErrDecryptFailed = errors.New("decryption failed")
)
