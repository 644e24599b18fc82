// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - KnowledgeRecordStore: Append-only knowledge record persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, vector search is skipped.
//   - VectorIndex: Vector storage/search. Without it, retrieval is keyword-only.
//   - ResponseGenerator: Drafts replies. Without it, rule-based replies are used.
//   - ContentCrypto: Encrypts message content at rest in compliance mode.
//   - SchedulerStore: Persists background task state and history.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
