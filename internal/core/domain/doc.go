// Package domain defines the core business entities for EMMA.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Message: A single utterance in a conversation
//   - Conversation: A bounded exchange with derived context and a status
//   - Session: A caller-supplied id grouping conversations over time
//   - KnowledgeRecord: An FAQ, guideline or document searchable by retrieval
//   - RetrievalResult: One ranked hit from vector or keyword search
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
