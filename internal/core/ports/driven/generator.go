package driven

import "context"

// ResponseGenerator drafts assistant replies with a language model.
// This is an optional service - when nil, the orchestrator uses
// rule-based replies.
//
// Implementations may include:
//   - OpenAI (gpt-4o-mini)
//   - Anthropic (Claude)
//   - Ollama (local models)
type ResponseGenerator interface {
	// Generate produces a reply to message given the system prompt and
	// recent history (oldest first).
	Generate(ctx context.Context, systemPrompt string, history []ChatMessage, message string) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}
