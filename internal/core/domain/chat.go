package domain

import "time"

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	// SessionID is required; conversations are created on first use.
	SessionID string

	// UserID is optional.
	UserID string

	// Message is the user's text.
	Message string

	// Metadata is attached to the recorded user message.
	Metadata map[string]any
}

// ChatResponse is the outcome of processing one user turn.
type ChatResponse struct {
	Response       string
	ConversationID string
	SafetyScore    float64

	// Blocked is true when the input or the drafted reply fell below the
	// safety threshold and a canned response was substituted.
	Blocked bool

	// Sources are the retrieval results used to draft the reply.
	Sources []RetrievalResult

	Timestamp time.Time
}
