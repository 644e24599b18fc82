package domain

import "time"

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

// Conversation statuses. Ended is terminal.
const (
	StatusActive ConversationStatus = "active"
	StatusPaused ConversationStatus = "paused"
	StatusEnded  ConversationStatus = "ended"
)

// IsValid returns true if the status is recognised.
func (s ConversationStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusEnded:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
//
//	active -> paused, ended
//	paused -> active, ended
//	ended  -> (none)
func (s ConversationStatus) CanTransitionTo(next ConversationStatus) bool {
	switch s {
	case StatusActive:
		return next == StatusPaused || next == StatusEnded
	case StatusPaused:
		return next == StatusActive || next == StatusEnded
	default:
		return false
	}
}

// String returns the string representation.
func (s ConversationStatus) String() string {
	return string(s)
}

// Context defaults for a new conversation.
const (
	DefaultTopic     = "general"
	DefaultIntent    = "greeting"
	DefaultSentiment = "neutral"
)

// ConversationContext is heuristic state derived from user messages.
type ConversationContext struct {
	Topic     string
	Intent    string
	Entities  []string
	Sentiment string
}

// DefaultConversationContext returns the context a new conversation starts with.
func DefaultConversationContext() ConversationContext {
	return ConversationContext{
		Topic:     DefaultTopic,
		Intent:    DefaultIntent,
		Entities:  []string{},
		Sentiment: DefaultSentiment,
	}
}

// ContextPatch carries optional overrides for a conversation's context.
// Nil fields are left unchanged.
type ContextPatch struct {
	Topic     *string
	Intent    *string
	Entities  []string
	Sentiment *string
}

// Conversation is one bounded exchange of messages owned by a session.
type Conversation struct {
	ID             string
	SessionID      string
	UserID         string
	StartedAt      time.Time
	LastActivityAt time.Time

	// Messages are kept in insertion order.
	Messages []Message

	Context  ConversationContext
	Status   ConversationStatus
	Metadata map[string]any
}

// DefaultConversationMetadata returns the metadata a new conversation starts with.
func DefaultConversationMetadata() map[string]any {
	return map[string]any{
		"platform": "web",
		"language": "en",
		"timezone": "UTC",
	}
}

// Clone returns a deep copy so snapshots can leave the owning store.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Clone()
	}
	out.Context.Entities = append([]string{}, c.Context.Entities...)
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Session groups conversations under a caller-supplied id.
type Session struct {
	ID string

	// ConversationIDs is append-only and never holds duplicates.
	ConversationIDs []string

	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Current returns the most recent conversation id, or "" if there is none.
func (s *Session) Current() string {
	if len(s.ConversationIDs) == 0 {
		return ""
	}
	return s.ConversationIDs[len(s.ConversationIDs)-1]
}

// ConversationSummary is a compact overview of a conversation.
type ConversationSummary struct {
	ConversationID string
	SessionID      string
	UserID         string
	StartedAt      time.Time
	LastActivityAt time.Time
	Duration       time.Duration
	MessageCount   int
	Context        ConversationContext
	Status         ConversationStatus
}

// ConversationStats aggregates counts across the store.
type ConversationStats struct {
	TotalConversations  int
	ActiveConversations int
	PausedConversations int
	EndedConversations  int
	TotalSessions       int
	TotalMessages       int

	// AverageLength is TotalMessages / TotalConversations, or 0.
	AverageLength float64

	// LastCleanup is when the expiry sweep last ran.
	LastCleanup time.Time
}

// CleanupResult reports what an expiry sweep removed.
type CleanupResult struct {
	SessionsRemoved      int
	ConversationsRemoved int
}

// ExportVersion is the format version stamped on conversation exports.
const ExportVersion = "1.0"

// ConversationExport is a serialisable audit snapshot of a conversation.
// All timestamps are RFC 3339 strings in UTC.
type ConversationExport struct {
	ConversationID  string            `json:"conversation_id"`
	SessionID       string            `json:"session_id"`
	UserID          string            `json:"user_id,omitempty"`
	StartedAt       string            `json:"started_at"`
	LastActivityAt  string            `json:"last_activity_at"`
	Status          string            `json:"status"`
	Context         ExportedContext   `json:"context"`
	Metadata        map[string]any    `json:"metadata"`
	Messages        []ExportedMessage `json:"messages"`
	ExportTimestamp string            `json:"export_timestamp"`
	Version         string            `json:"version"`
}

// ExportedContext is the serialised form of ConversationContext.
type ExportedContext struct {
	Topic     string   `json:"topic"`
	Intent    string   `json:"intent"`
	Entities  []string `json:"entities"`
	Sentiment string   `json:"sentiment"`
}

// ExportedMessage is the serialised form of Message.
type ExportedMessage struct {
	ID          string         `json:"id"`
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	Timestamp   string         `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	SafetyScore *float64       `json:"safety_score,omitempty"`
}
