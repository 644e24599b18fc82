package domain

import "time"

// Role identifies who authored a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Message is a single utterance within a conversation.
// Messages are immutable once appended; only SafetyScore may be attached
// at creation time by the orchestrator.
type Message struct {
	// ID uniquely identifies the message.
	ID string

	// Role is the author of the message.
	Role Role

	// Content is the message text. It may be ciphertext when compliance
	// mode is on; the conversation store treats it as opaque.
	Content string

	// CreatedAt is when the message was appended.
	CreatedAt time.Time

	// Metadata holds caller-supplied key/value pairs.
	Metadata map[string]any

	// SafetyScore is the risk scorer output for this message, if scored.
	SafetyScore *float64
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	out := m
	if m.Metadata != nil {
		out.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	if m.SafetyScore != nil {
		s := *m.SafetyScore
		out.SafetyScore = &s
	}
	return out
}

// Message metadata keys set by the orchestrator.
const (
	// MetadataEncrypted marks Content as ciphertext.
	MetadataEncrypted = "encrypted"

	// MetadataBlocked marks a canned safety reply.
	MetadataBlocked = "blocked"
)

// IsEncrypted reports whether the message content is ciphertext.
func (m Message) IsEncrypted() bool {
	v, ok := m.Metadata[MetadataEncrypted].(bool)
	return ok && v
}
