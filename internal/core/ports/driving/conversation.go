package driving

import "github.com/custodia-labs/emma/internal/core/domain"

// ConversationService owns session and conversation lifecycle.
// Every method is safe for concurrent use. Getters return snapshots.
type ConversationService interface {
	StartConversation(sessionID, userID string, metadata map[string]any) (*domain.Conversation, error)
	GetConversation(id string) (*domain.Conversation, error)
	GetConversationBySession(sessionID string) (*domain.Conversation, error)
	GetSession(sessionID string) (*domain.Session, error)

	// AddMessage appends a message. At capacity it returns
	// domain.ErrCapacityExceeded unless the trim policy is configured.
	AddMessage(conversationID string, role domain.Role, content string,
		metadata map[string]any, safetyScore *float64) (*domain.Message, error)

	// HasRoom reports whether n more messages fit in the conversation
	// without AddMessage rejecting one. It is always true under the trim
	// policy.
	HasRoom(conversationID string, n int) (bool, error)

	// History returns the last limit messages (all when limit <= 0).
	History(conversationID string, limit int) ([]domain.Message, error)
	UpdateContext(conversationID string, patch domain.ContextPatch) error

	PauseConversation(id string) error
	ResumeConversation(id string) error
	EndConversation(id string) error

	ActiveConversations() []domain.ConversationSummary
	Summary(id string) (*domain.ConversationSummary, error)
	Statistics() domain.ConversationStats

	// CleanupOldConversations removes sessions (with their conversations)
	// and conversations idle past the configured duration.
	CleanupOldConversations() domain.CleanupResult

	ExportConversation(id string) (*domain.ConversationExport, error)
}
