package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driving"
	"github.com/custodia-labs/emma/internal/logger"
)

// Ensure ConversationService implements the interface.
var _ driving.ConversationService = (*ConversationService)(nil)

// contextRule maps trigger keywords to a topic and intent.
type contextRule struct {
	triggers []string
	topic    string
	intent   string
}

// contextRules are checked in order; the first rule with a matching
// trigger wins.
var contextRules = []contextRule{
	{triggers: []string{"appointment", "book", "schedule"}, topic: "appointment_booking", intent: "book_appointment"},
	{triggers: []string{"symptom", "pain", "ill"}, topic: "health_inquiry", intent: "health_question"},
	{triggers: []string{"hello", "hi", "help"}, topic: "greeting", intent: "greeting"},
}

var (
	positiveWords = []string{"good", "great", "excellent", "happy", "fine"}
	negativeWords = []string{"bad", "terrible", "awful", "sad", "pain"}
)

// conversationEntry guards one conversation. removed is set under mu when
// the expiry sweep deletes the entry, so holders of a stale pointer see it.
type conversationEntry struct {
	mu      sync.Mutex
	conv    *domain.Conversation
	removed bool
}

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
	removed bool
}

// ConversationConfig configures a ConversationService.
type ConversationConfig struct {
	MaxConversationLength int
	MaxSessionDuration    time.Duration
	OverflowPolicy        domain.OverflowPolicy
}

// ConversationService owns sessions and conversations.
//
// The store lock only guards the id maps. Each entity has its own mutex,
// taken session first, then conversation. The store lock is never held
// while waiting for an entity lock.
type ConversationService struct {
	mu            sync.RWMutex
	conversations map[string]*conversationEntry
	sessions      map[string]*sessionEntry
	lastCleanup   time.Time

	maxLength int
	maxAge    time.Duration
	overflow  domain.OverflowPolicy

	now   func() time.Time
	newID func() string
}

// NewConversationService creates an empty store. Zero config values
// select the defaults.
func NewConversationService(cfg ConversationConfig) *ConversationService {
	if cfg.MaxConversationLength <= 0 {
		cfg.MaxConversationLength = domain.DefaultMaxConversationLength
	}
	if cfg.MaxSessionDuration <= 0 {
		cfg.MaxSessionDuration = domain.DefaultMaxSessionDuration
	}
	if !cfg.OverflowPolicy.IsValid() {
		cfg.OverflowPolicy = domain.OverflowReject
	}
	return &ConversationService{
		conversations: make(map[string]*conversationEntry),
		sessions:      make(map[string]*sessionEntry),
		lastCleanup:   time.Now(),
		maxLength:     cfg.MaxConversationLength,
		maxAge:        cfg.MaxSessionDuration,
		overflow:      cfg.OverflowPolicy,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

func (s *ConversationService) lookupConversation(id string) *conversationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversations[id]
}

func (s *ConversationService) lookupSession(id string) *sessionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *ConversationService) getOrCreateSession(id string, now time.Time) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if se, ok := s.sessions[id]; ok {
		return se
	}
	se := &sessionEntry{session: &domain.Session{
		ID:              id,
		ConversationIDs: []string{},
		CreatedAt:       now,
		LastActivityAt:  now,
	}}
	s.sessions[id] = se
	return se
}

// StartConversation creates a conversation under sessionID, creating the
// session on first use.
func (s *ConversationService) StartConversation(
	sessionID, userID string, metadata map[string]any,
) (*domain.Conversation, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}

	for {
		now := s.now()
		se := s.getOrCreateSession(sessionID, now)

		se.mu.Lock()
		if se.removed {
			// Reaped between lookup and lock; start over with a fresh session.
			se.mu.Unlock()
			continue
		}

		meta := domain.DefaultConversationMetadata()
		for k, v := range metadata {
			meta[k] = v
		}
		conv := &domain.Conversation{
			ID:             s.newID(),
			SessionID:      sessionID,
			UserID:         userID,
			StartedAt:      now,
			LastActivityAt: now,
			Messages:       []domain.Message{},
			Context:        domain.DefaultConversationContext(),
			Status:         domain.StatusActive,
			Metadata:       meta,
		}

		s.mu.Lock()
		s.conversations[conv.ID] = &conversationEntry{conv: conv}
		s.mu.Unlock()

		se.session.ConversationIDs = append(se.session.ConversationIDs, conv.ID)
		se.session.LastActivityAt = now
		snapshot := conv.Clone()
		se.mu.Unlock()

		logger.Info("Created conversation %s for session %s", conv.ID, sessionID)
		return snapshot, nil
	}
}

// GetConversation returns a snapshot of the conversation.
func (s *ConversationService) GetConversation(id string) (*domain.Conversation, error) {
	ce := s.lookupConversation(id)
	if ce == nil {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	ce.mu.Lock()
	defer ce.mu.Unlock()
	if ce.removed {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return ce.conv.Clone(), nil
}

// GetSession returns a snapshot of the session.
func (s *ConversationService) GetSession(sessionID string) (*domain.Session, error) {
	se := s.lookupSession(sessionID)
	if se == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	se.mu.Lock()
	defer se.mu.Unlock()
	if se.removed {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	out := *se.session
	out.ConversationIDs = append([]string{}, se.session.ConversationIDs...)
	return &out, nil
}

// GetConversationBySession returns the most recent conversation of a session.
func (s *ConversationService) GetConversationBySession(sessionID string) (*domain.Conversation, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	current := sess.Current()
	if current == "" {
		return nil, fmt.Errorf("session %s has no conversations: %w", sessionID, domain.ErrNotFound)
	}
	return s.GetConversation(current)
}

// AddMessage appends a message to a conversation and refreshes the
// conversation and session activity timestamps.
func (s *ConversationService) AddMessage(
	conversationID string,
	role domain.Role,
	content string,
	metadata map[string]any,
	safetyScore *float64,
) (*domain.Message, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is empty", domain.ErrInvalidInput)
	}

	ce := s.lookupConversation(conversationID)
	if ce == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	// SessionID never changes after creation, so it is safe to read unlocked.
	se := s.lookupSession(ce.conv.SessionID)
	if se != nil {
		se.mu.Lock()
		defer se.mu.Unlock()
		if se.removed {
			se = nil
		}
	}

	ce.mu.Lock()
	defer ce.mu.Unlock()
	if ce.removed {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	conv := ce.conv
	if len(conv.Messages) >= s.maxLength {
		if s.overflow != domain.OverflowTrim {
			logger.Warn("Conversation %s reached maximum length %d", conversationID, s.maxLength)
			return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrCapacityExceeded)
		}
		keep := s.maxLength / 2
		conv.Messages = append([]domain.Message{}, conv.Messages[len(conv.Messages)-keep:]...)
		logger.Debug("Trimmed conversation %s to %d messages", conversationID, keep)
	}

	now := s.now()
	msg := domain.Message{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
		Metadata:  make(map[string]any, len(metadata)),
	}
	for k, v := range metadata {
		msg.Metadata[k] = v
	}
	if safetyScore != nil {
		score := *safetyScore
		msg.SafetyScore = &score
	}

	conv.Messages = append(conv.Messages, msg)
	conv.LastActivityAt = now
	if se != nil {
		se.session.LastActivityAt = now
	}
	// Ciphertext carries no signal; the orchestrator patches the context
	// from the plaintext instead.
	if role == domain.RoleUser && !msg.IsEncrypted() {
		applyPatch(&conv.Context, InferContext(content))
	}

	out := msg.Clone()
	return &out, nil
}

// HasRoom reports whether n more messages fit without being rejected.
func (s *ConversationService) HasRoom(conversationID string, n int) (bool, error) {
	var ok bool
	err := s.withConversation(conversationID, func(c *domain.Conversation) error {
		ok = s.overflow == domain.OverflowTrim || len(c.Messages)+n <= s.maxLength
		return nil
	})
	return ok, err
}

// InferContext derives topic, intent and sentiment from a user message.
// Fields the message gives no signal for are left nil.
func InferContext(content string) domain.ContextPatch {
	lower := strings.ToLower(content)
	var patch domain.ContextPatch

	for _, rule := range contextRules {
		if containsAny(lower, rule.triggers) {
			topic, intent := rule.topic, rule.intent
			patch.Topic, patch.Intent = &topic, &intent
			break
		}
	}

	var sentiment string
	switch {
	case containsAny(lower, positiveWords):
		sentiment = "positive"
	case containsAny(lower, negativeWords):
		sentiment = "negative"
	}
	if sentiment != "" {
		patch.Sentiment = &sentiment
	}
	return patch
}

func applyPatch(ctx *domain.ConversationContext, patch domain.ContextPatch) {
	if patch.Topic != nil {
		ctx.Topic = *patch.Topic
	}
	if patch.Intent != nil {
		ctx.Intent = *patch.Intent
	}
	if patch.Entities != nil {
		ctx.Entities = append([]string{}, patch.Entities...)
	}
	if patch.Sentiment != nil {
		ctx.Sentiment = *patch.Sentiment
	}
}

// History returns the last limit messages, or all when limit <= 0.
func (s *ConversationService) History(conversationID string, limit int) ([]domain.Message, error) {
	ce := s.lookupConversation(conversationID)
	if ce == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	ce.mu.Lock()
	defer ce.mu.Unlock()
	if ce.removed {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	msgs := ce.conv.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out, nil
}

// withConversation runs fn with the conversation locked.
func (s *ConversationService) withConversation(id string, fn func(*domain.Conversation) error) error {
	ce := s.lookupConversation(id)
	if ce == nil {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	ce.mu.Lock()
	defer ce.mu.Unlock()
	if ce.removed {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return fn(ce.conv)
}

// UpdateContext applies a partial context update.
func (s *ConversationService) UpdateContext(conversationID string, patch domain.ContextPatch) error {
	return s.withConversation(conversationID, func(c *domain.Conversation) error {
		applyPatch(&c.Context, patch)
		c.LastActivityAt = s.now()
		return nil
	})
}

func (s *ConversationService) transition(id string, next domain.ConversationStatus) error {
	return s.withConversation(id, func(c *domain.Conversation) error {
		if !c.Status.CanTransitionTo(next) {
			return fmt.Errorf("conversation %s %s -> %s: %w", id, c.Status, next, domain.ErrInvalidTransition)
		}
		c.Status = next
		c.LastActivityAt = s.now()
		logger.Debug("Conversation %s is now %s", id, next)
		return nil
	})
}

// PauseConversation moves an active conversation to paused.
func (s *ConversationService) PauseConversation(id string) error {
	return s.transition(id, domain.StatusPaused)
}

// ResumeConversation moves a paused conversation back to active.
func (s *ConversationService) ResumeConversation(id string) error {
	return s.transition(id, domain.StatusActive)
}

// EndConversation ends a conversation. Ended is terminal.
func (s *ConversationService) EndConversation(id string) error {
	return s.transition(id, domain.StatusEnded)
}

func (s *ConversationService) snapshotConversations() []*conversationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*conversationEntry, 0, len(s.conversations))
	for _, ce := range s.conversations {
		out = append(out, ce)
	}
	return out
}

func (s *ConversationService) snapshotSessions() []*sessionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*sessionEntry, 0, len(s.sessions))
	for _, se := range s.sessions {
		out = append(out, se)
	}
	return out
}

func summarize(c *domain.Conversation) domain.ConversationSummary {
	ctx := c.Context
	ctx.Entities = append([]string{}, c.Context.Entities...)
	return domain.ConversationSummary{
		ConversationID: c.ID,
		SessionID:      c.SessionID,
		UserID:         c.UserID,
		StartedAt:      c.StartedAt,
		LastActivityAt: c.LastActivityAt,
		Duration:       c.LastActivityAt.Sub(c.StartedAt),
		MessageCount:   len(c.Messages),
		Context:        ctx,
		Status:         c.Status,
	}
}

// ActiveConversations summarises every active conversation, oldest first.
func (s *ConversationService) ActiveConversations() []domain.ConversationSummary {
	var out []domain.ConversationSummary
	for _, ce := range s.snapshotConversations() {
		ce.mu.Lock()
		if !ce.removed && ce.conv.Status == domain.StatusActive {
			out = append(out, summarize(ce.conv))
		}
		ce.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Summary returns a compact overview of one conversation.
func (s *ConversationService) Summary(id string) (*domain.ConversationSummary, error) {
	var sum domain.ConversationSummary
	err := s.withConversation(id, func(c *domain.Conversation) error {
		sum = summarize(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// Statistics aggregates counts across the store.
func (s *ConversationService) Statistics() domain.ConversationStats {
	var stats domain.ConversationStats
	for _, ce := range s.snapshotConversations() {
		ce.mu.Lock()
		if !ce.removed {
			stats.TotalConversations++
			stats.TotalMessages += len(ce.conv.Messages)
			switch ce.conv.Status {
			case domain.StatusActive:
				stats.ActiveConversations++
			case domain.StatusPaused:
				stats.PausedConversations++
			case domain.StatusEnded:
				stats.EndedConversations++
			}
		}
		ce.mu.Unlock()
	}
	if stats.TotalConversations > 0 {
		stats.AverageLength = float64(stats.TotalMessages) / float64(stats.TotalConversations)
	}

	s.mu.RLock()
	stats.TotalSessions = len(s.sessions)
	stats.LastCleanup = s.lastCleanup
	s.mu.RUnlock()
	return stats
}

// CleanupOldConversations removes sessions idle longer than the maximum
// session duration together with all their conversations, then removes
// any remaining conversation idle for the same duration.
//
// Each delete happens under the entity's lock after re-checking its
// timestamp, so a concurrent write that refreshed the entity first wins
// and a write that arrives after the delete sees ErrNotFound.
func (s *ConversationService) CleanupOldConversations() domain.CleanupResult {
	logger.Section("Conversation Cleanup")
	now := s.now()
	var result domain.CleanupResult

	for _, se := range s.snapshotSessions() {
		se.mu.Lock()
		if se.removed || now.Sub(se.session.LastActivityAt) <= s.maxAge {
			se.mu.Unlock()
			continue
		}
		for _, cid := range se.session.ConversationIDs {
			if ce := s.lookupConversation(cid); ce != nil {
				ce.mu.Lock()
				if s.removeConversationLocked(ce) {
					result.ConversationsRemoved++
				}
				ce.mu.Unlock()
			}
		}
		se.removed = true
		s.mu.Lock()
		delete(s.sessions, se.session.ID)
		s.mu.Unlock()
		result.SessionsRemoved++
		logger.Debug("Removed expired session %s", se.session.ID)
		se.mu.Unlock()
	}

	for _, ce := range s.snapshotConversations() {
		ce.mu.Lock()
		if !ce.removed && now.Sub(ce.conv.LastActivityAt) > s.maxAge {
			if s.removeConversationLocked(ce) {
				result.ConversationsRemoved++
			}
		}
		ce.mu.Unlock()
	}

	s.mu.Lock()
	s.lastCleanup = now
	s.mu.Unlock()

	logger.Info("Cleanup removed %d sessions and %d conversations",
		result.SessionsRemoved, result.ConversationsRemoved)
	return result
}

// removeConversationLocked deletes ce from the arena. The caller holds ce.mu.
// It reports false if ce was already removed.
func (s *ConversationService) removeConversationLocked(ce *conversationEntry) bool {
	if ce.removed {
		return false
	}
	ce.removed = true
	s.mu.Lock()
	delete(s.conversations, ce.conv.ID)
	s.mu.Unlock()
	return true
}

// ExportConversation returns a serialisable snapshot with RFC 3339 UTC
// timestamps. It does not modify the conversation.
func (s *ConversationService) ExportConversation(id string) (*domain.ConversationExport, error) {
	var export domain.ConversationExport
	err := s.withConversation(id, func(c *domain.Conversation) error {
		export = buildExport(c, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &export, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func buildExport(c *domain.Conversation, now time.Time) domain.ConversationExport {
	snapshot := c.Clone()
	msgs := make([]domain.ExportedMessage, len(snapshot.Messages))
	for i, m := range snapshot.Messages {
		msgs[i] = domain.ExportedMessage{
			ID:          m.ID,
			Role:        string(m.Role),
			Content:     m.Content,
			Timestamp:   formatTime(m.CreatedAt),
			Metadata:    m.Metadata,
			SafetyScore: m.SafetyScore,
		}
	}
	return domain.ConversationExport{
		ConversationID: snapshot.ID,
		SessionID:      snapshot.SessionID,
		UserID:         snapshot.UserID,
		StartedAt:      formatTime(snapshot.StartedAt),
		LastActivityAt: formatTime(snapshot.LastActivityAt),
		Status:         string(snapshot.Status),
		Context: domain.ExportedContext{
			Topic:     snapshot.Context.Topic,
			Intent:    snapshot.Context.Intent,
			Entities:  snapshot.Context.Entities,
			Sentiment: snapshot.Context.Sentiment,
		},
		Metadata:        snapshot.Metadata,
		Messages:        msgs,
		ExportTimestamp: formatTime(now),
		Version:         domain.ExportVersion,
	}
}
