package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
	"github.com/custodia-labs/emma/internal/core/ports/driving"
	"github.com/custodia-labs/emma/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// Canned replies.
const (
	SafetyResponse = "I apologize, but I cannot provide that information. " +
		"For medical concerns, please consult with a healthcare professional. " +
		"I'm here to help with administrative tasks like appointment booking."

	ErrorResponse = "I'm experiencing technical difficulties. " +
		"Please try again or contact our support team for assistance."

	CapacityResponse = "This conversation is too long for me to continue. " +
		"Please start a new session and I'll be happy to help."
)

// turnMessages is the number of messages one turn records.
const turnMessages = 2

// SystemPrompt frames every generated reply.
const SystemPrompt = `You are EMMA (Electronic Medical Management Assistant), a healthcare assistant designed to help patients with general inquiries, appointment booking, and basic health information.

IMPORTANT SAFETY GUIDELINES:
1. NEVER provide medical diagnosis or treatment advice
2. NEVER prescribe medications
3. ALWAYS recommend consulting healthcare professionals for medical concerns
4. Focus on administrative tasks, general information, and appointment management
5. Be empathetic, professional, and compliant with NHS guidelines
6. If asked about symptoms, always recommend seeing a doctor
7. For emergencies, direct to emergency services (999)

Your capabilities include:
- Answering general health questions using NHS guidelines
- Helping with appointment booking and scheduling
- Providing information about services and facilities
- Answering administrative questions
- Directing to appropriate healthcare resources

Always respond in a helpful, professional manner while maintaining safety compliance.`

type fallbackReply struct {
	triggers []string
	reply    string
}

var fallbackReplies = []fallbackReply{
	{
		triggers: []string{"appointment", "book", "schedule"},
		reply: "I can help you with appointment booking. Please provide your preferred date and time, " +
			"and I'll check availability. For medical concerns, please consult with your healthcare provider.",
	},
	{
		triggers: []string{"symptom", "pain", "ill", "sick"},
		reply: "I understand you're experiencing health concerns. For medical symptoms and diagnosis, " +
			"please consult with a healthcare professional. I can help with administrative tasks like appointment booking.",
	},
	{
		triggers: []string{"hello", "hi", "help"},
		reply: "Hello! I'm EMMA, your healthcare assistant. I can help with appointment booking, " +
			"general health information, and administrative questions. How can I assist you today?",
	},
}

const defaultFallbackReply = "Thank you for your message. I'm here to help with healthcare administrative tasks. " +
	"For medical concerns, please consult with a healthcare professional. How can I assist you?"

// FallbackReply returns the rule-based reply used when no generator is
// available or the generator fails.
func FallbackReply(message string) string {
	lower := strings.ToLower(message)
	for _, f := range fallbackReplies {
		if containsAny(lower, f.triggers) {
			return f.reply
		}
	}
	return defaultFallbackReply
}

// ChatConfig configures a ChatService.
type ChatConfig struct {
	// TopK is the number of knowledge results passed to the generator.
	TopK int

	// ContextWindow is the number of prior messages sent as history.
	ContextWindow int

	// SystemPrompt replaces the built-in SystemPrompt when set.
	SystemPrompt string
}

// ChatService runs one user turn through the safety gate, retrieval and
// generation, recording both sides in the conversation store.
type ChatService struct {
	conversations driving.ConversationService
	retrieval     driving.RetrievalService
	scorer        driving.RiskScorer
	generator     driven.ResponseGenerator
	crypto        driven.ContentCrypto

	topK          int
	contextWindow int
	systemPrompt  string
	now           func() time.Time
}

// NewChatService creates a chat orchestrator.
// generator and crypto may be nil: replies then come from FallbackReply and
// content is stored in plaintext.
func NewChatService(
	conversations driving.ConversationService,
	retrieval driving.RetrievalService,
	scorer driving.RiskScorer,
	generator driven.ResponseGenerator,
	crypto driven.ContentCrypto,
	cfg ChatConfig,
) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = domain.DefaultContextWindow
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	return &ChatService{
		conversations: conversations,
		retrieval:     retrieval,
		scorer:        scorer,
		generator:     generator,
		crypto:        crypto,
		topK:          cfg.TopK,
		contextWindow: cfg.ContextWindow,
		systemPrompt:  cfg.SystemPrompt,
		now:           time.Now,
	}
}

// ProcessMessage handles one user turn. Validation failures are returned
// as errors; every other fault produces ErrorResponse.
func (s *ChatService) ProcessMessage(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}

	logger.Debug("Processing message for session %s: %s", req.SessionID, truncate(req.Message, 100))

	resp, err := s.process(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		logger.Error("Error processing message for session %s: %v", req.SessionID, err)
		return &domain.ChatResponse{
			Response:  ErrorResponse,
			Timestamp: s.now(),
		}, nil
	}
	return resp, nil
}

func (s *ChatService) process(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	conv, err := s.currentConversation(req)
	if err != nil {
		return nil, err
	}
	conv, fits, err := s.makeRoom(req, conv)
	if err != nil {
		return nil, err
	}

	inputScore := s.scorer.Score(req.Message)
	if !fits {
		logger.Warn("Conversation %s cannot hold another turn", conv.ID)
		return &domain.ChatResponse{
			Response:       CapacityResponse,
			ConversationID: conv.ID,
			SafetyScore:    inputScore,
			Timestamp:      s.now(),
		}, nil
	}
	if err := s.record(conv.ID, domain.RoleUser, req.Message, req.Metadata, inputScore); err != nil {
		return nil, err
	}

	resp := &domain.ChatResponse{
		ConversationID: conv.ID,
		SafetyScore:    inputScore,
	}

	var reply string
	var replyScore float64
	if !s.scorer.IsSafe(req.Message) {
		logger.Warn("Message flagged for safety concerns. Score: %.2f", inputScore)
		reply = SafetyResponse
		replyScore = s.scorer.Score(reply)
		resp.Blocked = true
	} else {
		resp.Sources = s.sources(ctx, req.Message)
		reply = s.draft(ctx, conv.ID, req.Message, resp.Sources)

		replyScore = s.scorer.Score(reply)
		if !s.scorer.IsSafe(reply) {
			logger.Warn("Response flagged for safety concerns. Score: %.2f", replyScore)
			reply = SafetyResponse
			replyScore = s.scorer.Score(reply)
			resp.Blocked = true
		}
	}

	var meta map[string]any
	if resp.Blocked {
		meta = map[string]any{domain.MetadataBlocked: true}
	}
	if err := s.record(conv.ID, domain.RoleAssistant, reply, meta, replyScore); err != nil {
		return nil, err
	}

	resp.Response = reply
	resp.Timestamp = s.now()
	logger.Debug("Generated response for session %s: %s", req.SessionID, truncate(reply, 100))
	return resp, nil
}

// currentConversation returns the session's latest conversation, starting
// a new one when there is none or the latest has ended.
func (s *ChatService) currentConversation(req domain.ChatRequest) (*domain.Conversation, error) {
	conv, err := s.conversations.GetConversationBySession(req.SessionID)
	switch {
	case err == nil && conv.Status != domain.StatusEnded:
		return conv, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return s.conversations.StartConversation(req.SessionID, req.UserID, nil)
}

// makeRoom makes sure the turn fits before anything is recorded. A full
// conversation is ended and the turn moves to a new one in the same
// session. It reports false, recording nothing, when even an empty
// conversation is too small for a turn.
func (s *ChatService) makeRoom(
	req domain.ChatRequest, conv *domain.Conversation,
) (*domain.Conversation, bool, error) {
	ok, err := s.conversations.HasRoom(conv.ID, turnMessages)
	if err != nil || ok || len(conv.Messages) == 0 {
		return conv, ok, err
	}

	logger.Info("Conversation %s is full, continuing session %s in a new conversation", conv.ID, req.SessionID)
	err = s.conversations.EndConversation(conv.ID)
	if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		return nil, false, err
	}
	next, err := s.conversations.StartConversation(req.SessionID, req.UserID, nil)
	if err != nil {
		return nil, false, err
	}
	ok, err = s.conversations.HasRoom(next.ID, turnMessages)
	return next, ok, err
}

// record stores a message, encrypting it first in compliance mode. Context
// inference then runs here on the plaintext.
func (s *ChatService) record(
	conversationID string, role domain.Role, content string, metadata map[string]any, score float64,
) error {
	if s.crypto == nil {
		_, err := s.conversations.AddMessage(conversationID, role, content, metadata, &score)
		return err
	}

	sealed, err := s.crypto.Encrypt(content)
	if err != nil {
		return fmt.Errorf("encrypt message: %w", err)
	}
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[domain.MetadataEncrypted] = true

	if _, err := s.conversations.AddMessage(conversationID, role, sealed, meta, &score); err != nil {
		return err
	}
	if role == domain.RoleUser {
		return s.conversations.UpdateContext(conversationID, InferContext(content))
	}
	return nil
}

func (s *ChatService) sources(ctx context.Context, message string) []domain.RetrievalResult {
	if s.retrieval == nil {
		return nil
	}
	results, err := s.retrieval.Query(ctx, message, s.topK)
	if err != nil {
		logger.Warn("Knowledge retrieval failed: %v", err)
		return nil
	}
	return results
}

// draft asks the generator for a reply, falling back to the rule-based
// reply when there is no generator or it fails.
func (s *ChatService) draft(
	ctx context.Context, conversationID, message string, sources []domain.RetrievalResult,
) string {
	if s.generator == nil {
		return FallbackReply(message)
	}

	history, err := s.history(conversationID)
	if err != nil {
		logger.Warn("Could not load history for %s: %v", conversationID, err)
	}

	reply, err := s.generator.Generate(ctx, buildSystemPrompt(s.systemPrompt, sources), history, message)
	if err != nil || strings.TrimSpace(reply) == "" {
		logger.Warn("Generator %s failed, using fallback reply: %v", s.generator.ModelName(), err)
		return FallbackReply(message)
	}
	return strings.TrimSpace(reply)
}

// history returns the context window preceding the current user message,
// decrypted, oldest first.
func (s *ChatService) history(conversationID string) ([]driven.ChatMessage, error) {
	msgs, err := s.conversations.History(conversationID, s.contextWindow+1)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}

	out := make([]driven.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		content := m.Content
		if m.IsEncrypted() && s.crypto != nil {
			plain, err := s.crypto.Decrypt(content)
			if err != nil {
				logger.Debug("Skipping undecryptable message %s", m.ID)
				continue
			}
			content = plain
		}
		out = append(out, driven.ChatMessage{Role: string(m.Role), Content: content})
	}
	return out, nil
}

func buildSystemPrompt(base string, sources []domain.RetrievalResult) string {
	if len(sources) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nRelevant NHS information:\n")
	for _, src := range sources {
		b.WriteString("- ")
		b.WriteString(src.Snippet())
		b.WriteString("\n")
	}
	return b.String()
}
