package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
	"github.com/custodia-labs/emma/internal/core/ports/driving"
)

// mockRiskScorer flags any text containing one of the unsafe words.
type mockRiskScorer struct {
	unsafe []string
}

func (m *mockRiskScorer) Score(text string) float64 {
	if m.flagged(text) {
		return 0.2
	}
	return 0.95
}

func (m *mockRiskScorer) flagged(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range m.unsafe {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (m *mockRiskScorer) IsSafe(text string) bool { return !m.flagged(text) }

func (m *mockRiskScorer) Report(text string) domain.SafetyReport {
	return domain.SafetyReport{SafetyScore: m.Score(text)}
}

func (m *mockRiskScorer) HealthCheck() error { return nil }

// mockGenerator records the last request.
type mockGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompt  string
	history []driven.ChatMessage
	message string
}

func (m *mockGenerator) Generate(
	_ context.Context, systemPrompt string, history []driven.ChatMessage, message string,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompt = systemPrompt
	m.history = history
	m.message = message
	return m.reply, m.err
}

func (m *mockGenerator) ModelName() string            { return "mock-llm" }
func (m *mockGenerator) Ping(_ context.Context) error { return nil }
func (m *mockGenerator) Close() error                 { return nil }

// mockRetrieval returns canned results.
type mockRetrieval struct {
	results []domain.RetrievalResult
	err     error
}

func (m *mockRetrieval) Query(_ context.Context, _ string, topK int) ([]domain.RetrievalResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) > topK {
		return m.results[:topK], nil
	}
	return m.results, nil
}

func (m *mockRetrieval) AddDocument(_ context.Context, r domain.KnowledgeRecord) (*domain.KnowledgeRecord, error) {
	return &r, nil
}

func (m *mockRetrieval) Records() []domain.KnowledgeRecord { return nil }

func (m *mockRetrieval) Backends() driving.BackendInfo { return driving.BackendInfo{} }

// mockCrypto base64-encodes with a marker prefix.
type mockCrypto struct {
	encryptErr error
}

func (m *mockCrypto) Encrypt(text string) (string, error) {
	if m.encryptErr != nil {
		return "", m.encryptErr
	}
	return "enc:" + base64.StdEncoding.EncodeToString([]byte(text)), nil
}

func (m *mockCrypto) Decrypt(ciphertext string) (string, error) {
	raw, ok := strings.CutPrefix(ciphertext, "enc:")
	if !ok {
		return "", domain.ErrDecryptFailed
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", domain.ErrDecryptFailed
	}
	return string(b), nil
}

type chatFixture struct {
	chat          *ChatService
	conversations *ConversationService
	generator     *mockGenerator
	retrieval     *mockRetrieval
}

func newChatFixture(generator *mockGenerator, crypto driven.ContentCrypto) *chatFixture {
	conversations := NewConversationService(ConversationConfig{})
	retrieval := &mockRetrieval{results: []domain.RetrievalResult{{
		ID:     "faq-002",
		Score:  0.9,
		Source: domain.SourceKeyword,
		Record: &domain.KnowledgeRecord{
			ID:          "faq-002",
			PrimaryText: "How do I book a GP appointment?",
			BodyText:    "Call your GP practice or use the NHS App.",
		},
	}}}
	scorer := &mockRiskScorer{unsafe: []string{"diagnose", "prescribe"}}

	var gen driven.ResponseGenerator
	if generator != nil {
		gen = generator
	}
	return &chatFixture{
		chat:          NewChatService(conversations, retrieval, scorer, gen, crypto, ChatConfig{}),
		conversations: conversations,
		generator:     generator,
		retrieval:     retrieval,
	}
}

func TestFallbackReply(t *testing.T) {
	tests := []struct {
		message string
		prefix  string
	}{
		{"I need to book an appointment", "I can help you with appointment booking"},
		{"I feel sick", "I understand you're experiencing health concerns"},
		{"hello", "Hello! I'm EMMA"},
		{"what are your opening times", "Thank you for your message"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(FallbackReply(tt.message), tt.prefix))
		})
	}
}

func TestChatService_ProcessMessage_InvalidInput(t *testing.T) {
	f := newChatFixture(nil, nil)

	_, err := f.chat.ProcessMessage(context.Background(), domain.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.chat.ProcessMessage(context.Background(), domain.ChatRequest{SessionID: "s1", Message: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatService_ProcessMessage_FallbackWithoutGenerator(t *testing.T) {
	f := newChatFixture(nil, nil)

	resp, err := f.chat.ProcessMessage(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "Can I book an appointment?",
	})
	require.NoError(t, err)

	assert.False(t, resp.Blocked)
	assert.Equal(t, FallbackReply("book"), resp.Response)
	assert.NotEmpty(t, resp.ConversationID)
	assert.InDelta(t, 0.95, resp.SafetyScore, 1e-9)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "faq-002", resp.Sources[0].ID)

	conv, err := f.conversations.GetConversation(resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, domain.RoleUser, conv.Messages[0].Role)
	require.NotNil(t, conv.Messages[0].SafetyScore)
	assert.Equal(t, domain.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "appointment_booking", conv.Context.Topic)
}

func TestChatService_ProcessMessage_UnsafeInput(t *testing.T) {
	gen := &mockGenerator{reply: "should not be called"}
	f := newChatFixture(gen, nil)

	resp, err := f.chat.ProcessMessage(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "Please diagnose my rash",
	})
	require.NoError(t, err)

	assert.True(t, resp.Blocked)
	assert.Equal(t, SafetyResponse, resp.Response)
	assert.InDelta(t, 0.2, resp.SafetyScore, 1e-9)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, gen.message)

	conv, err := f.conversations.GetConversation(resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, true, conv.Messages[1].Metadata[domain.MetadataBlocked])
}

func TestChatService_ProcessMessage_UnsafeReply(t *testing.T) {
	gen := &mockGenerator{reply: "I prescribe ibuprofen."}
	f := newChatFixture(gen, nil)

	resp, err := f.chat.ProcessMessage(context.Background(), domain.ChatRequest{
		SessionID: "s1",
		Message:   "My knee hurts",
	})
	require.NoError(t, err)

	assert.True(t, resp.Blocked)
	assert.Equal(t, SafetyResponse, resp.Response)
}

func TestChatService_ProcessMessage_GeneratorRequest(t *testing.T) {
	gen := &mockGenerator{reply: "  Your GP practice can book that for you.  "}
	f := newChatFixture(gen, nil)
	ctx := context.Background()

	for _, msg := range []string{"hello", "thanks", "one", "two"} {
		_, err := f.chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: msg})
		require.NoError(t, err)
	}
	resp, err := f.chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "How do I book?"})
	require.NoError(t, err)

	assert.Equal(t, "Your GP practice can book that for you.", resp.Response)
	assert.Equal(t, "How do I book?", gen.message)
	assert.True(t, strings.HasPrefix(gen.prompt, SystemPrompt))
	assert.Contains(t, gen.prompt, "How do I book a GP appointment?")

	// Eight prior messages exist; only the last five are sent, oldest first.
	require.Len(t, gen.history, domain.DefaultContextWindow)
	assert.Equal(t, "assistant", gen.history[0].Role)
	assert.Equal(t, "two", gen.history[3].Content)
	assert.Equal(t, "assistant", gen.history[4].Role)
}

func TestChatService_CustomSystemPrompt(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	conversations := NewConversationService(ConversationConfig{})
	chat := NewChatService(conversations, &mockRetrieval{}, &mockRiskScorer{}, gen, nil,
		ChatConfig{SystemPrompt: "You are a test assistant."})

	_, err := chat.ProcessMessage(context.Background(), domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "You are a test assistant.", gen.prompt)
}

func TestChatService_ProcessMessage_GeneratorFailureFallsBack(t *testing.T) {
	gen := &mockGenerator{err: domain.ErrGeneratorUnavailable}
	f := newChatFixture(gen, nil)

	resp, err := f.chat.ProcessMessage(context.Background(), domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, FallbackReply("hello"), resp.Response)
	assert.False(t, resp.Blocked)
}

func TestChatService_ProcessMessage_RetrievalFailureDegrades(t *testing.T) {
	f := newChatFixture(nil, nil)
	f.retrieval.err = errors.New("index offline")

	resp, err := f.chat.ProcessMessage(context.Background(), domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, FallbackReply("hello"), resp.Response)
}

func TestChatService_ProcessMessage_ReusesAndRestartsConversation(t *testing.T) {
	f := newChatFixture(nil, nil)
	ctx := context.Background()

	first, err := f.chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	second, err := f.chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "hello again"})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	require.NoError(t, f.conversations.EndConversation(first.ConversationID))
	third, err := f.chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ConversationID, third.ConversationID)
}

func TestChatService_ProcessMessage_FullConversationContinuesInNewOne(t *testing.T) {
	conversations := NewConversationService(ConversationConfig{MaxConversationLength: 3})
	chat := NewChatService(conversations, nil, &mockRiskScorer{}, nil, nil, ChatConfig{})
	ctx := context.Background()

	first, err := chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	second, err := chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "hello again"})
	require.NoError(t, err)
	third, err := chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "hello once more"})
	require.NoError(t, err)

	for _, resp := range []*domain.ChatResponse{first, second, third} {
		assert.Equal(t, FallbackReply("hello"), resp.Response)
	}
	assert.NotEqual(t, first.ConversationID, second.ConversationID)
	assert.NotEqual(t, second.ConversationID, third.ConversationID)

	// Every conversation holds whole turns only.
	for _, id := range []string{first.ConversationID, second.ConversationID, third.ConversationID} {
		conv, err := conversations.GetConversation(id)
		require.NoError(t, err)
		require.Len(t, conv.Messages, 2)
		assert.Equal(t, domain.RoleUser, conv.Messages[0].Role)
		assert.Equal(t, domain.RoleAssistant, conv.Messages[1].Role)
	}

	old, err := conversations.GetConversation(first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, old.Status)

	sess, err := conversations.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ConversationID, second.ConversationID, third.ConversationID}, sess.ConversationIDs)
}

func TestChatService_ProcessMessage_FullConversationUnderTrimPolicy(t *testing.T) {
	conversations := NewConversationService(ConversationConfig{
		MaxConversationLength: 4,
		OverflowPolicy:        domain.OverflowTrim,
	})
	chat := NewChatService(conversations, nil, &mockRiskScorer{}, nil, nil, ChatConfig{})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		resp, err := chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "hello"})
		require.NoError(t, err)
		ids = append(ids, resp.ConversationID)
	}

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	conv, err := conversations.GetConversation(ids[0])
	require.NoError(t, err)
	assert.LessOrEqual(t, len(conv.Messages), 4)
	assert.Equal(t, domain.RoleAssistant, conv.Messages[len(conv.Messages)-1].Role)
}

func TestChatService_ProcessMessage_TurnLargerThanCap(t *testing.T) {
	conversations := NewConversationService(ConversationConfig{MaxConversationLength: 1})
	chat := NewChatService(conversations, nil, &mockRiskScorer{}, nil, nil, ChatConfig{})
	ctx := context.Background()

	first, err := chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, CapacityResponse, first.Response)
	assert.False(t, first.Blocked)

	second, err := chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, CapacityResponse, second.Response)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	conv, err := conversations.GetConversation(first.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
	assert.Equal(t, 1, conversations.Statistics().TotalConversations)
}

func TestChatService_ProcessMessage_ComplianceMode(t *testing.T) {
	gen := &mockGenerator{reply: "Happy to help."}
	f := newChatFixture(gen, &mockCrypto{})
	ctx := context.Background()

	_, err := f.chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "I want to book an appointment"})
	require.NoError(t, err)
	resp, err := f.chat.ProcessMessage(ctx, domain.ChatRequest{SessionID: "s1", Message: "next Tuesday"})
	require.NoError(t, err)

	conv, err := f.conversations.GetConversation(resp.ConversationID)
	require.NoError(t, err)
	for _, m := range conv.Messages {
		assert.True(t, strings.HasPrefix(m.Content, "enc:"), m.Content)
		assert.True(t, m.IsEncrypted())
	}
	assert.Equal(t, "appointment_booking", conv.Context.Topic)

	// The generator sees plaintext history.
	require.Len(t, gen.history, 2)
	assert.Equal(t, "I want to book an appointment", gen.history[0].Content)
	assert.Equal(t, "Happy to help.", gen.history[1].Content)
}

func TestChatService_ProcessMessage_EncryptFailure(t *testing.T) {
	f := newChatFixture(nil, &mockCrypto{encryptErr: errors.New("bad key")})

	resp, err := f.chat.ProcessMessage(context.Background(), domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, ErrorResponse, resp.Response)
}

func TestChatService_WithRealScorer(t *testing.T) {
	conversations := NewConversationService(ConversationConfig{})
	chat := NewChatService(conversations, nil, NewRiskScorer(0), nil, nil, ChatConfig{})

	resp, err := chat.ProcessMessage(context.Background(), domain.ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	assert.False(t, resp.Blocked)
	assert.InDelta(t, 1.0, resp.SafetyScore, 1e-9)
	assert.Equal(t, FallbackReply("hello"), resp.Response)
}
