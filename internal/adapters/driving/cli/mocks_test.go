package cli

import (
	"context"
	"net/http/httptest"
	"time"

	"github.com/custodia-labs/emma/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driving"
	"github.com/custodia-labs/emma/internal/core/services"
)

type mockChatService struct {
	requests []domain.ChatRequest
	err      error
}

func (m *mockChatService) ProcessMessage(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	resp := &domain.ChatResponse{
		Response:       "echo: " + req.Message,
		ConversationID: "conv-" + req.SessionID,
		SafetyScore:    1,
		Timestamp:      time.Now(),
		Sources: []domain.RetrievalResult{{
			ID:       "faq-001",
			RecordID: "faq-001",
			Source:   domain.SourceKeyword,
			Score:    0.5,
		}},
	}
	if req.Message == "diagnose me" {
		resp.Response = services.SafetyResponse
		resp.SafetyScore = 0.3
		resp.Blocked = true
	}
	return resp, nil
}

type mockRetrievalService struct {
	results   []domain.RetrievalResult
	records   []domain.KnowledgeRecord
	err       error
	lastTopK  int
	lastAdded *domain.KnowledgeRecord
}

func (m *mockRetrievalService) Query(_ context.Context, _ string, topK int) ([]domain.RetrievalResult, error) {
	m.lastTopK = topK
	return m.results, m.err
}

func (m *mockRetrievalService) AddDocument(
	_ context.Context,
	record domain.KnowledgeRecord,
) (*domain.KnowledgeRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	record.ID = "doc-new"
	m.lastAdded = &record
	m.records = append(m.records, record)
	return &record, nil
}

func (m *mockRetrievalService) Records() []domain.KnowledgeRecord {
	return m.records
}

func (m *mockRetrievalService) Backends() driving.BackendInfo {
	return driving.BackendInfo{Embedding: domain.BackendNone, Vector: domain.BackendNone}
}

type testServices struct {
	chat          *mockChatService
	retrieval     *mockRetrievalService
	conversations *services.ConversationService

	// server is an emma serve stand-in over conversations; serverURL
	// points at it.
	server *httptest.Server
}

// setupTestServices installs mocks, starts an HTTP API over them and
// resets command flags. The returned function restores the previous state.
func setupTestServices() (*testServices, func()) {
	oldChat, oldRetrieval, oldRisk := chatService, retrievalService, riskScorer
	oldConversations, oldScheduler, oldGenerator := conversationService, scheduler, generatorName
	oldBootstrap := bootstrap

	ts := &testServices{
		chat: &mockChatService{},
		retrieval: &mockRetrievalService{
			records: services.DefaultKnowledgeRecords(),
			results: []domain.RetrievalResult{{
				ID:       "faq-001",
				RecordID: "faq-001",
				Source:   domain.SourceKeyword,
				Score:    0.67,
				Record:   &services.DefaultKnowledgeRecords()[0],
			}},
		},
		conversations: services.NewConversationService(services.ConversationConfig{}),
	}
	bootstrap = nil
	SetServices(Services{
		Chat:          ts.chat,
		Retrieval:     ts.retrieval,
		Risk:          services.NewRiskScorer(0),
		Conversations: ts.conversations,
	})
	resetFlags()

	api, err := httpapi.NewServer(httpapi.Services{Chat: ts.chat, Conversations: ts.conversations})
	if err != nil {
		panic(err)
	}
	ts.server = httptest.NewServer(api.Handler())
	serverURL = ts.server.URL

	return ts, func() {
		ts.server.Close()
		chatService, retrievalService, riskScorer = oldChat, oldRetrieval, oldRisk
		conversationService, scheduler, generatorName = oldConversations, oldScheduler, oldGenerator
		bootstrap = oldBootstrap
		resetFlags()
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}
}

func resetFlags() {
	chatMessage, chatSession, chatUser, chatSources = "", "", "", false
	searchLimit, searchJSON = domain.DefaultTopK, false
	knowledgeListKind, knowledgeListJSON = "", false
	knowledgeAddKind, knowledgeAddTitle, knowledgeAddCategory = string(domain.KindDocument), "", ""
	knowledgeAddTags, knowledgeAddFile = nil, ""
	riskJSON = false
	conversationExportOutput = ""
	serverURL = httpapi.DefaultServerURL
	verboseFlag, configDirFlag, inMemoryFlag = false, "", false
}
