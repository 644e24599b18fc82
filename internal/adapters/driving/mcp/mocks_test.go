package mcp

import (
	"context"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results   []domain.RetrievalResult
	records   []domain.KnowledgeRecord
	err       error
	lastQuery string
	lastTopK  int
}

func (m *mockRetrievalService) Query(_ context.Context, text string, topK int) ([]domain.RetrievalResult, error) {
	m.lastQuery = text
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
	m.records = append(m.records, record)
	return &record, nil
}

func (m *mockRetrievalService) Records() []domain.KnowledgeRecord {
	return m.records
}

func (m *mockRetrievalService) Backends() driving.BackendInfo {
	return driving.BackendInfo{Embedding: domain.BackendNone, Vector: domain.BackendNone}
}

// mockRiskScorer is a mock implementation of driving.RiskScorer.
type mockRiskScorer struct {
	report domain.SafetyReport
}

func (m *mockRiskScorer) Score(_ string) float64 { return m.report.SafetyScore }

func (m *mockRiskScorer) IsSafe(_ string) bool { return m.report.SafetyScore >= domain.DefaultSafetyThreshold }

func (m *mockRiskScorer) Report(_ string) domain.SafetyReport { return m.report }

func (m *mockRiskScorer) HealthCheck() error { return nil }

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	resp    *domain.ChatResponse
	err     error
	lastReq domain.ChatRequest
}

func (m *mockChatService) ProcessMessage(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.lastReq = req
	return m.resp, m.err
}
