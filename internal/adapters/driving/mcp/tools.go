package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/emma/internal/core/domain"
)

const defaultSearchLimit = 5

// SearchInput is the input schema for the search_knowledge tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the question or keywords to look up in the NHS knowledge base"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
}

// SearchOutput is the output schema for the search_knowledge tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput is a single knowledge hit.
type SearchResultOutput struct {
	ID       string  `json:"id"`
	RecordID string  `json:"record_id,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Category string  `json:"category,omitempty"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`
}

// RiskInput is the input schema for the assess_risk tool.
type RiskInput struct {
	Text string `json:"text" jsonschema:"the text to assess for safety and compliance risk"`
}

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier; conversations are created on first use"`
	UserID    string `json:"user_id,omitempty" jsonschema:"optional user identifier"`
	Message   string `json:"message" jsonschema:"the user's message"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	Response       string   `json:"response"`
	ConversationID string   `json:"conversation_id"`
	SafetyScore    float64  `json:"safety_score"`
	Blocked        bool     `json:"blocked"`
	Sources        []string `json:"sources,omitempty"`
	Timestamp      string   `json:"timestamp"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search NHS FAQs, guidelines and documents in the EMMA knowledge base",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "assess_risk",
		Description: "Score text for healthcare safety and compliance risk",
	}, s.handleAssessRisk)

	if s.ports.Chat != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "chat",
			Description: "Send a message to EMMA and receive a safety-checked reply",
		}, s.handleChat)
	}
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.ports.Retrieval.Query(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("searching knowledge: %w", err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		r := results[i]
		out := SearchResultOutput{
			ID:       r.ID,
			RecordID: r.RecordID,
			Source:   string(r.Source),
			Score:    r.Score,
			Snippet:  r.Snippet(),
		}
		if r.Record != nil {
			out.Kind = r.Record.Kind.String()
			out.Category = r.Record.Category
		}
		output.Results[i] = out
	}

	return nil, output, nil
}

func (s *Server) handleAssessRisk(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input RiskInput,
) (*mcp.CallToolResult, domain.SafetyReport, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, domain.SafetyReport{}, fmt.Errorf("%w: text is empty", domain.ErrInvalidInput)
	}
	return nil, s.ports.Risk.Report(input.Text), nil
}

func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	resp, err := s.ports.Chat.ProcessMessage(ctx, domain.ChatRequest{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Message:   input.Message,
		Metadata:  map[string]any{"platform": "mcp"},
	})
	if err != nil {
		return nil, ChatOutput{}, err
	}

	out := ChatOutput{
		Response:       resp.Response,
		ConversationID: resp.ConversationID,
		SafetyScore:    resp.SafetyScore,
		Blocked:        resp.Blocked,
		Timestamp:      resp.Timestamp.UTC().Format(time.RFC3339),
	}
	for _, src := range resp.Sources {
		id := src.RecordID
		if id == "" {
			id = src.ID
		}
		out.Sources = append(out.Sources, id)
	}
	return nil, out, nil
}
