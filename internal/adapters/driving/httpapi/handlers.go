package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/logger"
)

// maxRequestBody bounds decoded request bodies.
const maxRequestBody = 1 << 20

type chatRequest struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type sourceResponse struct {
	ID       string  `json:"id"`
	RecordID string  `json:"record_id,omitempty"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`
}

type chatResponse struct {
	Response       string           `json:"response"`
	ConversationID string           `json:"conversation_id"`
	SafetyScore    float64          `json:"safety_score"`
	Blocked        bool             `json:"blocked"`
	Sources        []sourceResponse `json:"sources"`
	Timestamp      string           `json:"timestamp"`
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type searchResponse struct {
	Results []sourceResponse `json:"results"`
	Count   int              `json:"count"`
}

type riskRequest struct {
	Text string `json:"text"`
}

type knowledgeRecord struct {
	ID          string   `json:"id,omitempty"`
	Kind        string   `json:"kind"`
	PrimaryText string   `json:"primary_text,omitempty"`
	BodyText    string   `json:"body_text"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	AddedAt     string   `json:"added_at,omitempty"`
}

// statsResponse is the wire form of domain.ConversationStats.
type statsResponse struct {
	TotalConversations  int     `json:"total_conversations"`
	ActiveConversations int     `json:"active_conversations"`
	PausedConversations int     `json:"paused_conversations"`
	EndedConversations  int     `json:"ended_conversations"`
	TotalSessions       int     `json:"total_sessions"`
	TotalMessages       int     `json:"total_messages"`
	AverageLength       float64 `json:"average_length"`
	LastCleanup         string  `json:"last_cleanup"`
}

type cleanupResponse struct {
	SessionsRemoved      int `json:"sessions_removed"`
	ConversationsRemoved int `json:"conversations_removed"`
}

type healthResponse struct {
	Status         string `json:"status"`
	Scorer         string `json:"scorer"`
	Embedding      string `json:"embedding"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	Vector         string `json:"vector"`
	Generator      string `json:"generator"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Scorer:    "ok",
		Embedding: domain.BackendNone.String(),
		Vector:    domain.BackendNone.String(),
		Generator: "fallback",
	}
	if s.services.Generator != "" {
		resp.Generator = s.services.Generator
	}
	if s.services.Retrieval != nil {
		info := s.services.Retrieval.Backends()
		resp.Embedding = info.Embedding.String()
		resp.EmbeddingModel = info.EmbeddingModel
		resp.Vector = info.Vector.String()
	}

	status := http.StatusOK
	if s.services.Risk != nil {
		if err := s.services.Risk.HealthCheck(); err != nil {
			logger.Error("Scorer self-check failed: %v", err)
			resp.Status = "degraded"
			resp.Scorer = err.Error()
			status = http.StatusServiceUnavailable
		}
	} else {
		resp.Scorer = "unavailable"
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["platform"] = "web"

	resp, err := s.services.Chat.ProcessMessage(r.Context(), domain.ChatRequest{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Message:   req.Message,
		Metadata:  metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       resp.Response,
		ConversationID: resp.ConversationID,
		SafetyScore:    resp.SafetyScore,
		Blocked:        resp.Blocked,
		Sources:        toSources(resp.Sources),
		Timestamp:      resp.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.services.Retrieval == nil {
		writeError(w, errUnavailable)
		return
	}
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}

	results, err := s.services.Retrieval.Query(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: toSources(results), Count: len(results)})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	if s.services.Risk == nil {
		writeError(w, errUnavailable)
		return
	}
	var req riskRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, fmt.Errorf("%w: text is empty", domain.ErrInvalidInput))
		return
	}
	writeJSON(w, http.StatusOK, s.services.Risk.Report(req.Text))
}

func (s *Server) handleListKnowledge(w http.ResponseWriter, _ *http.Request) {
	if s.services.Retrieval == nil {
		writeError(w, errUnavailable)
		return
	}
	records := s.services.Retrieval.Records()
	out := make([]knowledgeRecord, len(records))
	for i := range records {
		out[i] = fromRecord(&records[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.services.Retrieval == nil {
		writeError(w, errUnavailable)
		return
	}
	var req knowledgeRecord
	if !decode(w, r, &req) {
		return
	}

	stored, err := s.services.Retrieval.AddDocument(r.Context(), domain.KnowledgeRecord{
		ID:          req.ID,
		Kind:        domain.KnowledgeKind(req.Kind),
		PrimaryText: req.PrimaryText,
		BodyText:    req.BodyText,
		Category:    req.Category,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromRecord(stored))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.services.Conversations == nil {
		writeError(w, errUnavailable)
		return
	}
	export, err := s.services.Conversations.ExportConversation(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.services.Conversations == nil {
		writeError(w, errUnavailable)
		return
	}
	st := s.services.Conversations.Statistics()
	writeJSON(w, http.StatusOK, statsResponse{
		TotalConversations:  st.TotalConversations,
		ActiveConversations: st.ActiveConversations,
		PausedConversations: st.PausedConversations,
		EndedConversations:  st.EndedConversations,
		TotalSessions:       st.TotalSessions,
		TotalMessages:       st.TotalMessages,
		AverageLength:       st.AverageLength,
		LastCleanup:         st.LastCleanup.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, _ *http.Request) {
	if s.services.Conversations == nil {
		writeError(w, errUnavailable)
		return
	}
	res := s.services.Conversations.CleanupOldConversations()
	writeJSON(w, http.StatusOK, cleanupResponse{
		SessionsRemoved:      res.SessionsRemoved,
		ConversationsRemoved: res.ConversationsRemoved,
	})
}

func toSources(results []domain.RetrievalResult) []sourceResponse {
	out := make([]sourceResponse, len(results))
	for i := range results {
		out[i] = sourceResponse{
			ID:       results[i].ID,
			RecordID: results[i].RecordID,
			Source:   string(results[i].Source),
			Score:    results[i].Score,
			Snippet:  results[i].Snippet(),
		}
	}
	return out
}

func fromRecord(r *domain.KnowledgeRecord) knowledgeRecord {
	return knowledgeRecord{
		ID:          r.ID,
		Kind:        r.Kind.String(),
		PrimaryText: r.PrimaryText,
		BodyText:    r.BodyText,
		Category:    r.Category,
		Tags:        r.Tags,
		AddedAt:     r.AddedAt.UTC().Format(time.RFC3339),
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
