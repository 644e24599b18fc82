package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/emma/internal/core/domain"
)

const (
	uriScheme = "emma://"
	mimeJSON  = "application/json"
)

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "knowledge",
		Name:        "knowledge",
		Description: "All FAQs, guidelines and documents in the knowledge base",
		MIMEType:    mimeJSON,
	}, s.handleKnowledgeResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "knowledge/{recordId}",
		Name:        "knowledge-record",
		Description: "A single knowledge record",
		MIMEType:    mimeJSON,
	}, s.handleKnowledgeRecordResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "conversations/{conversationId}/export",
		Name:        "conversation-export",
		Description: "Audit export of a conversation",
		MIMEType:    mimeJSON,
	}, s.handleConversationExportResource)
}

type recordInfo struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	PrimaryText string   `json:"primary_text,omitempty"`
	BodyText    string   `json:"body_text"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	AddedAt     string   `json:"added_at"`
}

func toRecordInfo(r *domain.KnowledgeRecord) recordInfo {
	return recordInfo{
		ID:          r.ID,
		Kind:        r.Kind.String(),
		PrimaryText: r.PrimaryText,
		BodyText:    r.BodyText,
		Category:    r.Category,
		Tags:        r.Tags,
		AddedAt:     r.AddedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleKnowledgeResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	records := s.ports.Retrieval.Records()
	infos := make([]recordInfo, len(records))
	for i := range records {
		infos[i] = toRecordInfo(&records[i])
	}
	return jsonResult(req.Params.URI, infos)
}

func (s *Server) handleKnowledgeRecordResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractRecordID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	records := s.ports.Retrieval.Records()
	for i := range records {
		if records[i].ID == id {
			return jsonResult(req.Params.URI, toRecordInfo(&records[i]))
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func (s *Server) handleConversationExportResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Conversations == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id := extractConversationID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	export, err := s.ports.Conversations.ExportConversation(id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("exporting conversation: %w", err)
	}
	return jsonResult(req.Params.URI, export)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(data),
		}},
	}, nil
}

// extractRecordID returns the id from emma://knowledge/{recordId}.
func extractRecordID(uri string) string {
	const prefix = uriScheme + "knowledge/"
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// extractConversationID returns the id from emma://conversations/{id}/export.
func extractConversationID(uri string) string {
	const prefix = uriScheme + "conversations/"
	const suffix = "/export"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
