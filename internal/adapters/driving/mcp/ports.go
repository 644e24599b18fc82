package mcp

import "github.com/custodia-labs/emma/internal/core/ports/driving"

// Ports holds the driving ports the MCP server exposes.
// Retrieval and Risk are required. Without Chat the chat tool is not
// registered, and without Conversations exports resolve as not found.
type Ports struct {
	Retrieval     driving.RetrievalService
	Risk          driving.RiskScorer
	Chat          driving.ChatService
	Conversations driving.ConversationService
}

// Validate checks that the required ports are present.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.Risk == nil {
		return ErrMissingRiskScorer
	}
	return nil
}
