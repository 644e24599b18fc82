package mcp

import "errors"

// Errors returned when the server is wired without a required service.
var (
	ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
	ErrMissingRiskScorer       = errors.New("mcp: risk scorer is required")
)
