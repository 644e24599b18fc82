package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/emma/internal/core/domain"
)

// DefaultServerURL is where `emma serve` listens by default.
const DefaultServerURL = "http://localhost:8000"

// ErrServerUnreachable is returned when no EMMA server answers at the
// client's base URL.
var ErrServerUnreachable = errors.New("httpapi: server unreachable")

// Client calls the conversation routes of a running server. Conversations
// live in the server's memory, so this is the only way another process
// can read or reap them.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL. A nil hc selects a client with
// a 30s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultServerURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Export fetches the audit export of a conversation.
func (c *Client) Export(ctx context.Context, conversationID string) (*domain.ConversationExport, error) {
	var export domain.ConversationExport
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/export"
	if err := c.do(ctx, http.MethodGet, path, &export); err != nil {
		return nil, err
	}
	return &export, nil
}

// Stats fetches conversation statistics.
func (c *Client) Stats(ctx context.Context) (domain.ConversationStats, error) {
	var resp statsResponse
	if err := c.do(ctx, http.MethodGet, "/api/conversations/stats", &resp); err != nil {
		return domain.ConversationStats{}, err
	}
	stats := domain.ConversationStats{
		TotalConversations:  resp.TotalConversations,
		ActiveConversations: resp.ActiveConversations,
		PausedConversations: resp.PausedConversations,
		EndedConversations:  resp.EndedConversations,
		TotalSessions:       resp.TotalSessions,
		TotalMessages:       resp.TotalMessages,
		AverageLength:       resp.AverageLength,
	}
	if t, err := time.Parse(time.RFC3339, resp.LastCleanup); err == nil {
		stats.LastCleanup = t
	}
	return stats, nil
}

// Cleanup runs the expiry sweep on the server.
func (c *Client) Cleanup(ctx context.Context) (domain.CleanupResult, error) {
	var resp cleanupResponse
	if err := c.do(ctx, http.MethodPost, "/api/cleanup", &resp); err != nil {
		return domain.CleanupResult{}, err
	}
	return domain.CleanupResult{
		SessionsRemoved:      resp.SessionsRemoved,
		ConversationsRemoved: resp.ConversationsRemoved,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s (is `emma serve` running?): %w", ErrServerUnreachable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// statusError turns an error response back into the matching domain error.
func statusError(resp *http.Response) error {
	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxRequestBody))
	if json.Unmarshal(data, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body.Error)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, body.Error)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", errUnavailable, body.Error)
	default:
		return fmt.Errorf("server returned %s: %s", resp.Status, body.Error)
	}
}
