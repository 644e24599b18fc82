// Package anthropic drafts assistant replies with the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/emma/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.ResponseGenerator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.anthropic.com"
	DefaultModel       = "claude-3-5-haiku-latest"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7

	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic generator.
type Config struct {
	// APIKey is required.
	APIKey string

	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	// Limiter throttles requests. Nil selects the Anthropic defaults.
	Limiter *ratelimit.Limiter
}

// Generator calls /v1/messages.
type Generator struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	limiter     *ratelimit.Limiter
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGenerator creates an Anthropic generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required: %w", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(ratelimit.ProviderAnthropic)
	}

	return &Generator{
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		limiter:     cfg.Limiter,
	}, nil
}

// conversationTurns converts history plus the new message into the
// strictly alternating user/assistant turns the API requires. Adjacent
// turns from the same role are merged, and leading assistant turns dropped.
func conversationTurns(history []driven.ChatMessage, latest string) []message {
	all := append(append([]driven.ChatMessage{}, history...), driven.ChatMessage{Role: "user", Content: latest})

	var out []message
	for _, m := range all {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		if len(out) == 0 && role == "assistant" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, message{Role: role, Content: m.Content})
	}
	return out
}

// Generate sends one Messages request with the system prompt set.
func (g *Generator) Generate(
	ctx context.Context, systemPrompt string, history []driven.ChatMessage, msg string,
) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	data, err := json.Marshal(messagesRequest{
		Model:       g.model,
		System:      systemPrompt,
		Messages:    conversationTurns(history, msg),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: %v: %w", err, domain.ErrGeneratorUnavailable)
	}
	defer resp.Body.Close()

	if g.limiter.Observe(resp) {
		return "", fmt.Errorf("anthropic: rate limited: %w", domain.ErrGeneratorUnavailable)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %v: %w", err, domain.ErrGeneratorUnavailable)
	}

	var out messagesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("anthropic: decode response (status %d): %v: %w",
			resp.StatusCode, err, domain.ErrGeneratorUnavailable)
	}
	if out.Error != nil {
		return "", fmt.Errorf("anthropic: %s: %w", out.Error.Message, domain.ErrGeneratorUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: status %d: %w", resp.StatusCode, domain.ErrGeneratorUnavailable)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic: no text content returned: %w", domain.ErrGeneratorUnavailable)
	}
	return text.String(), nil
}

func (g *Generator) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

// ModelName returns the chat model.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping lists models to validate the key.
func (g *Generator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("anthropic: create ping request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping: %v: %w", err, domain.ErrGeneratorUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("anthropic: ping returned status %d: %w", resp.StatusCode, domain.ErrGeneratorUnavailable)
	}
	return nil
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}
