// Package openai drafts assistant replies with the OpenAI chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/emma/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.ResponseGenerator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// Config holds configuration for the OpenAI generator.
type Config struct {
	// APIKey is required.
	APIKey string

	// BaseURL can point at Azure OpenAI or a compatible API.
	BaseURL string

	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	// Limiter throttles requests. Nil selects the OpenAI defaults.
	Limiter *ratelimit.Limiter
}

// Generator calls /chat/completions.
type Generator struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	limiter     *ratelimit.Limiter
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGenerator creates an OpenAI generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required: %w", domain.ErrInvalidInput)
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
		cfg.Limiter = ratelimit.New(ratelimit.ProviderOpenAI)
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

// Generate sends the system prompt, history and message as one completion.
func (g *Generator) Generate(
	ctx context.Context, systemPrompt string, history []driven.ChatMessage, message string,
) (string, error) {
	msgs := make([]chatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, h := range history {
		msgs = append(msgs, chatMessage{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: message})

	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	data, err := json.Marshal(completionRequest{
		Model:       g.model,
		Messages:    msgs,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: %v: %w", err, domain.ErrGeneratorUnavailable)
	}
	defer resp.Body.Close()

	if g.limiter.Observe(resp) {
		return "", fmt.Errorf("openai: rate limited: %w", domain.ErrGeneratorUnavailable)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %v: %w", err, domain.ErrGeneratorUnavailable)
	}

	var out completionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("openai: decode response (status %d): %v: %w", resp.StatusCode, err, domain.ErrGeneratorUnavailable)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openai: %s: %w", out.Error.Message, domain.ErrGeneratorUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: status %d: %w", resp.StatusCode, domain.ErrGeneratorUnavailable)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned: %w", domain.ErrGeneratorUnavailable)
	}
	return out.Choices[0].Message.Content, nil
}

// ModelName returns the chat model.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping checks the API key against GET /models.
func (g *Generator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping: %v: %w", err, domain.ErrGeneratorUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai: ping returned status %d: %w", resp.StatusCode, domain.ErrGeneratorUnavailable)
	}
	return nil
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}
