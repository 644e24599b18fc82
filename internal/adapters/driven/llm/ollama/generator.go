// Package ollama drafts assistant replies with a local Ollama model.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.ResponseGenerator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "llama3.2"
	DefaultTimeout     = 120 * time.Second
	DefaultTemperature = 0.7
)

// Config holds configuration for the Ollama generator.
type Config struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// Generator calls /api/chat without streaming.
type Generator struct {
	client      *http.Client
	baseURL     string
	model       string
	temperature float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// NewGenerator creates an Ollama generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	return &Generator{
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Generate sends the full prompt as one non-streaming chat request.
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

	data, err := json.Marshal(chatRequest{
		Model:    g.model,
		Messages: msgs,
		Options:  map[string]any{"temperature": g.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: %v: %w", err, domain.ErrGeneratorUnavailable)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama: decode response (status %d): %v: %w",
			resp.StatusCode, err, domain.ErrGeneratorUnavailable)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return "", fmt.Errorf("ollama: status %d: %s: %w", resp.StatusCode, out.Error, domain.ErrGeneratorUnavailable)
	}
	return out.Message.Content, nil
}

// ModelName returns the chat model.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping checks the server answers /api/tags.
func (g *Generator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: create ping request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping: %v: %w", err, domain.ErrGeneratorUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: ping returned status %d: %w", resp.StatusCode, domain.ErrGeneratorUnavailable)
	}
	return nil
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}
