// Package genai embeds text with Google's Gemini embedding models.
package genai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/custodia-labs/emma/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "text-embedding-004"
	DefaultDimensions = 768
)

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is required.
	APIKey string

	Model      string
	Dimensions int

	// Limiter throttles requests. Nil selects the Gemini defaults.
	Limiter *ratelimit.Limiter
}

// EmbeddingService generates embeddings through the Gemini API.
type EmbeddingService struct {
	models     embedder
	model      string
	dimensions int
	limiter    *ratelimit.Limiter
}

// embedder is the subset of genai.Models used here.
type embedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// NewEmbeddingService creates a Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: API key is required: %w", domain.ErrInvalidInput)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return newEmbeddingService(client.Models, cfg), nil
}

func newEmbeddingService(models embedder, cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(ratelimit.ProviderGemini)
	}
	return &EmbeddingService{
		models:     models,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		limiter:    cfg.Limiter,
	}
}

// Embed generates a vector for one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := s.models.EmbedContent(ctx, s.model, contents, nil)
	if err != nil {
		if isQuotaError(err) {
			s.limiter.Backoff(0)
		}
		return nil, fmt.Errorf("genai: embed: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("genai: unexpected embedding count: %w", domain.ErrEmbeddingUnavailable)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("genai: empty embedding %d: %w", i, domain.ErrEmbeddingUnavailable)
		}
		out[i] = e.Values
	}
	return out, nil
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// Dimensions returns the vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the embedding model.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a short probe text.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.Embed(ctx, "ping")
	return err
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
