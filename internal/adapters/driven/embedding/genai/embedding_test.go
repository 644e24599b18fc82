package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/custodia-labs/emma/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/emma/internal/core/domain"
)

type mockModels struct {
	resp   *genai.EmbedContentResponse
	err    error
	model  string
	inputs int
}

func (m *mockModels) EmbedContent(
	_ context.Context, model string, contents []*genai.Content, _ *genai.EmbedContentConfig,
) (*genai.EmbedContentResponse, error) {
	m.model = model
	m.inputs = len(contents)
	return m.resp, m.err
}

func unlimited() *ratelimit.Limiter {
	return ratelimit.NewWithConfig(ratelimit.Config{RequestsPerSecond: 1000, BurstSize: 100})
}

func TestNewEmbeddingService_RequiresKey(t *testing.T) {
	_, err := NewEmbeddingService(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbeddingService_Defaults(t *testing.T) {
	s := newEmbeddingService(&mockModels{}, Config{})
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.Equal(t, ratelimit.ProviderGemini, s.limiter.Provider())
	assert.NoError(t, s.Close())
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	models := &mockModels{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{
			{Values: []float32{0.1, 0.2}},
			{Values: []float32{0.3, 0.4}},
		},
	}}
	s := newEmbeddingService(models, Config{Model: "custom", Limiter: unlimited()})

	vecs, err := s.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vecs)
	assert.Equal(t, "custom", models.model)
	assert.Equal(t, 2, models.inputs)
}

func TestEmbeddingService_EmbedBatch_Empty(t *testing.T) {
	s := newEmbeddingService(&mockModels{}, Config{Limiter: unlimited()})
	vecs, err := s.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbeddingService_EmbedBatch_CountMismatch(t *testing.T) {
	models := &mockModels{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}},
	}}
	s := newEmbeddingService(models, Config{Limiter: unlimited()})

	_, err := s.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbeddingService_QuotaErrorBacksOff(t *testing.T) {
	limiter := unlimited()
	models := &mockModels{err: errors.New("Error 429, Status: RESOURCE_EXHAUSTED")}
	s := newEmbeddingService(models, Config{Limiter: limiter})

	_, err := s.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.False(t, limiter.Allow())
}

func TestEmbeddingService_Ping(t *testing.T) {
	models := &mockModels{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}},
	}}
	s := newEmbeddingService(models, Config{Limiter: unlimited()})
	assert.NoError(t, s.Ping(context.Background()))

	models.err = errors.New("unauthenticated")
	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrEmbeddingUnavailable)
}
