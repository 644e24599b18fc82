// Package ai selects the embedding, vector and response-generation backends
// from ordered preference lists.
package ai

import (
	"context"
	"fmt"
	"time"

	genaiembed "github.com/custodia-labs/emma/internal/adapters/driven/embedding/genai"
	ollamaembed "github.com/custodia-labs/emma/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/emma/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/emma/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/emma/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/emma/internal/adapters/driven/llm/openai"
	memoryindex "github.com/custodia-labs/emma/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/emma/internal/adapters/driven/vector/pinecone"
	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
	"github.com/custodia-labs/emma/internal/logger"
)

// DefaultPingTimeout bounds each candidate's connectivity check.
const DefaultPingTimeout = 5 * time.Second

// Backends holds the selected services. Any of them may be nil, with the
// matching kind set to domain.BackendNone.
type Backends struct {
	Embedder      driven.EmbeddingService
	EmbeddingKind domain.BackendKind

	Vectors    driven.VectorIndex
	VectorKind domain.BackendKind

	Generator     driven.ResponseGenerator
	GeneratorKind domain.BackendKind

	// Warnings lists every candidate that was skipped and why.
	Warnings []string
}

// Close releases every selected service.
func (b *Backends) Close() {
	if b.Embedder != nil {
		_ = b.Embedder.Close()
	}
	if b.Vectors != nil {
		_ = b.Vectors.Close()
	}
	if b.Generator != nil {
		_ = b.Generator.Close()
	}
}

// service is what every backend exposes for selection.
type service interface {
	Ping(ctx context.Context) error
	Close() error
}

// candidate is one constructible entry in a preference list.
type candidate[T service] struct {
	name       string
	kind       domain.BackendKind
	configured bool
	build      func(ctx context.Context) (T, error)
}

// Selector walks preference lists and keeps the first candidate that
// builds and answers Ping.
type Selector struct {
	PingTimeout time.Duration
}

// NewSelector creates a selector with the default ping timeout.
func NewSelector() *Selector {
	return &Selector{PingTimeout: DefaultPingTimeout}
}

// Select picks every backend for settings. It never fails: a backend with
// no healthy candidate is left nil and the reasons are in Warnings.
func (s *Selector) Select(ctx context.Context, settings domain.AppSettings) *Backends {
	b := &Backends{
		EmbeddingKind: domain.BackendNone,
		VectorKind:    domain.BackendNone,
		GeneratorKind: domain.BackendNone,
	}

	var warnings []string
	b.Embedder, b.EmbeddingKind, warnings = pick(ctx, s.timeout(), embeddingCandidates(settings.Embeddings))
	b.Warnings = append(b.Warnings, warnings...)

	if b.Embedder == nil {
		b.Warnings = append(b.Warnings, "vector index: skipped, no embedding backend available")
	} else {
		vectors := vectorCandidates(settings.Vectors, b.Embedder.Dimensions())
		b.Vectors, b.VectorKind, warnings = pick(ctx, s.timeout(), vectors)
		b.Warnings = append(b.Warnings, warnings...)
	}

	b.Generator, b.GeneratorKind, warnings = pick(ctx, s.timeout(), generatorCandidates(settings.Generators))
	b.Warnings = append(b.Warnings, warnings...)

	for _, w := range b.Warnings {
		logger.Debug("Backend selection: %s", w)
	}
	logger.Info("Backends: embedding=%s vector=%s generator=%s", b.EmbeddingKind, b.VectorKind, b.GeneratorKind)
	return b
}

func (s *Selector) timeout() time.Duration {
	if s.PingTimeout <= 0 {
		return DefaultPingTimeout
	}
	return s.PingTimeout
}

func pick[T service](ctx context.Context, timeout time.Duration, cands []candidate[T]) (T, domain.BackendKind, []string) {
	var (
		zero     T
		warnings []string
	)
	for _, c := range cands {
		if !c.configured {
			warnings = append(warnings, fmt.Sprintf("%s: not configured", c.name))
			continue
		}

		svc, err := c.build(ctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", c.name, err))
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = svc.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = svc.Close()
			warnings = append(warnings, fmt.Sprintf("%s: unreachable: %v", c.name, err))
			continue
		}
		return svc, c.kind, warnings
	}
	return zero, domain.BackendNone, warnings
}

func embeddingCandidates(list []domain.EmbeddingSettings) []candidate[driven.EmbeddingService] {
	out := make([]candidate[driven.EmbeddingService], 0, len(list))
	for _, es := range list {
		out = append(out, candidate[driven.EmbeddingService]{
			name:       "embedding " + es.Provider.String(),
			kind:       es.Provider.Kind(),
			configured: es.IsConfigured(),
			build: func(ctx context.Context) (driven.EmbeddingService, error) {
				return CreateEmbeddingService(ctx, es)
			},
		})
	}
	return out
}

func vectorCandidates(list []domain.VectorSettings, dimension int) []candidate[driven.VectorIndex] {
	out := make([]candidate[driven.VectorIndex], 0, len(list))
	for _, vs := range list {
		vs.Dimension = dimension
		out = append(out, candidate[driven.VectorIndex]{
			name:       "vector " + string(vs.Provider),
			kind:       vs.Provider.Kind(),
			configured: vs.IsConfigured(),
			build: func(_ context.Context) (driven.VectorIndex, error) {
				return CreateVectorIndex(vs)
			},
		})
	}
	return out
}

func generatorCandidates(list []domain.GeneratorSettings) []candidate[driven.ResponseGenerator] {
	out := make([]candidate[driven.ResponseGenerator], 0, len(list))
	for _, gs := range list {
		out = append(out, candidate[driven.ResponseGenerator]{
			name:       "generator " + gs.Provider.String(),
			kind:       gs.Provider.Kind(),
			configured: gs.IsConfigured(),
			build: func(_ context.Context) (driven.ResponseGenerator, error) {
				return CreateResponseGenerator(gs)
			},
		})
	}
	return out
}

// CreateEmbeddingService builds the embedding adapter for one candidate
// without contacting it.
func CreateEmbeddingService(ctx context.Context, es domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	switch es.Provider {
	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     es.APIKey,
			BaseURL:    es.BaseURL,
			Model:      es.Model,
			Dimensions: es.Dimensions,
		})
	case domain.AIProviderGemini:
		return genaiembed.NewEmbeddingService(ctx, genaiembed.Config{
			APIKey:     es.APIKey,
			Model:      es.Model,
			Dimensions: es.Dimensions,
		})
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    es.BaseURL,
			Model:      es.Model,
			Dimensions: es.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q: %w", es.Provider, domain.ErrEmbeddingUnavailable)
	}
}

// CreateVectorIndex builds the vector adapter for one candidate.
func CreateVectorIndex(vs domain.VectorSettings) (driven.VectorIndex, error) {
	switch vs.Provider {
	case domain.VectorProviderPinecone:
		return pinecone.NewIndex(pinecone.Config{
			APIKey:    vs.APIKey,
			Host:      vs.Host,
			Namespace: vs.Namespace,
			Dimension: vs.Dimension,
		})
	case domain.VectorProviderMemory:
		return memoryindex.NewIndex(vs.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported vector provider %q: %w", vs.Provider, domain.ErrVectorIndexUnavailable)
	}
}

// CreateResponseGenerator builds the generator adapter for one candidate.
func CreateResponseGenerator(gs domain.GeneratorSettings) (driven.ResponseGenerator, error) {
	switch gs.Provider {
	case domain.AIProviderOpenAI:
		return openaillm.NewGenerator(openaillm.Config{
			APIKey:  gs.APIKey,
			BaseURL: gs.BaseURL,
			Model:   gs.Model,
		})
	case domain.AIProviderAnthropic:
		return anthropicllm.NewGenerator(anthropicllm.Config{
			APIKey:  gs.APIKey,
			BaseURL: gs.BaseURL,
			Model:   gs.Model,
		})
	case domain.AIProviderOllama:
		return ollamallm.NewGenerator(ollamallm.Config{
			BaseURL: gs.BaseURL,
			Model:   gs.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported generator provider %q: %w", gs.Provider, domain.ErrGeneratorUnavailable)
	}
}
