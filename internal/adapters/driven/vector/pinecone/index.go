// Package pinecone stores knowledge embeddings in a Pinecone serverless
// index through its REST data plane.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/emma/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
	"github.com/custodia-labs/emma/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Errors returned by NewIndex.
var (
	ErrAPIKeyRequired    = errors.New("pinecone: API key is required")
	ErrIndexHostRequired = errors.New("pinecone: index host is required")
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultAPIVersion = "2024-10"
)

// Config holds configuration for the Pinecone index.
type Config struct {
	APIKey string

	// Host is the index data plane host, e.g.
	// nhs-healthcare-abc123.svc.us-east-1-aws.pinecone.io.
	Host string

	Namespace  string
	Dimension  int
	Timeout    time.Duration
	APIVersion string

	// Limiter throttles requests. Nil selects the Pinecone defaults.
	Limiter *ratelimit.Limiter
}

// Index talks to one Pinecone index.
type Index struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	apiVersion string
	namespace  string
	dimension  int
	limiter    *ratelimit.Limiter
}

type vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type deleteRequest struct {
	IDs       []string `json:"ids"`
	Namespace string   `json:"namespace,omitempty"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

type statsResponse struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

// NewIndex creates a Pinecone index client. It does not contact the
// service; use Ping for that.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if cfg.Host == "" {
		return nil, ErrIndexHostRequired
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(ratelimit.ProviderPinecone)
	}

	base := strings.TrimRight(cfg.Host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	return &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		namespace:  cfg.Namespace,
		dimension:  cfg.Dimension,
		limiter:    cfg.Limiter,
	}, nil
}

// Upsert stores one vector with its metadata.
func (x *Index) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]string) error {
	if x.dimension > 0 && len(embedding) != x.dimension {
		return fmt.Errorf("pinecone: dimension %d, want %d: %w", len(embedding), x.dimension, domain.ErrInvalidInput)
	}
	req := upsertRequest{
		Vectors:   []vector{{ID: id, Values: embedding, Metadata: metadata}},
		Namespace: x.namespace,
	}
	return x.do(ctx, "/vectors/upsert", req, nil)
}

// Delete removes one vector.
func (x *Index) Delete(ctx context.Context, id string) error {
	return x.do(ctx, "/vectors/delete", deleteRequest{IDs: []string{id}, Namespace: x.namespace}, nil)
}

// Search queries the k nearest vectors with metadata.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	req := queryRequest{
		Vector:          query,
		TopK:            k,
		IncludeMetadata: true,
		Namespace:       x.namespace,
	}
	var resp queryResponse
	if err := x.do(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		meta := make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			if s, ok := v.(string); ok {
				meta[k] = s
			} else {
				meta[k] = fmt.Sprint(v)
			}
		}
		hits = append(hits, driven.VectorHit{ID: m.ID, Similarity: m.Score, Metadata: meta})
	}
	return hits, nil
}

// Count returns the vector count of the configured namespace.
func (x *Index) Count(ctx context.Context) (int, error) {
	var stats statsResponse
	if err := x.do(ctx, "/describe_index_stats", struct{}{}, &stats); err != nil {
		return 0, err
	}
	if ns, ok := stats.Namespaces[x.namespace]; ok {
		return ns.VectorCount, nil
	}
	if x.namespace == "" {
		return stats.TotalVectorCount, nil
	}
	return 0, nil
}

// Ping fetches index stats and checks the dimension matches.
func (x *Index) Ping(ctx context.Context) error {
	var stats statsResponse
	if err := x.do(ctx, "/describe_index_stats", struct{}{}, &stats); err != nil {
		return err
	}
	if x.dimension > 0 && stats.Dimension > 0 && stats.Dimension != x.dimension {
		return fmt.Errorf("pinecone: index dimension %d, want %d: %w",
			stats.Dimension, x.dimension, domain.ErrVectorIndexUnavailable)
	}
	return nil
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

// do POSTs payload to path and decodes the reply into out when non-nil.
// Transport and API failures wrap domain.ErrVectorIndexUnavailable.
func (x *Index) do(ctx context.Context, path string, payload, out any) error {
	if err := x.limiter.Wait(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pinecone: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("pinecone: create request: %w", err)
	}
	req.Header.Set("Api-Key", x.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-API-Version", x.apiVersion)

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone: %s: %v: %w", path, err, domain.ErrVectorIndexUnavailable)
	}
	defer resp.Body.Close()

	if x.limiter.Observe(resp) {
		logger.L().Warn("pinecone rate limited")
		return fmt.Errorf("pinecone: %s rate limited: %w", path, domain.ErrVectorIndexUnavailable)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pinecone: read response: %v: %w", err, domain.ErrVectorIndexUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone: %s status %d: %s: %w",
			path, resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrVectorIndexUnavailable)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("pinecone: decode response: %v: %w", err, domain.ErrVectorIndexUnavailable)
	}
	return nil
}
