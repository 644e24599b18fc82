// Package memory provides an in-process cosine similarity index used when
// no remote vector database is configured.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	vec      []float32
	norm     float64
	metadata map[string]string
}

// Index is a brute-force vector index guarded by a RWMutex.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]entry
}

// NewIndex creates an index. A positive dimension rejects vectors of any
// other size; zero accepts the size of the first vector stored.
func NewIndex(dimension int) *Index {
	return &Index{
		dimension: dimension,
		entries:   make(map[string]entry),
	}
}

// Upsert stores or replaces a vector.
func (x *Index) Upsert(_ context.Context, id string, embedding []float32, metadata map[string]string) error {
	if id == "" || len(embedding) == 0 {
		return fmt.Errorf("memory index: id and embedding are required: %w", domain.ErrInvalidInput)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dimension == 0 {
		x.dimension = len(embedding)
	}
	if len(embedding) != x.dimension {
		return fmt.Errorf("memory index: dimension %d, want %d: %w", len(embedding), x.dimension, domain.ErrInvalidInput)
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	x.entries[id] = entry{
		vec:      append([]float32(nil), embedding...),
		norm:     norm(embedding),
		metadata: meta,
	}
	return nil
}

// Delete removes a vector.
func (x *Index) Delete(_ context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.entries, id)
	return nil
}

// Search scores every stored vector by cosine similarity.
// Ties are broken by id for stable output.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dimension != 0 && len(query) != x.dimension {
		return nil, fmt.Errorf("memory index: query dimension %d, want %d: %w",
			len(query), x.dimension, domain.ErrInvalidInput)
	}
	qn := norm(query)
	if qn == 0 {
		return nil, nil
	}

	hits := make([]driven.VectorHit, 0, len(x.entries))
	for id, e := range x.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.norm == 0 {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ID:         id,
			Similarity: dot(query, e.vec) / (qn * e.norm),
			Metadata:   copyMeta(e.metadata),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored vectors.
func (x *Index) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

// Ping always succeeds.
func (x *Index) Ping(_ context.Context) error {
	return nil
}

// Close drops all vectors.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = make(map[string]entry)
	return nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
