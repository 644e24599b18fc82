package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
	"github.com/custodia-labs/emma/internal/core/ports/driving"
	"github.com/custodia-labs/emma/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// reindexConcurrency bounds parallel embedding calls during Reindex.
const reindexConcurrency = 4

// RetrievalService fuses vector similarity and keyword search over the
// knowledge base.
//
// Vector and keyword scores are merged on their raw values. A cosine
// similarity and a token overlap ratio are not on a common scale, so the
// ordering between sources is approximate.
type RetrievalService struct {
	knowledge     *KnowledgeStore
	embedder      driven.EmbeddingService
	vectors       driven.VectorIndex
	embeddingKind domain.BackendKind
	vectorKind    domain.BackendKind
	timeout       time.Duration
	defaultTopK   int
	newID         func() string
}

// NewRetrievalService creates a retrieval service.
// The embedder and vectors parameters are optional (can be nil).
func NewRetrievalService(
	knowledge *KnowledgeStore,
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
) *RetrievalService {
	s := &RetrievalService{
		knowledge:     knowledge,
		embedder:      embedder,
		vectors:       vectors,
		embeddingKind: domain.BackendNone,
		vectorKind:    domain.BackendNone,
		timeout:       domain.DefaultBackendTimeout,
		defaultTopK:   domain.DefaultTopK,
		newID:         uuid.NewString,
	}
	if embedder != nil {
		s.embeddingKind = domain.BackendLocal
	}
	if vectors != nil {
		s.vectorKind = domain.BackendLocal
	}
	return s
}

// SetBackendKinds records how the embedder and vector index were provided.
func (s *RetrievalService) SetBackendKinds(embedding, vector domain.BackendKind) {
	if s.embedder != nil {
		s.embeddingKind = embedding
	}
	if s.vectors != nil {
		s.vectorKind = vector
	}
}

// SetTimeout bounds each embedding and vector call made by Query.
func (s *RetrievalService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// SetDefaultTopK sets the result count used when Query gets topK <= 0.
func (s *RetrievalService) SetDefaultTopK(k int) {
	if k > 0 {
		s.defaultTopK = k
	}
}

// Query returns up to topK results, most relevant first.
func (s *RetrievalService) Query(ctx context.Context, text string, topK int) ([]domain.RetrievalResult, error) {
	logger.Section("Retrieval")
	logger.Debug("Query: %q", text)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}

	var vectorResults, keywordResults []domain.RetrievalResult

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		vectorResults = s.vectorSearch(ctx, text, topK)
	}()

	go func() {
		defer wg.Done()
		keywordResults = s.keywordSearch(text)
	}()

	wg.Wait()

	logger.Debug("Merging %d vector + %d keyword results", len(vectorResults), len(keywordResults))

	// Vector results go first so they win ties under the stable sort.
	merged := make([]domain.RetrievalResult, 0, len(vectorResults)+len(keywordResults))
	merged = append(merged, vectorResults...)
	merged = append(merged, keywordResults...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	logger.Info("Final results: %d", len(merged))
	return merged, nil
}

// vectorSearch embeds the query and searches the index. Any failure,
// including a timeout, is logged and yields no results.
func (s *RetrievalService) vectorSearch(ctx context.Context, query string, topK int) []domain.RetrievalResult {
	if s.embedder == nil || s.vectors == nil {
		logger.Debug("Vector search skipped: embedder=%t, index=%t", s.embedder != nil, s.vectors != nil)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("Query embedding failed, continuing keyword-only: %v", err)
		return nil
	}

	hits, err := s.vectors.Search(ctx, embedding, topK)
	if err != nil {
		logger.Warn("Vector search failed, continuing keyword-only: %v", err)
		return nil
	}
	logger.Debug("Vector search: %d hits", len(hits))

	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		recordID := hit.ID
		if id := hit.Metadata["record_id"]; id != "" {
			recordID = id
		}
		res := domain.RetrievalResult{
			ID:       hit.ID,
			Score:    hit.Similarity,
			Source:   domain.SourceVector,
			RecordID: recordID,
			Metadata: hit.Metadata,
		}
		if rec, ok := s.knowledge.Get(recordID); ok {
			res.Record = rec
		}
		results = append(results, res)
	}
	return results
}

func (s *RetrievalService) keywordSearch(query string) []domain.RetrievalResult {
	hits := s.knowledge.KeywordSearch(query)
	logger.Debug("Keyword search: %d hits", len(hits))

	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		rec := h.record
		results = append(results, domain.RetrievalResult{
			ID:       rec.ID,
			Score:    h.score,
			Source:   domain.SourceKeyword,
			RecordID: rec.ID,
			Record:   &rec,
		})
	}
	return results
}

// AddDocument validates, embeds, indexes and persists a record. A record
// without an id gets a fresh one; a caller-supplied id that is already
// stored fails with domain.ErrAlreadyExists before anything is written.
// When an embedder is configured, an embedding failure aborts the add. A
// persistence failure removes the vector again.
func (s *RetrievalService) AddDocument(
	ctx context.Context, record domain.KnowledgeRecord,
) (*domain.KnowledgeRecord, error) {
	if strings.TrimSpace(record.BodyText) == "" {
		return nil, fmt.Errorf("%w: document body is empty", domain.ErrInvalidInput)
	}
	if record.Kind == "" {
		record.Kind = domain.KindDocument
	}
	if !record.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, record.Kind)
	}

	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		record.ID = s.newID()
	} else if _, exists := s.knowledge.Get(record.ID); exists {
		return nil, fmt.Errorf("record %s: %w", record.ID, domain.ErrAlreadyExists)
	}
	record.AddedAt = time.Now().UTC()

	upserted := false
	if s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, record.EmbeddingText())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		record.Embedding = embedding

		if s.vectors != nil {
			if err := s.vectors.Upsert(ctx, record.ID, embedding, vectorMetadata(&record)); err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
			}
			upserted = true
		}
	}

	if err := s.knowledge.Add(ctx, record); err != nil {
		if upserted {
			if delErr := s.vectors.Delete(context.WithoutCancel(ctx), record.ID); delErr != nil {
				logger.Warn("Rollback of vector %s failed: %v", record.ID, delErr)
			}
		}
		return nil, fmt.Errorf("add document: %w", err)
	}

	logger.Info("Document added: %s (%s)", record.ID, record.PrimaryText)
	return &record, nil
}

// Reindex embeds every stored record and upserts it into the vector
// index. It returns the number of records indexed.
func (s *RetrievalService) Reindex(ctx context.Context) (int, error) {
	if s.embedder == nil || s.vectors == nil {
		return 0, nil
	}
	logger.Section("Vector Reindex")

	records := s.knowledge.All()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexConcurrency)

	var mu sync.Mutex
	indexed := 0
	for i := range records {
		rec := records[i]
		g.Go(func() error {
			embedding, err := s.embedder.Embed(gctx, rec.EmbeddingText())
			if err != nil {
				return fmt.Errorf("embed %s: %w", rec.ID, err)
			}
			if err := s.vectors.Upsert(gctx, rec.ID, embedding, vectorMetadata(&rec)); err != nil {
				return fmt.Errorf("upsert %s: %w", rec.ID, err)
			}
			mu.Lock()
			indexed++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	logger.Info("Reindexed %d/%d records", indexed, len(records))
	return indexed, err
}

func vectorMetadata(r *domain.KnowledgeRecord) map[string]string {
	return map[string]string{
		"record_id": r.ID,
		"kind":      string(r.Kind),
		"category":  r.Category,
		"title":     r.PrimaryText,
		"text":      truncate(r.BodyText, 500),
	}
}

// Records lists the knowledge base in insertion order.
func (s *RetrievalService) Records() []domain.KnowledgeRecord {
	return s.knowledge.All()
}

// Backends reports which embedding and vector backends are in use.
func (s *RetrievalService) Backends() driving.BackendInfo {
	info := driving.BackendInfo{
		Embedding: s.embeddingKind,
		Vector:    s.vectorKind,
	}
	if s.embedder != nil {
		info.EmbeddingModel = s.embedder.ModelName()
	}
	return info
}
