package driving

import (
	"context"

	"github.com/custodia-labs/emma/internal/core/domain"
)

// RetrievalService fuses vector and keyword search over the knowledge base.
type RetrievalService interface {
	// Query returns up to topK results, most relevant first. Backend failures
	// degrade to fewer sources; only invalid input returns an error.
	Query(ctx context.Context, text string, topK int) ([]domain.RetrievalResult, error)

	// AddDocument validates, embeds, indexes and persists a record.
	// Either every store is updated or none is.
	AddDocument(ctx context.Context, record domain.KnowledgeRecord) (*domain.KnowledgeRecord, error)

	// Records lists the knowledge base in insertion order.
	Records() []domain.KnowledgeRecord

	// Backends reports which embedding and vector backends are in use.
	Backends() BackendInfo
}

// BackendInfo describes the backends selected at construction.
type BackendInfo struct {
	Embedding      domain.BackendKind
	EmbeddingModel string
	Vector         domain.BackendKind
}
