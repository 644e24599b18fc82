package domain

import "time"

// KnowledgeKind classifies a knowledge record.
type KnowledgeKind string

// Knowledge record kinds.
const (
	KindFAQ       KnowledgeKind = "faq"
	KindGuideline KnowledgeKind = "guideline"
	KindDocument  KnowledgeKind = "document"
)

// IsValid returns true if the kind is recognised.
func (k KnowledgeKind) IsValid() bool {
	switch k {
	case KindFAQ, KindGuideline, KindDocument:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k KnowledgeKind) String() string {
	return string(k)
}

// KnowledgeRecord is an FAQ, guideline or free-form document that
// retrieval can surface.
type KnowledgeRecord struct {
	// ID uniquely identifies the record.
	ID string

	// Kind is faq, guideline or document.
	Kind KnowledgeKind

	// PrimaryText is the question (faq) or title (guideline, document).
	PrimaryText string

	// BodyText is the answer or content.
	BodyText string

	// Category groups related records, e.g. "appointments".
	Category string

	// Tags are free-form labels that also feed keyword search.
	Tags []string

	// Embedding is the vector for BodyText, when one was computed.
	// It is not persisted; records are re-embedded on load.
	Embedding []float32

	// AddedAt is when the record was first stored.
	AddedAt time.Time
}

// EmbeddingText returns the text that is embedded for vector search.
func (r *KnowledgeRecord) EmbeddingText() string {
	if r.PrimaryText == "" {
		return r.BodyText
	}
	return r.PrimaryText + "\n" + r.BodyText
}
