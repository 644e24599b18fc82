package domain

// ResultSource identifies which search produced a retrieval result.
type ResultSource string

// Retrieval sources.
const (
	SourceVector  ResultSource = "vector"
	SourceKeyword ResultSource = "keyword"
)

// RetrievalResult is one ranked hit.
//
// Scores are comparable within a source but not across sources: vector
// results carry a cosine similarity, keyword results a token overlap ratio.
type RetrievalResult struct {
	// ID is the hit identifier (the record id, or the vector store id).
	ID string

	// Score is higher for more relevant results.
	Score float64

	// Source is vector or keyword.
	Source ResultSource

	// RecordID references the KnowledgeRecord, when one is known.
	RecordID string

	// Record is the resolved record, when it exists in the knowledge store.
	Record *KnowledgeRecord

	// Metadata carries snippet fields returned by the vector store.
	Metadata map[string]string
}

// Snippet returns the most useful text for display or prompting.
func (r RetrievalResult) Snippet() string {
	if r.Record != nil {
		if r.Record.PrimaryText != "" {
			return r.Record.PrimaryText + ": " + r.Record.BodyText
		}
		return r.Record.BodyText
	}
	if r.Metadata != nil {
		if t := r.Metadata["text"]; t != "" {
			return t
		}
	}
	return ""
}
