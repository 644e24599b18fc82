package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		score    float64
		expected RiskLevel
	}{
		{1.0, RiskLow},
		{0.95, RiskLow},
		{0.9, RiskLow},
		{0.89, RiskMedium},
		{0.7, RiskMedium},
		{0.69, RiskHigh},
		{0.5, RiskHigh},
		{0.49, RiskCritical},
		{0.3, RiskCritical},
		{0.0, RiskCritical},
	}

	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, RiskLevelFor(tt.score))
		})
	}
}

func TestRetrievalResult_Snippet(t *testing.T) {
	withRecord := RetrievalResult{Record: &KnowledgeRecord{PrimaryText: "Q", BodyText: "A"}}
	assert.Equal(t, "Q: A", withRecord.Snippet())

	bodyOnly := RetrievalResult{Record: &KnowledgeRecord{BodyText: "A"}}
	assert.Equal(t, "A", bodyOnly.Snippet())

	fromMeta := RetrievalResult{Metadata: map[string]string{"text": "remote"}}
	assert.Equal(t, "remote", fromMeta.Snippet())

	assert.Equal(t, "", RetrievalResult{}.Snippet())
}

func TestKnowledgeKind_IsValid(t *testing.T) {
	assert.True(t, KindFAQ.IsValid())
	assert.True(t, KindGuideline.IsValid())
	assert.True(t, KindDocument.IsValid())
	assert.False(t, KnowledgeKind("note").IsValid())
}

func TestKnowledgeRecord_EmbeddingText(t *testing.T) {
	r := &KnowledgeRecord{PrimaryText: "Title", BodyText: "Body"}
	assert.Equal(t, "Title\nBody", r.EmbeddingText())

	r.PrimaryText = ""
	assert.Equal(t, "Body", r.EmbeddingText())
}
