package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/emma/internal/core/domain"
)

func TestKnowledgeStore_LoadSeedsEmptyPersistence(t *testing.T) {
	persist := &mockRecordStore{}
	ks := NewKnowledgeStore(persist)

	require.NoError(t, ks.Load(context.Background(), true))

	assert.Equal(t, 8, ks.Len())
	assert.Len(t, persist.records, 8)

	faqs, guidelines := 0, 0
	for _, r := range ks.All() {
		switch r.Kind {
		case domain.KindFAQ:
			faqs++
		case domain.KindGuideline:
			guidelines++
		}
	}
	assert.Equal(t, 5, faqs)
	assert.Equal(t, 3, guidelines)
}

func TestKnowledgeStore_LoadReusesPersistedRecords(t *testing.T) {
	persist := &mockRecordStore{records: []domain.KnowledgeRecord{
		{ID: "doc-1", Kind: domain.KindDocument, BodyText: "Car parking is free after 6pm"},
	}}
	ks := NewKnowledgeStore(persist)

	require.NoError(t, ks.Load(context.Background(), true))

	assert.Equal(t, 1, ks.Len())
	rec, ok := ks.Get("doc-1")
	require.True(t, ok)
	assert.Equal(t, "Car parking is free after 6pm", rec.BodyText)
}

func TestKnowledgeStore_LoadWithoutSeed(t *testing.T) {
	ks := NewKnowledgeStore(&mockRecordStore{})

	require.NoError(t, ks.Load(context.Background(), false))

	assert.Equal(t, 0, ks.Len())
}

func TestKnowledgeStore_LoadListError(t *testing.T) {
	ks := NewKnowledgeStore(&mockRecordStore{listErr: errors.New("locked")})

	assert.Error(t, ks.Load(context.Background(), true))
}

func TestKnowledgeStore_Add(t *testing.T) {
	persist := &mockRecordStore{}
	ks := NewKnowledgeStore(persist)
	ctx := context.Background()

	require.NoError(t, ks.Add(ctx, domain.KnowledgeRecord{ID: "a", BodyText: "text"}))

	err := ks.Add(ctx, domain.KnowledgeRecord{ID: "a", BodyText: "again"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	err = ks.Add(ctx, domain.KnowledgeRecord{ID: "b"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = ks.Add(ctx, domain.KnowledgeRecord{BodyText: "no id"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, 1, ks.Len())
	assert.Len(t, persist.records, 1)
}

func TestKnowledgeStore_AddPersistFailure(t *testing.T) {
	ks := NewKnowledgeStore(&mockRecordStore{appendErr: errors.New("disk full")})

	err := ks.Add(context.Background(), domain.KnowledgeRecord{ID: "a", BodyText: "text"})

	require.Error(t, err)
	assert.Equal(t, 0, ks.Len())
}

func TestKnowledgeStore_KeywordSearch(t *testing.T) {
	ks := seededKnowledge(t)

	t.Run("overlap ratio", func(t *testing.T) {
		hits := ks.KeywordSearch("repeat prescription")
		require.NotEmpty(t, hits)
		assert.Equal(t, "faq-003", hits[0].record.ID)
		assert.InDelta(t, 1.0, hits[0].score, 1e-9)
	})

	t.Run("case folded", func(t *testing.T) {
		lower := ks.KeywordSearch("emergency 999")
		upper := ks.KeywordSearch("EMERGENCY 999")
		assert.Equal(t, len(lower), len(upper))
	})

	t.Run("below floor dropped", func(t *testing.T) {
		// One matching token out of ten is exactly 0.1 and is dropped.
		hits := ks.KeywordSearch("pharmacy q1 q2 q3 q4 q5 q6 q7 q8 q9")
		assert.Empty(t, hits)
	})

	t.Run("no tokens", func(t *testing.T) {
		assert.Empty(t, ks.KeywordSearch("   "))
	})

	t.Run("tags searched", func(t *testing.T) {
		hits := ks.KeywordSearch("waiting times")
		require.NotEmpty(t, hits)
		assert.Equal(t, "guideline-001", hits[0].record.ID)
	})
}

func TestKnowledgeStore_GetReturnsCopy(t *testing.T) {
	ks := seededKnowledge(t)

	rec, ok := ks.Get("faq-001")
	require.True(t, ok)
	rec.BodyText = "changed"

	again, _ := ks.Get("faq-001")
	assert.NotEqual(t, "changed", again.BodyText)

	_, ok = ks.Get("missing")
	assert.False(t, ok)
}
