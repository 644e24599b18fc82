package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/emma/internal/core/domain"
)

func TestKnowledgeRecordStore_AppendListDelete(t *testing.T) {
	store := NewKnowledgeRecordStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, &domain.KnowledgeRecord{
			ID: id, Kind: domain.KindFAQ, BodyText: "body " + id,
			Tags: []string{"t"}, Embedding: []float32{1},
		}))
	}

	assert.ErrorIs(t, store.Append(ctx, &domain.KnowledgeRecord{ID: "a"}), domain.ErrAlreadyExists)
	assert.ErrorIs(t, store.Append(ctx, nil), domain.ErrInvalidInput)

	require.NoError(t, store.Delete(ctx, "b"))
	require.NoError(t, store.Delete(ctx, "missing"))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "c", records[1].ID)
	assert.Nil(t, records[0].Embedding)

	// Index positions are rebuilt after a delete.
	require.NoError(t, store.Delete(ctx, "c"))
	records, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)
}

func TestKnowledgeRecordStore_ReturnsCopies(t *testing.T) {
	store := NewKnowledgeRecordStore()
	ctx := context.Background()

	rec := &domain.KnowledgeRecord{ID: "a", Kind: domain.KindFAQ, BodyText: "x", Tags: []string{"orig"}}
	require.NoError(t, store.Append(ctx, rec))
	rec.Tags[0] = "mutated"

	records, err := store.List(ctx)
	require.NoError(t, err)
	records[0].Tags[0] = "also mutated"

	records, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orig"}, records[0].Tags)
}
