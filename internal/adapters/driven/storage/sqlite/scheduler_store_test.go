package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/emma/internal/core/domain"
)

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store := setupTestStore(t).SchedulerStore()
	ctx := context.Background()
	now := time.Now().UTC()

	task := &domain.ScheduledTask{
		ID:          domain.TaskIDConversationCleanup,
		Name:        "Conversation Cleanup",
		Interval:    time.Hour,
		LastRun:     now.Add(-30 * time.Minute),
		NextRun:     now.Add(30 * time.Minute),
		LastSuccess: now.Add(-30 * time.Minute),
		Enabled:     true,
	}
	require.NoError(t, store.SaveTask(ctx, task))

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.Name, got.Name)
	assert.Equal(t, task.Interval, got.Interval)
	assert.True(t, got.Enabled)
	assert.Empty(t, got.LastError)
	assert.True(t, task.LastRun.Equal(got.LastRun))
	assert.True(t, task.NextRun.Equal(got.NextRun))
}

func TestSchedulerStore_GetTask_NotFound(t *testing.T) {
	got, err := setupTestStore(t).SchedulerStore().GetTask(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSchedulerStore_SaveTask_Update(t *testing.T) {
	store := setupTestStore(t).SchedulerStore()
	ctx := context.Background()

	task := &domain.ScheduledTask{ID: "t", Name: "T", Interval: time.Hour, Enabled: true}
	require.NoError(t, store.SaveTask(ctx, task))

	task.Interval = 2 * time.Hour
	task.LastError = "boom"
	task.Enabled = false
	require.NoError(t, store.SaveTask(ctx, task))

	got, err := store.GetTask(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, got.Interval)
	assert.Equal(t, "boom", got.LastError)
	assert.False(t, got.Enabled)
	assert.True(t, got.LastRun.IsZero())
}

func TestSchedulerStore_NilInput(t *testing.T) {
	store := setupTestStore(t).SchedulerStore()

	assert.ErrorIs(t, store.SaveTask(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.RecordResult(context.Background(), nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_History(t *testing.T) {
	store := setupTestStore(t).SchedulerStore()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		result := &domain.TaskResult{
			TaskID:         "cleanup",
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			EndedAt:        base.Add(time.Duration(i)*time.Minute + time.Second),
			Success:        true,
			ItemsProcessed: i,
		}
		if i == 2 {
			result.Success = false
			result.Error = "failed"
		}
		require.NoError(t, store.RecordResult(ctx, result))
	}
	require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{TaskID: "other", StartedAt: base, EndedAt: base}))

	history, err := store.GetTaskHistory(ctx, "cleanup", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 4, history[0].ItemsProcessed)
	assert.Equal(t, 3, history[1].ItemsProcessed)
	assert.False(t, history[2].Success)
	assert.Equal(t, "failed", history[2].Error)
}

func TestSchedulerStore_PruneHistory(t *testing.T) {
	store := setupTestStore(t).SchedulerStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for _, id := range []string{"a", "b"} {
		for i := 0; i < 4; i++ {
			require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
				TaskID:         id,
				StartedAt:      base.Add(time.Duration(i) * time.Second),
				EndedAt:        base.Add(time.Duration(i) * time.Second),
				Success:        true,
				ItemsProcessed: i,
			}))
		}
	}

	require.NoError(t, store.PruneHistory(ctx, 2))

	for _, id := range []string{"a", "b"} {
		history, err := store.GetTaskHistory(ctx, id, 10)
		require.NoError(t, err)
		require.Len(t, history, 2, fmt.Sprintf("task %s", id))
		assert.Equal(t, 3, history[0].ItemsProcessed)
		assert.Equal(t, 2, history[1].ItemsProcessed)
	}
}
