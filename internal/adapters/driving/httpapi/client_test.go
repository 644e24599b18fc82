package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/services"
)

func TestClient(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conv, err := f.conversations.StartConversation("s1", "", nil)
	require.NoError(t, err)
	_, err = f.conversations.AddMessage(conv.ID, domain.RoleUser, "Can I book a flu jab?", nil, nil)
	require.NoError(t, err)

	client := NewClient(ts.URL+"/", nil)
	ctx := context.Background()

	t.Run("export", func(t *testing.T) {
		export, err := client.Export(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, export.ConversationID)
		require.Len(t, export.Messages, 1)
		assert.Equal(t, "Can I book a flu jab?", export.Messages[0].Content)
	})

	t.Run("export unknown id", func(t *testing.T) {
		_, err := client.Export(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := client.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalConversations)
		assert.Equal(t, 1, stats.TotalMessages)
		assert.False(t, stats.LastCleanup.IsZero())
	})

	t.Run("cleanup", func(t *testing.T) {
		res, err := client.Cleanup(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.CleanupResult{}, res)
	})
}

func TestClient_CleanupReapsOnServer(t *testing.T) {
	conversations := services.NewConversationService(services.ConversationConfig{MaxSessionDuration: time.Nanosecond})
	_, err := conversations.StartConversation("old", "", nil)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	server, err := NewServer(Services{Chat: &mockChatService{}, Conversations: conversations})
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	res, err := NewClient(ts.URL, nil).Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CleanupResult{SessionsRemoved: 1, ConversationsRemoved: 1}, res)
	assert.Equal(t, 0, conversations.Statistics().TotalConversations)
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	_, err := NewClient(url, nil).Stats(context.Background())
	assert.ErrorIs(t, err, ErrServerUnreachable)
}

func TestClient_Unavailable(t *testing.T) {
	server, err := NewServer(Services{Chat: &mockChatService{}})
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	_, err = NewClient(ts.URL, nil).Stats(context.Background())
	assert.ErrorIs(t, err, errUnavailable)
}
