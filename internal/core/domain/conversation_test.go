package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConversationStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     ConversationStatus
		to       ConversationStatus
		expected bool
	}{
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusEnded, true},
		{StatusActive, StatusActive, false},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusEnded, true},
		{StatusPaused, StatusPaused, false},
		{StatusEnded, StatusActive, false},
		{StatusEnded, StatusPaused, false},
		{StatusEnded, StatusEnded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestDefaultConversationContext(t *testing.T) {
	ctx := DefaultConversationContext()

	assert.Equal(t, "general", ctx.Topic)
	assert.Equal(t, "greeting", ctx.Intent)
	assert.Equal(t, "neutral", ctx.Sentiment)
	assert.NotNil(t, ctx.Entities)
	assert.Empty(t, ctx.Entities)
}

func TestConversation_Clone(t *testing.T) {
	score := 0.9
	orig := &Conversation{
		ID:       "c1",
		Messages: []Message{{ID: "m1", Content: "hi", Metadata: map[string]any{"k": "v"}, SafetyScore: &score}},
		Context:  ConversationContext{Entities: []string{"gp"}},
		Metadata: map[string]any{"platform": "web"},
	}

	clone := orig.Clone()
	clone.Messages[0].Metadata["k"] = "changed"
	*clone.Messages[0].SafetyScore = 0.1
	clone.Context.Entities[0] = "changed"
	clone.Metadata["platform"] = "changed"

	assert.Equal(t, "v", orig.Messages[0].Metadata["k"])
	assert.InDelta(t, 0.9, *orig.Messages[0].SafetyScore, 1e-9)
	assert.Equal(t, "gp", orig.Context.Entities[0])
	assert.Equal(t, "web", orig.Metadata["platform"])
}

func TestSession_Current(t *testing.T) {
	s := &Session{ID: "s1", CreatedAt: time.Now()}
	assert.Equal(t, "", s.Current())

	s.ConversationIDs = []string{"a", "b"}
	assert.Equal(t, "b", s.Current())
}

func TestRole_IsValid(t *testing.T) {
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleAssistant.IsValid())
	assert.False(t, Role("system").IsValid())
}
