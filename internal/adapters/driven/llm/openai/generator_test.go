package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/emma/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGenerator(Config{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Limiter: ratelimit.NewWithConfig(ratelimit.Config{RequestsPerSecond: 1000, BurstSize: 100}),
	})
	require.NoError(t, err)
	return g
}

func TestNewGenerator(t *testing.T) {
	_, err := NewGenerator(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	g, err := NewGenerator(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.ModelName())
	assert.Equal(t, DefaultMaxTokens, g.maxTokens)
	assert.InDelta(t, DefaultTemperature, g.temperature, 1e-9)
	assert.NoError(t, g.Close())
}

func TestGenerator_Generate(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, []chatMessage{
			{Role: "system", Content: "be careful"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "book an appointment"},
		}, req.Messages)
		assert.Equal(t, 1000, req.MaxTokens)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Use the NHS app."}}]}`))
	})

	out, err := g.Generate(context.Background(), "be careful", []driven.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}, "book an appointment")
	require.NoError(t, err)
	assert.Equal(t, "Use the NHS app.", out)
}

func TestGenerator_Generate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "bad key"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"bad json", http.StatusOK, `not json`, "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := g.Generate(context.Background(), "", nil, "hi")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrGeneratorUnavailable)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestGenerator_Generate_RateLimited(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := g.Generate(context.Background(), "", nil, "hi")
	assert.ErrorIs(t, err, domain.ErrGeneratorUnavailable)
	assert.False(t, g.limiter.Allow())
}

func TestGenerator_Ping(t *testing.T) {
	ok := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, ok.Ping(context.Background()))

	bad := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.ErrorIs(t, bad.Ping(context.Background()), domain.ErrGeneratorUnavailable)
}
