package file

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/emma/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/emma/internal/core/domain"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s := LoadSettings(memory.NewConfigStore())

	assert.InDelta(t, domain.DefaultSafetyThreshold, s.SafetyThreshold, 1e-9)
	assert.Equal(t, domain.DefaultTopK, s.TopK)
	assert.Equal(t, domain.DefaultMaxConversationLength, s.MaxConversationLength)
	assert.Equal(t, domain.DefaultMaxSessionDuration, s.MaxSessionDuration)
	assert.Equal(t, domain.OverflowReject, s.OverflowPolicy)
	assert.Equal(t, domain.DefaultContextWindow, s.ContextWindow)
	assert.Equal(t, domain.DefaultBackendTimeout, s.BackendTimeout)
	assert.False(t, s.ComplianceMode)
	assert.True(t, s.Scheduler.Enabled)

	require.Len(t, s.Embeddings, 2)
	assert.Equal(t, domain.AIProviderOpenAI, s.Embeddings[0].Provider)
	assert.False(t, s.Embeddings[0].IsConfigured(), "no API key")

	require.Len(t, s.Generators, 2)
	assert.Equal(t, domain.AIProviderAnthropic, s.Generators[1].Provider)

	require.Len(t, s.Vectors, 2)
	assert.Equal(t, domain.VectorProviderPinecone, s.Vectors[0].Provider)
	assert.Equal(t, domain.DefaultVectorIndexName, s.Vectors[0].IndexName)
	assert.Equal(t, domain.DefaultVectorDimension, s.Vectors[1].Dimension)
	assert.True(t, s.Vectors[1].IsConfigured())
}

func TestLoadSettings_FromStore(t *testing.T) {
	store := memory.NewConfigStoreFrom(map[string]any{
		KeyDataDir:               "/data",
		KeySafetyThreshold:       0.7,
		KeyTopK:                  int64(3),
		KeyBackendTimeout:        "2s",
		KeyMaxConversationLength: 50,
		KeyMaxSessionDuration:    "12h",
		KeyOverflowPolicy:        "TRIM",
		KeyContextWindow:         8,
		KeyEmbeddingProviders:    []any{"ollama", "bogus", "gemini"},
		KeyGeneratorProviders:    []string{"anthropic"},
		KeyVectorProviders:       []string{"memory"},
		KeyVectorDimension:       768,
		KeyGeminiAPIKey:          "g-key",
		KeyAnthropicAPIKey:       "a-key",
		KeyAnthropicModel:        "claude-test",
		KeyOllamaBaseURL:         "http://ollama:11434",
		KeyComplianceMode:        true,
		KeyCryptoKey:             "secret",
		KeySchedulerEnabled:      false,
		KeyCleanupInterval:       int64(600),
	})

	s := LoadSettings(store)

	assert.Equal(t, "/data", s.DataDir)
	assert.InDelta(t, 0.7, s.SafetyThreshold, 1e-9)
	assert.Equal(t, 3, s.TopK)
	assert.Equal(t, 2*time.Second, s.BackendTimeout)
	assert.Equal(t, 50, s.MaxConversationLength)
	assert.Equal(t, 12*time.Hour, s.MaxSessionDuration)
	assert.Equal(t, domain.OverflowTrim, s.OverflowPolicy)
	assert.Equal(t, 8, s.ContextWindow)

	require.Len(t, s.Embeddings, 2)
	assert.Equal(t, domain.AIProviderOllama, s.Embeddings[0].Provider)
	assert.Equal(t, "http://ollama:11434", s.Embeddings[0].BaseURL)
	assert.Equal(t, "g-key", s.Embeddings[1].APIKey)

	require.Len(t, s.Generators, 1)
	assert.Equal(t, "claude-test", s.Generators[0].Model)
	assert.True(t, s.Generators[0].IsConfigured())

	require.Len(t, s.Vectors, 1)
	assert.Equal(t, 768, s.Vectors[0].Dimension)

	assert.True(t, s.ComplianceMode)
	assert.Equal(t, "secret", s.EncryptionKey)
	assert.False(t, s.Scheduler.Enabled)
	assert.Equal(t, 10*time.Minute, s.Scheduler.GetTaskConfig(domain.TaskIDConversationCleanup).Interval)
}

func TestLoadSettings_IgnoresOutOfRange(t *testing.T) {
	s := LoadSettings(memory.NewConfigStoreFrom(map[string]any{
		KeySafetyThreshold: 1.5,
		KeyTopK:            -1,
		KeyOverflowPolicy:  "drop",
		KeyBackendTimeout:  "soon",
	}))

	assert.InDelta(t, domain.DefaultSafetyThreshold, s.SafetyThreshold, 1e-9)
	assert.Equal(t, domain.DefaultTopK, s.TopK)
	assert.Equal(t, domain.OverflowReject, s.OverflowPolicy)
	assert.Equal(t, domain.DefaultBackendTimeout, s.BackendTimeout)
}

func TestLoadSettings_DataDirFromConfigStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	s := LoadSettings(store)
	assert.Equal(t, filepath.Join(dir, "data"), s.DataDir)

	store.Override(KeyDataDir, "/override")
	assert.Equal(t, "/override", LoadSettings(store).DataDir)
}
