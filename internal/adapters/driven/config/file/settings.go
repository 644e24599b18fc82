package file

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

// Configuration keys.
const (
	KeyDataDir = "data_dir"

	KeySafetyThreshold = "safety.threshold"

	KeyTopK           = "retrieval.top_k"
	KeyBackendTimeout = "retrieval.backend_timeout"

	KeyMaxConversationLength = "conversation.max_length"
	KeyMaxSessionDuration    = "conversation.max_session_duration"
	KeyOverflowPolicy        = "conversation.overflow"
	KeyContextWindow         = "conversation.context_window"

	KeyEmbeddingProviders = "embedding.providers"
	KeyEmbeddingDimension = "embedding.dimensions"
	KeyGeneratorProviders = "generator.providers"
	KeyVectorProviders    = "vector.providers"
	KeyVectorDimension    = "vector.dimension"

	KeyOpenAIAPIKey         = "openai.api_key"
	KeyOpenAIBaseURL        = "openai.base_url"
	KeyOpenAIModel          = "openai.model"
	KeyOpenAIEmbeddingModel = "openai.embedding_model"

	KeyAnthropicAPIKey = "anthropic.api_key"
	KeyAnthropicModel  = "anthropic.model"

	KeyGeminiAPIKey         = "gemini.api_key"
	KeyGeminiEmbeddingModel = "gemini.embedding_model"

	KeyOllamaBaseURL        = "ollama.base_url"
	KeyOllamaModel          = "ollama.model"
	KeyOllamaEmbeddingModel = "ollama.embedding_model"

	KeyPineconeAPIKey    = "pinecone.api_key"
	KeyPineconeHost      = "pinecone.host"
	KeyPineconeIndex     = "pinecone.index"
	KeyPineconeNamespace = "pinecone.namespace"

	KeyComplianceMode = "crypto.compliance_mode"
	KeyCryptoKey      = "crypto.key"

	KeySchedulerEnabled = "scheduler.enabled"
	KeyCleanupInterval  = "scheduler.cleanup_interval"
)

// Provider preference lists used when the config names none. Ollama is
// opt-in.
var (
	defaultEmbeddingProviders = []string{"openai", "gemini"}
	defaultGeneratorProviders = []string{"openai", "anthropic"}
	defaultVectorProviders    = []string{"pinecone", "memory"}
)

// LoadSettings builds the typed settings view of store over the defaults.
// Unknown providers in a preference list are skipped.
func LoadSettings(store driven.ConfigStore) domain.AppSettings {
	s := domain.DefaultAppSettings()

	s.DataDir = store.GetString(KeyDataDir)
	if s.DataDir == "" {
		if cs, ok := store.(*ConfigStore); ok {
			s.DataDir = filepath.Join(cs.Dir(), "data")
		}
	}

	if v := store.GetFloat(KeySafetyThreshold); v > 0 && v <= 1 {
		s.SafetyThreshold = v
	}
	if v := store.GetInt(KeyTopK); v > 0 {
		s.TopK = v
	}
	if v := duration(store, KeyBackendTimeout); v > 0 {
		s.BackendTimeout = v
	}

	if v := store.GetInt(KeyMaxConversationLength); v > 0 {
		s.MaxConversationLength = v
	}
	if v := duration(store, KeyMaxSessionDuration); v > 0 {
		s.MaxSessionDuration = v
	}
	if p := domain.OverflowPolicy(strings.ToLower(store.GetString(KeyOverflowPolicy))); p.IsValid() {
		s.OverflowPolicy = p
	}
	if v := store.GetInt(KeyContextWindow); v > 0 {
		s.ContextWindow = v
	}

	s.Embeddings = embeddingCandidates(store)
	s.Generators = generatorCandidates(store)
	s.Vectors = vectorCandidates(store)

	s.ComplianceMode = store.GetBool(KeyComplianceMode)
	s.EncryptionKey = store.GetString(KeyCryptoKey)

	if _, ok := store.Get(KeySchedulerEnabled); ok {
		s.Scheduler.Enabled = store.GetBool(KeySchedulerEnabled)
	}
	if v := duration(store, KeyCleanupInterval); v > 0 {
		s.Scheduler.TaskConfigs[domain.TaskIDConversationCleanup] = domain.TaskConfig{
			Enabled:  true,
			Interval: v,
		}
	}
	return s
}

func preference(store driven.ConfigStore, key string, fallback []string) []string {
	if list := store.GetStringSlice(key); len(list) > 0 {
		return list
	}
	return fallback
}

func embeddingCandidates(store driven.ConfigStore) []domain.EmbeddingSettings {
	dims := store.GetInt(KeyEmbeddingDimension)

	var out []domain.EmbeddingSettings
	for _, name := range preference(store, KeyEmbeddingProviders, defaultEmbeddingProviders) {
		switch domain.AIProvider(strings.ToLower(name)) {
		case domain.AIProviderOpenAI:
			out = append(out, domain.EmbeddingSettings{
				Provider:   domain.AIProviderOpenAI,
				Model:      store.GetString(KeyOpenAIEmbeddingModel),
				BaseURL:    store.GetString(KeyOpenAIBaseURL),
				APIKey:     store.GetString(KeyOpenAIAPIKey),
				Dimensions: dims,
			})
		case domain.AIProviderGemini:
			out = append(out, domain.EmbeddingSettings{
				Provider: domain.AIProviderGemini,
				Model:    store.GetString(KeyGeminiEmbeddingModel),
				APIKey:   store.GetString(KeyGeminiAPIKey),
			})
		case domain.AIProviderOllama:
			out = append(out, domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				Model:    store.GetString(KeyOllamaEmbeddingModel),
				BaseURL:  store.GetString(KeyOllamaBaseURL),
			})
		}
	}
	return out
}

func generatorCandidates(store driven.ConfigStore) []domain.GeneratorSettings {
	var out []domain.GeneratorSettings
	for _, name := range preference(store, KeyGeneratorProviders, defaultGeneratorProviders) {
		switch domain.AIProvider(strings.ToLower(name)) {
		case domain.AIProviderOpenAI:
			out = append(out, domain.GeneratorSettings{
				Provider: domain.AIProviderOpenAI,
				Model:    store.GetString(KeyOpenAIModel),
				BaseURL:  store.GetString(KeyOpenAIBaseURL),
				APIKey:   store.GetString(KeyOpenAIAPIKey),
			})
		case domain.AIProviderAnthropic:
			out = append(out, domain.GeneratorSettings{
				Provider: domain.AIProviderAnthropic,
				Model:    store.GetString(KeyAnthropicModel),
				APIKey:   store.GetString(KeyAnthropicAPIKey),
			})
		case domain.AIProviderOllama:
			out = append(out, domain.GeneratorSettings{
				Provider: domain.AIProviderOllama,
				Model:    store.GetString(KeyOllamaModel),
				BaseURL:  store.GetString(KeyOllamaBaseURL),
			})
		}
	}
	return out
}

func vectorCandidates(store driven.ConfigStore) []domain.VectorSettings {
	dim := store.GetInt(KeyVectorDimension)
	if dim <= 0 {
		dim = domain.DefaultVectorDimension
	}
	index := store.GetString(KeyPineconeIndex)
	if index == "" {
		index = domain.DefaultVectorIndexName
	}

	var out []domain.VectorSettings
	for _, name := range preference(store, KeyVectorProviders, defaultVectorProviders) {
		switch domain.VectorProvider(strings.ToLower(name)) {
		case domain.VectorProviderPinecone:
			out = append(out, domain.VectorSettings{
				Provider:  domain.VectorProviderPinecone,
				Host:      store.GetString(KeyPineconeHost),
				APIKey:    store.GetString(KeyPineconeAPIKey),
				IndexName: index,
				Namespace: store.GetString(KeyPineconeNamespace),
				Dimension: dim,
			})
		case domain.VectorProviderMemory:
			out = append(out, domain.VectorSettings{Provider: domain.VectorProviderMemory, Dimension: dim})
		}
	}
	return out
}

// duration reads a Go duration string, or a bare number of seconds.
func duration(store driven.ConfigStore, key string) time.Duration {
	val, ok := store.Get(key)
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return d
	case int64:
		return time.Duration(v) * time.Second
	case int:
		return time.Duration(v) * time.Second
	default:
		return 0
	}
}
