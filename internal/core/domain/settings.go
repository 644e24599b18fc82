package domain

import "time"

const unknownDescription = "Unknown"

// BackendKind classifies how a pluggable backend is provided.
// Selection prefers Remote over Local over None.
type BackendKind string

// Backend kinds.
const (
	BackendNone   BackendKind = "none"
	BackendLocal  BackendKind = "local"
	BackendRemote BackendKind = "remote"
)

// String returns the string representation.
func (k BackendKind) String() string {
	return string(k)
}

// AIProvider identifies an AI service provider for embeddings or responses.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is the Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGemini, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderGemini || p == AIProviderAnthropic
}

// Kind returns whether the provider runs locally or remotely.
func (p AIProvider) Kind() BackendKind {
	switch p {
	case AIProviderOllama:
		return BackendLocal
	case AIProviderOpenAI, AIProviderGemini, AIProviderAnthropic:
		return BackendRemote
	default:
		return BackendNone
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// VectorProvider identifies a vector index backend.
type VectorProvider string

// Available vector providers.
const (
	// VectorProviderPinecone is a remote Pinecone-compatible index.
	VectorProviderPinecone VectorProvider = "pinecone"

	// VectorProviderMemory is the in-process cosine index.
	VectorProviderMemory VectorProvider = "memory"
)

// Kind returns whether the index is local or remote.
func (p VectorProvider) Kind() BackendKind {
	switch p {
	case VectorProviderPinecone:
		return BackendRemote
	case VectorProviderMemory:
		return BackendLocal
	default:
		return BackendNone
	}
}

// OverflowPolicy decides what happens when a conversation is full.
type OverflowPolicy string

// Overflow policies.
const (
	// OverflowReject refuses the write with ErrCapacityExceeded.
	OverflowReject OverflowPolicy = "reject"

	// OverflowTrim drops the oldest half of the history, then appends.
	OverflowTrim OverflowPolicy = "trim"
)

// IsValid returns true if the policy is recognised.
func (p OverflowPolicy) IsValid() bool {
	return p == OverflowReject || p == OverflowTrim
}

// EmbeddingSettings holds configuration for one embedding candidate.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible APIs).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// Dimensions requests a specific vector size where the model supports it.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// GeneratorSettings holds configuration for one response generator candidate.
type GeneratorSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the generator provider is set up.
func (g GeneratorSettings) IsConfigured() bool {
	if !g.Provider.IsValid() || g.Provider == AIProviderGemini {
		return false
	}
	if g.Provider.RequiresAPIKey() && g.APIKey == "" {
		return false
	}
	return true
}

// VectorSettings holds configuration for one vector index candidate.
type VectorSettings struct {
	Provider VectorProvider

	// Host is the index endpoint (Pinecone index host URL).
	Host string

	// APIKey authenticates against a remote index.
	APIKey string

	// IndexName names the remote index.
	IndexName string

	// Namespace partitions vectors within the index.
	Namespace string

	// Dimension is the expected vector length.
	Dimension int
}

// IsConfigured returns true if the vector candidate can be constructed.
func (v VectorSettings) IsConfigured() bool {
	switch v.Provider {
	case VectorProviderMemory:
		return true
	case VectorProviderPinecone:
		return v.APIKey != "" && v.Host != ""
	default:
		return false
	}
}

// AppSettings is the typed view of all runtime configuration.
type AppSettings struct {
	// DataDir holds the SQLite database and config file.
	DataDir string

	SafetyThreshold float64
	TopK            int

	MaxConversationLength int
	MaxSessionDuration    time.Duration
	OverflowPolicy        OverflowPolicy

	// ContextWindow is how many recent messages are sent to the generator.
	ContextWindow int

	// BackendTimeout bounds each embedding or vector call made during retrieval.
	BackendTimeout time.Duration

	// Embeddings is the ordered preference list, most preferred first.
	Embeddings []EmbeddingSettings

	// Vectors is the ordered preference list, most preferred first.
	Vectors []VectorSettings

	// Generators is the ordered preference list, most preferred first.
	Generators []GeneratorSettings

	// ComplianceMode encrypts message content before it is stored.
	ComplianceMode bool
	EncryptionKey  string

	Scheduler SchedulerConfig
}

// Default settings values.
const (
	DefaultTopK                  = 5
	DefaultMaxConversationLength = 100
	DefaultMaxSessionDuration    = 24 * time.Hour
	DefaultContextWindow         = 5
	DefaultBackendTimeout        = 10 * time.Second
	DefaultEmbeddingModel        = "text-embedding-ada-002"
	DefaultVectorIndexName       = "nhs-healthcare"
	DefaultVectorDimension       = 1536
)

// DefaultAppSettings returns settings with every default applied and no
// remote backends configured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		SafetyThreshold:       DefaultSafetyThreshold,
		TopK:                  DefaultTopK,
		MaxConversationLength: DefaultMaxConversationLength,
		MaxSessionDuration:    DefaultMaxSessionDuration,
		OverflowPolicy:        OverflowReject,
		ContextWindow:         DefaultContextWindow,
		BackendTimeout:        DefaultBackendTimeout,
		Vectors: []VectorSettings{
			{Provider: VectorProviderMemory, Dimension: DefaultVectorDimension},
		},
		Scheduler: DefaultSchedulerConfig(),
	}
}
