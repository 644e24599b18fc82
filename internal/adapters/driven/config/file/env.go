package file

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/emma/internal/logger"
)

// EnvOverrides maps environment variables to the config keys they shadow.
var EnvOverrides = map[string]string{
	"OPENAI_API_KEY":        KeyOpenAIAPIKey,
	"OPENAI_MODEL":          KeyOpenAIModel,
	"ANTHROPIC_API_KEY":     KeyAnthropicAPIKey,
	"GEMINI_API_KEY":        KeyGeminiAPIKey,
	"OLLAMA_HOST":           KeyOllamaBaseURL,
	"PINECONE_API_KEY":      KeyPineconeAPIKey,
	"PINECONE_INDEX_HOST":   KeyPineconeHost,
	"PINECONE_INDEX_NAME":   KeyPineconeIndex,
	"EMMA_ENCRYPTION_KEY":   KeyCryptoKey,
	"EMMA_COMPLIANCE_MODE":  KeyComplianceMode,
	"EMMA_SAFETY_THRESHOLD": KeySafetyThreshold,
	"EMMA_DATA_DIR":         KeyDataDir,
	"TOP_K_RESULTS":         KeyTopK,
}

// LoadEnv reads KEY=VALUE pairs from the given .env files (default ".env")
// into the process environment. Variables already set win. Missing files
// are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		err := godotenv.Load(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		logger.Debug("Loaded environment from %s", p)
	}
	return nil
}

// ApplyEnv copies every set variable in EnvOverrides onto the store as an
// override. lookup defaults to os.LookupEnv.
func ApplyEnv(store *ConfigStore, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for name, key := range EnvOverrides {
		if val, ok := lookup(name); ok && val != "" {
			store.Override(key, val)
		}
	}
}
