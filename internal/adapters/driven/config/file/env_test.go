package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EMMA_TEST_FROM_DOTENV=loaded\nEMMA_TEST_PRESET=dotenv\n"), 0o600))
	t.Setenv("EMMA_TEST_PRESET", "process")
	t.Cleanup(func() { _ = os.Unsetenv("EMMA_TEST_FROM_DOTENV") })

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, "loaded", os.Getenv("EMMA_TEST_FROM_DOTENV"))
	assert.Equal(t, "process", os.Getenv("EMMA_TEST_PRESET"))
}

func TestLoadEnv_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("this is not = \"closed\n"), 0o600))

	assert.Error(t, LoadEnv(path))
}

func TestApplyEnv(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set(KeySafetyThreshold, 0.8))

	env := map[string]string{
		"OPENAI_API_KEY":        "sk-env",
		"EMMA_SAFETY_THRESHOLD": "0.6",
		"PINECONE_API_KEY":      "",
	}
	ApplyEnv(store, func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	})

	assert.Equal(t, "sk-env", store.GetString(KeyOpenAIAPIKey))
	assert.InDelta(t, 0.6, store.GetFloat(KeySafetyThreshold), 1e-9)
	_, ok := store.Get(KeyPineconeAPIKey)
	assert.False(t, ok, "empty variables are ignored")
}
