package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompt_CreatesDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")

	got, err := LoadPrompt(dir, PromptSystem, "default prompt")
	require.NoError(t, err)
	assert.Equal(t, "default prompt", got)

	raw, err := os.ReadFile(filepath.Join(dir, "system.txt"))
	require.NoError(t, err)
	assert.Equal(t, "default prompt", string(raw))
}

func TestLoadPrompt_ReadsCustomised(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system.txt"), []byte("  custom prompt \n"), 0o600))

	got, err := LoadPrompt(dir, PromptSystem, "default prompt")
	require.NoError(t, err)
	assert.Equal(t, "custom prompt", got)
}

func TestLoadPrompt_EmptyFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system.txt"), []byte("\n\n"), 0o600))

	got, err := LoadPrompt(dir, PromptSystem, "default prompt")
	require.NoError(t, err)
	assert.Equal(t, "default prompt", got)
}

func TestLoadPrompt_UnwritableDirectory(t *testing.T) {
	got, err := LoadPrompt("/invalid\x00dir", PromptSystem, "fallback")
	assert.Error(t, err)
	assert.Equal(t, "fallback", got)
}
