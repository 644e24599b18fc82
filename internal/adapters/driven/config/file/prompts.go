package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PromptSystem names the prompt file that frames generated replies.
const PromptSystem = "system"

// LoadPrompt returns the contents of <dir>/<name>.txt. When the file does
// not exist it is created holding fallback, so operators have something to
// edit, and fallback is returned. An empty or whitespace-only file also
// yields fallback.
func LoadPrompt(dir, name, fallback string) (string, error) {
	path := filepath.Join(dir, name+".txt")

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fallback, fmt.Errorf("create prompt directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(fallback), 0o600); err != nil {
			return fallback, fmt.Errorf("write default prompt %q: %w", name, err)
		}
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("read prompt %q: %w", name, err)
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return fallback, nil
	}
	return prompt, nil
}
