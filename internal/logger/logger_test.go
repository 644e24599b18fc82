package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	assert.Equal(t, "[DEBUG] test message arg\n", buf.String())
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Info("info message")
	Warn("warn message")
	Section("Retrieval")

	assert.Empty(t, buf.String())
}

func TestLevels_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Info("loaded %d records", 8)
	Warn("embedding failed: %v", "timeout")
	Section("Retrieval")

	out := buf.String()
	assert.Contains(t, out, "[INFO] loaded 8 records\n")
	assert.Contains(t, out, "[WARN] embedding failed: timeout\n")
	assert.Contains(t, out, "[INFO] === Retrieval ===\n")
}

func TestError_AlwaysPrinted(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Error("store unavailable")

	assert.Equal(t, "[ERROR] store unavailable\n", buf.String())
}

func TestL_StructuredFields(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	L().Info("request", zap.String("path", "/api/chat"))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[INFO] request"))
	assert.Contains(t, out, `"path": "/api/chat"`)
}
