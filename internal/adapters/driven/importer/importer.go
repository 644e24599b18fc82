// Package importer turns local Markdown, HTML and plain text files into
// knowledge record drafts.
package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/emma/internal/core/domain"
)

// MaxFileSize bounds imported files.
const MaxFileSize = 1 << 20

// Format is the markup a file is parsed as.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// FormatFor picks a format from the file extension. Unknown extensions are
// treated as plain text.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	default:
		return FormatText
	}
}

// ReadFile loads path and converts it into a document record draft. The
// draft has no id; the retrieval service assigns one when it is added.
func ReadFile(path string) (domain.KnowledgeRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.KnowledgeRecord{}, err
	}
	if info.Size() > MaxFileSize {
		return domain.KnowledgeRecord{}, fmt.Errorf("%w: %s is larger than %d bytes",
			domain.ErrInvalidInput, path, MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.KnowledgeRecord{}, err
	}
	return Parse(path, FormatFor(path), string(data))
}

// Parse converts content into a record draft. name is used for the title
// when the content does not carry one.
func Parse(name string, format Format, content string) (domain.KnowledgeRecord, error) {
	var title, body string
	switch format {
	case FormatMarkdown:
		title, body = markdownTitle(content), stripMarkdown(content)
	case FormatHTML:
		title, body = htmlTitle(content), stripHTML(content)
	default:
		body = strings.TrimSpace(content)
	}
	if title == "" {
		title = titleFromName(name)
	}
	if body == "" {
		return domain.KnowledgeRecord{}, fmt.Errorf("%w: %s has no text", domain.ErrInvalidInput, name)
	}

	return domain.KnowledgeRecord{
		Kind:        domain.KindDocument,
		PrimaryText: title,
		BodyText:    body,
		Tags:        []string{string(format)},
	}, nil
}

// titleFromName turns "repeat-prescriptions_guide.md" into "repeat prescriptions guide".
func titleFromName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}
