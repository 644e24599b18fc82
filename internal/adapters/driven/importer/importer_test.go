package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/emma/internal/core/domain"
)

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"guide.md", FormatMarkdown},
		{"GUIDE.MARKDOWN", FormatMarkdown},
		{"page.html", FormatHTML},
		{"page.htm", FormatHTML},
		{"notes.txt", FormatText},
		{"README", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFor(tt.path))
		})
	}
}

func TestParse_Markdown(t *testing.T) {
	content := strings.Join([]string{
		"---",
		"author: practice",
		"---",
		"# Repeat Prescriptions",
		"",
		"Order through the **NHS App** or [your pharmacy](https://example.org).",
		"",
		"- Allow *two* working days",
		"1. Collect from the `pharmacy`",
		"",
		"```",
		"ignored code",
		"```",
		"> Call 111 if unsure.",
	}, "\n")

	rec, err := Parse("ignored.md", FormatMarkdown, content)

	require.NoError(t, err)
	assert.Equal(t, domain.KindDocument, rec.Kind)
	assert.Equal(t, "Repeat Prescriptions", rec.PrimaryText)
	assert.Contains(t, rec.BodyText, "Order through the NHS App or your pharmacy.")
	assert.Contains(t, rec.BodyText, "Allow two working days")
	assert.Contains(t, rec.BodyText, "Collect from the pharmacy")
	assert.Contains(t, rec.BodyText, "Call 111 if unsure.")
	assert.NotContains(t, rec.BodyText, "ignored code")
	assert.NotContains(t, rec.BodyText, "author")
	assert.NotContains(t, rec.BodyText, "https://")
	assert.Equal(t, []string{"markdown"}, rec.Tags)
}

func TestParse_HTML(t *testing.T) {
	content := `<html><head><title>Opening Hours &amp; Access</title><style>p{}</style></head>
<body><nav>Home | About</nav><h1>Surgery</h1><p>Open 8am&ndash;6pm</p><script>track()</script>
<ul><li>Monday to Friday</li><li>Closed on bank holidays</li></ul></body></html>`

	rec, err := Parse("hours.html", FormatHTML, content)

	require.NoError(t, err)
	assert.Equal(t, "Opening Hours & Access", rec.PrimaryText)
	assert.Equal(t, "Surgery\nOpen 8am–6pm\nMonday to Friday\nClosed on bank holidays", rec.BodyText)
}

func TestParse_HTMLFallsBackToH1(t *testing.T) {
	rec, err := Parse("x.html", FormatHTML, `<h1>Flu <em>Clinics</em></h1><p>Every autumn.</p>`)
	require.NoError(t, err)
	assert.Equal(t, "Flu Clinics", rec.PrimaryText)
}

func TestParse_TextUsesFileName(t *testing.T) {
	rec, err := Parse("/tmp/travel-vaccines_faq.txt", FormatText, "  Book at least 8 weeks before travel.\n")

	require.NoError(t, err)
	assert.Equal(t, "travel vaccines faq", rec.PrimaryText)
	assert.Equal(t, "Book at least 8 weeks before travel.", rec.BodyText)
}

func TestParse_EmptyIsInvalid(t *testing.T) {
	_, err := Parse("empty.md", FormatMarkdown, "```\ncode only\n```\n")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("markdown file", func(t *testing.T) {
		path := filepath.Join(dir, "gp.md")
		require.NoError(t, os.WriteFile(path, []byte("# Registering\n\nAny GP practice can register you."), 0o600))

		rec, err := ReadFile(path)

		require.NoError(t, err)
		assert.Equal(t, "Registering", rec.PrimaryText)
		assert.Equal(t, "Registering\n\nAny GP practice can register you.", rec.BodyText)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(dir, "nope.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("too large", func(t *testing.T) {
		path := filepath.Join(dir, "big.txt")
		require.NoError(t, os.WriteFile(path, make([]byte, MaxFileSize+1), 0o600))

		_, err := ReadFile(path)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
