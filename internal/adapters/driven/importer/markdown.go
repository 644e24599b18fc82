package importer

import (
	"regexp"
	"strings"
)

var (
	mdCodeBlock    = regexp.MustCompile("(?s)```.*?```")
	mdInlineCode   = regexp.MustCompile("`([^`]+)`")
	mdImage        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasis     = regexp.MustCompile(`(\*\*|__|\*)([^*_]+)(\*\*|__|\*)`)
	mdBlockquote   = regexp.MustCompile(`(?m)^>\s?`)
	mdRule         = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	mdBullet       = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumbered     = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	mdBlankRuns    = regexp.MustCompile(`\n{3,}`)
	mdFrontMatter  = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	mdTrailingWhit = regexp.MustCompile(`(?m)[ \t]+$`)
)

// markdownTitle returns the first level-one heading, or "".
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

// stripMarkdown reduces Markdown to readable text. Code blocks are dropped;
// inline code keeps its text.
func stripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = mdFrontMatter.ReplaceAllString(content, "")
	content = mdCodeBlock.ReplaceAllString(content, "")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdImage.ReplaceAllString(content, "")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdRule.ReplaceAllString(content, "")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdEmphasis.ReplaceAllString(content, "$2")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdBullet.ReplaceAllString(content, "")
	content = mdNumbered.ReplaceAllString(content, "")
	content = mdTrailingWhit.ReplaceAllString(content, "")
	content = mdBlankRuns.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
