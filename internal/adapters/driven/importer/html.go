package importer

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTitleTag   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	htmlH1Tag      = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	htmlDropBlocks = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
		regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`),
		regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`),
		regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
	}
	htmlBlockBreak = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?/?>`)
	htmlAnyTag     = regexp.MustCompile(`<[^>]+>`)
	htmlSpaces     = regexp.MustCompile(`[ \t\f\v]+`)
)

// htmlTitle returns the <title>, falling back to the first <h1>, or "".
func htmlTitle(content string) string {
	for _, re := range []*regexp.Regexp{htmlTitleTag, htmlH1Tag} {
		if m := re.FindStringSubmatch(content); len(m) > 1 {
			title := strings.TrimSpace(html.UnescapeString(htmlAnyTag.ReplaceAllString(m[1], "")))
			if title != "" {
				return title
			}
		}
	}
	return ""
}

// stripHTML extracts visible text, one block element per line.
func stripHTML(content string) string {
	for _, re := range htmlDropBlocks {
		content = re.ReplaceAllString(content, "")
	}
	content = htmlBlockBreak.ReplaceAllString(content, "\n")
	content = htmlAnyTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = htmlSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
