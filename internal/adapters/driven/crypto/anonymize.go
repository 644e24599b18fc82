package crypto

import "regexp"

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// Phone numbers are redacted before NHS numbers so an 11-digit UK
// number is not read as a 10-digit NHS number.
var redactions = []redaction{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL]"},
	{regexp.MustCompile(`(?:\+44\s?\d{4}|\b0\d{4})\s?\d{6}\b|\b\d{3}-\d{3}-\d{4}\b`), "[PHONE]"},
	{regexp.MustCompile(`\b\d{3}\s\d{3}\s\d{4}\b|\b\d{5}\s*\d{5}\b`), "[NHS_NUMBER]"},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`), "[DATE]"},
	{regexp.MustCompile(`\b[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}\b`), "[POSTCODE]"},
}

// Anonymize replaces e-mail addresses, phone numbers, NHS numbers, dates
// and UK postcodes in text with placeholder tags.
func Anonymize(text string) string {
	for _, r := range redactions {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}
