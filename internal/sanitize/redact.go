// Package sanitize scrubs personally identifying or secret-shaped tokens
// from user quotes before they are written to long-term memory.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	apiKeyPattern = regexp.MustCompile(`\b(?:sk|pk|key|tok)[-_][A-Za-z0-9_-]{16,}\b`)
	phonePattern  = regexp.MustCompile(`\b(?:\+?\d[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)
)

// Redact replaces emails, API-key-shaped tokens and phone numbers with
// placeholder markers.
func Redact(text string) string {
	text = emailPattern.ReplaceAllString(text, "[email]")
	text = apiKeyPattern.ReplaceAllString(text, "[key]")
	text = phonePattern.ReplaceAllString(text, "[phone]")
	return strings.TrimSpace(text)
}
