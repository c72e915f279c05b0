package detector

import (
	"strings"
	"unicode/utf8"
)

// redactedMarker replaces the hidden part of a secret.
const redactedMarker = "[REDACTED]"

// redact keeps the first keep bytes of secret and replaces the rest.
func redact(secret string, keep int) string {
	if keep <= 0 {
		return redactedMarker
	}
	if len(secret) <= keep {
		// Values no longer than the prefix are hidden completely.
		return redactedMarker
	}
	prefix := secret[:keep]
	for !utf8.ValidString(prefix) && len(prefix) > 0 {
		prefix = prefix[:len(prefix)-1]
	}
	return prefix + "..." + redactedMarker
}

// snippet returns s on one line, cut to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// firstLine returns the first non-empty line of s.
func firstLine(s string) string {
	for line := range strings.Lines(s) {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// looksLikeHTML reports whether body starts like an HTML document.
// Soft-404 pages served with status 200 are usually HTML.
func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 512)])))
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.HasPrefix(head, "<head") ||
		strings.Contains(head, "<body")
}
