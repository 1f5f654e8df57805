package utils

import "regexp"

// RedactionMarker replaces any recognized secret in exported text.
const RedactionMarker = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bsk-[a-zA-Z0-9]{20,}\b`),   // OpenAI-style keys
	regexp.MustCompile(`\bghp_[a-zA-Z0-9]{36,}\b`),  // GitHub PATs
	regexp.MustCompile(`\bghs_[a-zA-Z0-9]{36,}\b`),  // GitHub server tokens
	regexp.MustCompile(`\bAKIA[A-Z0-9]{16}\b`),      // AWS access key ids
	regexp.MustCompile(`\b[A-Za-z0-9+/]{40,}={0,2}\b`), // long base64 blobs
}

// Redact replaces API-key-shaped tokens with RedactionMarker. Applied to every
// free-text field before it leaves the local store.
func Redact(text string) string {
	result := text
	for _, p := range secretPatterns {
		result = p.ReplaceAllString(result, RedactionMarker)
	}
	return result
}
