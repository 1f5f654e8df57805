package utils

import (
	"regexp"
	"strings"
)

// LLMs emit almost-JSON often enough that a cheap repair pass is worth more
// than a retry. These fixes are conservative: each targets one well-known
// failure shape and leaves valid JSON untouched.
var (
	// "value" \n "key": -> "value", "key":
	missingCommaAfterStringRe = regexp.MustCompile(`(")\s*\n\s*("[\w][^"]*"\s*:)`)
	// 42 \n "key": (also true/false/null) -> 42, "key":
	missingCommaAfterScalarRe = regexp.MustCompile(`(\d|true|false|null)\s*\n\s*("[\w][^"]*"\s*:)`)
	// } \n "key -> }, "key
	missingCommaAfterCloseRe = regexp.MustCompile(`([}\]])\s*\n?\s*("[\w])`)
	// {"a": 1,} -> {"a": 1}
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	// {'key': -> {"key":
	singleQuoteKeyRe = regexp.MustCompile(`([{,]\s*)'(\w+)'(\s*:)`)
	// : 'value' -> : "value"
	singleQuoteValueRe = regexp.MustCompile(`(:\s*)'((?:[^'\\]|\\.)*)'(\s*[,}\]])`)
)

// RepairJSON fixes the malformed JSON shapes LLMs commonly produce: trailing
// commas, single-quoted keys or values, missing commas between members, and
// raw control characters inside strings.
func RepairJSON(input string) string {
	out := sanitizeControlChars(input)
	out = missingCommaAfterStringRe.ReplaceAllString(out, `$1,$2`)
	out = missingCommaAfterScalarRe.ReplaceAllString(out, `$1,$2`)
	out = missingCommaAfterCloseRe.ReplaceAllString(out, `$1,$2`)
	out = singleQuoteKeyRe.ReplaceAllString(out, `$1"$2"$3`)
	out = singleQuoteValueRe.ReplaceAllString(out, `$1"$2"$3`)
	out = trailingCommaRe.ReplaceAllString(out, `$1`)
	return out
}

// sanitizeControlChars escapes raw newlines and tabs inside JSON string
// literals. Tracks string/escape state character by character since a regex
// cannot tell inside from outside a string.
func sanitizeControlChars(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	inString := false
	escaped := false
	for _, r := range input {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch {
		case inString && r == '\\':
			b.WriteRune(r)
			escaped = true
		case r == '"':
			b.WriteRune(r)
			inString = !inString
		case inString && r == '\n':
			b.WriteString(`\n`)
		case inString && r == '\r':
			b.WriteString(`\r`)
		case inString && r == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
