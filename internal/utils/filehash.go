package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// HashFile returns the first 16 hex characters of the SHA-256 digest of the
// file's bytes, or "" if the file cannot be read. Callers treat "" as "content
// not observable", not as an error.
func HashFile(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:16]
}
