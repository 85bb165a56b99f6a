// Package fingerprint produces the content hashes used to recognise
// already-imported archives during sync and to spot duplicate notes.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Archive returns the SHA-256 hash of the raw archive bytes as a hex string.
// No normalization is applied: two archives are the same only if they are
// byte-identical.
func Archive(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// NoteFields normalizes a note's field values and returns their SHA-256 hash
// as a hex string. Normalization trims whitespace, lowercases, and converts
// CRLF line endings so cosmetic differences don't produce distinct hashes.
func NoteFields(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = normalize(f)
	}

	// Joining with a newline keeps fields separated, preventing accidental
	// joining of words across field boundaries.
	joined := strings.Join(parts, "\n")
	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%x", sum)
}

func normalize(part string) string {
	p := strings.ToLower(part)
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\r\n", "\n")
	return p
}
