package digest

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashString returns the hex-encoded SHA-256 of s.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// HashBytes returns the hex-encoded SHA-256 of data.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Equal compares two strings in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Verify reports whether s hashes to expectedHash.
func Verify(s, expectedHash string) bool {
	return Equal(HashString(s), expectedHash)
}

// Prefix returns the first n characters of the hex SHA-256 of s.
// n is clamped to the digest length.
func Prefix(s string, n int) string {
	h := HashString(s)
	if n > len(h) {
		n = len(h)
	}
	return h[:n]
}
