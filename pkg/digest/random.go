package digest

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomBytes returns length cryptographically secure random bytes.
func RandomBytes(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomString returns length random bytes encoded as Base64 RawURL.
func RandomString(length int) (string, error) {
	b, err := RandomBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
