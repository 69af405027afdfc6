// Package statecodec seals and opens the exported state of a daily channel.
//
// The record is CBOR-encoded, sealed with XChaCha20-Poly1305 and rendered as
// Base64 RawURL. The key and nonce are derived from the password alone, so a
// blob can be opened anywhere the password is known:
//
//	key   = hex(sha256(password))[:32]
//	nonce = hex(sha256(key))[:24]
package statecodec

import (
	"encoding/base64"

	"github.com/fxamacker/cbor/v2"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/pkg/crypto/adaptive"
	"github.com/lore-lml/bioenpro4to-channel-manager/pkg/digest"
)

const (
	keyLength   = 32
	nonceLength = 24

	// maxBlobLength bounds the decoded blob accepted by Open. The CBOR
	// decoder has no byte-string limit of its own.
	maxBlobLength = 8 << 20
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// DeriveKey returns the sealing key and nonce for a password.
func DeriveKey(password string) (key, nonce []byte) {
	k := digest.Prefix(password, keyLength)
	return []byte(k), []byte(digest.Prefix(k, nonceLength))
}

func newCipher(password string) (adaptive.Cipher, []byte, error) {
	key, nonce := DeriveKey(password)
	c, err := adaptive.NewXChaCha20(key)
	if err != nil {
		return nil, nil, err
	}
	return c, nonce, nil
}

// Seal encodes and encrypts st under password.
func Seal(st domain.EncryptedState, password string) (string, error) {
	plain, err := encMode.Marshal(st)
	if err != nil {
		return "", domain.ErrCrypto.WithDetails("encode state").WithCause(err)
	}
	c, nonce, err := newCipher(password)
	if err != nil {
		return "", domain.ErrCrypto.WithCause(err)
	}
	sealed, err := c.Seal(nonce, plain, nil)
	if err != nil {
		return "", domain.ErrCrypto.WithDetails("seal state").WithCause(err)
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts and decodes a blob produced by Seal. Every failure, including
// a record whose embedded password differs from password, is a crypto error.
func Open(blob, password string) (domain.EncryptedState, error) {
	var st domain.EncryptedState

	if base64.RawURLEncoding.DecodedLen(len(blob)) > maxBlobLength {
		return st, domain.ErrCrypto.WithDetails("state blob too large")
	}
	sealed, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return st, domain.ErrCrypto.WithDetails("malformed state blob").WithCause(err)
	}
	c, nonce, err := newCipher(password)
	if err != nil {
		return st, domain.ErrCrypto.WithCause(err)
	}
	plain, err := c.Open(nonce, sealed, nil)
	if err != nil {
		return st, domain.ErrCrypto.WithDetails("decryption failed").WithCause(err)
	}
	if err := decMode.Unmarshal(plain, &st); err != nil {
		return domain.EncryptedState{}, domain.ErrCrypto.WithDetails("decode state").WithCause(err)
	}
	if !digest.Equal(st.Password, password) {
		return domain.EncryptedState{}, domain.ErrCrypto.WithDetails("password mismatch")
	}
	return st, nil
}
