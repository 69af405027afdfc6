package adaptive

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// SaltLength is the salt length used in passphrase derivation.
	SaltLength = 16

	// KeyLength is the length of derived keys.
	KeyLength = 32

	// MinMasterKeyLength is the shortest master key DeriveSubkey accepts.
	MinMasterKeyLength = 16
)

// KDFParams are the Argon2id cost parameters.
type KDFParams struct {
	Time    uint32 `cbor:"1,keyasint"`
	Memory  uint32 `cbor:"2,keyasint"` // KiB
	Threads uint8  `cbor:"3,keyasint"`
}

// DefaultKDFParams returns the production cost parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}
}

// Validate rejects parameters Argon2id cannot run with.
func (p KDFParams) Validate() error {
	if p.Time == 0 || p.Threads == 0 || p.Memory < 8*uint32(p.Threads) {
		return fmt.Errorf("adaptive: invalid kdf params time=%d memory=%d threads=%d", p.Time, p.Memory, p.Threads)
	}
	return nil
}

// MaxKDFParams returns the largest costs accepted from stored records:
// ten passes over 1 GiB with sixteen lanes.
func MaxKDFParams() KDFParams {
	return KDFParams{Time: 10, Memory: 1 << 20, Threads: 16}
}

// ErrKDFTooCostly is returned when parameters exceed a caller's limit.
var ErrKDFTooCostly = errors.New("adaptive: kdf params exceed limit")

// WithinLimit reports ErrKDFTooCostly if any cost of p exceeds limit.
func (p KDFParams) WithinLimit(limit KDFParams) error {
	if p.Time > limit.Time || p.Memory > limit.Memory || p.Threads > limit.Threads {
		return fmt.Errorf("%w: time=%d memory=%d threads=%d", ErrKDFTooCostly, p.Time, p.Memory, p.Threads)
	}
	return nil
}

// ErrKeyTooShort is returned when a master key is below MinMasterKeyLength.
var ErrKeyTooShort = errors.New("adaptive: master key too short")

// NewSalt returns SaltLength random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("adaptive: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKeyWithParams derives a KeyLength key with explicit Argon2id costs.
func DeriveKeyWithParams(passphrase, salt []byte, p KDFParams) ([]byte, error) {
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("adaptive: salt must be %d bytes, got %d", SaltLength, len(salt))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, KeyLength), nil
}

// DeriveSubkey derives a purpose-bound subkey from a master key using HKDF.
func DeriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	if len(masterKey) < MinMasterKeyLength {
		return nil, ErrKeyTooShort
	}
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("adaptive: derive subkey: %w", err)
	}
	return key, nil
}

// ZeroKey zeros a key in memory.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
