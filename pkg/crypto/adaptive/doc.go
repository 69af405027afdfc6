// Package adaptive holds the symmetric crypto used by the channel manager.
//
// AES-256-GCM seals author state under a random nonce. XChaCha20-Poly1305
// serves callers that derive their 24-byte nonce instead of drawing it.
// Passphrases become keys through Argon2id (DeriveKeyWithParams); HKDF
// (DeriveSubkey) splits one derived key into purpose-bound subkeys.
//
// Costs read back from stored records are untrusted: check them against
// MaxKDFParams before deriving.
//
//	c, err := adaptive.NewXChaCha20(key)
//	sealed, err := c.Seal(nonce, plaintext, nil)
//	plaintext, err := c.Open(nonce, sealed, nil)
package adaptive
