// Package digest provides the hashing and randomness helpers shared by the
// channel managers and the state codec.
//
// Hashes are hex-encoded SHA-256. Comparisons against stored hashes are
// constant-time.
package digest
