// Package backend implements the append-only messaging backend the channel
// hierarchy is built on.
//
// A channel is an ed25519 key pair plus a log on a storage.Ledger. The
// channel ID is the hex public key; the announce ID is the ULID of the
// channel's first message. Every message is signed over its ID, kind and
// payloads, and readers verify each signature before returning it.
//
// The author's signing seed is kept on the ledger sealed under the opening
// password (Argon2id, then AES-GCM), which is what lets a channel be
// re-imported from its address and password alone. ExportBytes produces the
// same kind of sealed record, carrying the read cursor as well, for
// callers that persist sessions themselves.
//
// Endpoints name ledgers. Endpoint(mainnet) picks one of two fixed URLs; a
// Resolver maps a URL to the ledger serving it.
package backend
