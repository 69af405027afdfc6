// Package storage provides the append-only ledgers that back channel
// sessions.
//
// A Ledger keeps one record per channel (its public key, announce ID and
// sealed author state) and an ordered log of signed messages per channel.
// Sequence numbers start at 1 and are assigned by Append; the order of the
// log is the order every reader observes.
//
// Implementations:
//
//   - BadgerLedger: embedded Badger v3 store with background value-log GC
//   - JetStreamLedger: NATS JetStream, a KV bucket for records and one
//     subject per channel
//   - memory.Ledger (subpackage): process-local maps, for tests and
//     ephemeral runs
//
// Records and messages are CBOR-encoded on disk and on the wire.
package storage
