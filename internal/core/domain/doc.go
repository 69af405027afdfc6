// Package domain defines the core domain models for the channel hierarchy.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - ChannelAddress: the (channel_id, announce_id) identity of a channel
//   - Category: the fixed set of branches below the root
//   - Date: calendar dates keying daily channels
//   - Directory entries: the JSON packets that describe child channels
//   - EncryptedState: the plaintext record behind an exported daily channel
//   - Errors: the hierarchy error taxonomy
package domain
