package storage

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrChannelExists   = errors.New("storage: channel already exists")
	ErrChannelNotFound = errors.New("storage: channel not found")
	ErrClosed          = errors.New("storage: ledger closed")
)

// MessageKind tags a log message.
type MessageKind string

const (
	KindAnnounce MessageKind = "announce"
	KindSigned   MessageKind = "signed"
	KindRaw      MessageKind = "raw"
)

// ChannelRecord describes one channel on the ledger.
type ChannelRecord struct {
	ID          string `cbor:"1,keyasint"`
	PublicKey   []byte `cbor:"2,keyasint"`
	AnnounceID  string `cbor:"3,keyasint"`
	SealedState []byte `cbor:"4,keyasint,omitempty"`
	CreatedAt   int64  `cbor:"5,keyasint"`
}

// Message is one entry of a channel log.
type Message struct {
	Seq       uint64      `cbor:"1,keyasint"`
	ID        string      `cbor:"2,keyasint"`
	Kind      MessageKind `cbor:"3,keyasint"`
	Public    []byte      `cbor:"4,keyasint,omitempty"`
	Private   []byte      `cbor:"5,keyasint,omitempty"`
	Signature []byte      `cbor:"6,keyasint"`
	Timestamp int64       `cbor:"7,keyasint"`
}

// Ledger is the persistence contract for channels.
//
// Implementations must be safe for concurrent use.
type Ledger interface {
	// CreateChannel stores a new channel record.
	// Returns ErrChannelExists if the ID is taken.
	CreateChannel(ctx context.Context, rec ChannelRecord) error

	// GetChannel returns a channel record.
	// Returns ErrChannelNotFound if the channel is unknown.
	GetChannel(ctx context.Context, id string) (ChannelRecord, error)

	// UpdateState replaces the sealed author state of a channel.
	UpdateState(ctx context.Context, id string, sealed []byte) error

	// Append adds msg to the channel log and returns its sequence number.
	// msg.Seq is ignored.
	Append(ctx context.Context, id string, msg Message) (uint64, error)

	// Messages returns the messages with a sequence number above after, in
	// log order.
	Messages(ctx context.Context, id string, after uint64) ([]Message, error)

	// Close releases the ledger.
	Close() error
}
