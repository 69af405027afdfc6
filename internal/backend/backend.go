package backend

import (
	"context"
	"time"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
)

// SymmetricKey encrypts the private part of a raw packet.
type SymmetricKey struct {
	Key   [32]byte
	Nonce [24]byte
}

// Message is a verified message read from a channel.
type Message struct {
	ID        string
	Seq       uint64
	Kind      storage.MessageKind
	Public    []byte
	Private   []byte
	Timestamp time.Time
}

// Backend creates, imports and attaches channel sessions.
type Backend interface {
	// Create returns an unopened session bound to endpoint. No I/O.
	Create(endpoint string) Session

	// ImportFromRemote rebuilds the author session of an existing channel.
	// A wrong password or unreadable remote state yields domain.ErrAuth.
	ImportFromRemote(ctx context.Context, addr domain.ChannelAddress, password, endpoint string) (Session, error)

	// ImportBytes rebuilds a session from ExportBytes output.
	ImportBytes(ctx context.Context, state []byte, password, endpoint string) (Session, error)

	// Attach returns a read-only subscriber to a channel.
	Attach(ctx context.Context, addr domain.ChannelAddress, endpoint string) (Reader, error)
}

// Reader reads a channel log.
type Reader interface {
	// Address returns the channel address.
	Address() domain.ChannelAddress

	// FetchMessages returns the messages published since the previous call.
	FetchMessages(ctx context.Context) ([]Message, error)
}

// Session is an author session on one channel. A Session is not safe for
// concurrent use.
type Session interface {
	Reader

	// Open creates the channel and publishes its announce message.
	Open(ctx context.Context, password string) (domain.ChannelAddress, error)

	// SendSignedPacket publishes v, JSON-encoded, as a signed public payload.
	SendSignedPacket(ctx context.Context, v any) (string, error)

	// SendSignedRaw publishes raw payloads. If key is non-nil the private
	// payload is encrypted with it before signing.
	SendSignedRaw(ctx context.Context, public, private []byte, key *SymmetricKey) (string, error)

	// ExportBytes seals the session under password.
	ExportBytes(password string) ([]byte, error)
}
