package channel

import (
	"context"
	"sync"
	"time"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/statecodec"
)

// DailyChannel is the leaf of the hierarchy: one channel per actor and
// calendar date. Managers hand out shared *DailyChannel pointers; every
// method holds the channel's mutex, so concurrent use of one pointer is
// serialized.
type DailyChannel struct {
	mu       sync.Mutex
	session  backend.Session
	category domain.Category
	actorID  string
	date     domain.Date
	mainnet  bool
}

func newDailyChannel(e *env, category domain.Category, actorID string, date domain.Date) *DailyChannel {
	return &DailyChannel{
		session:  e.backend.Create(e.endpoint),
		category: category,
		actorID:  domain.NormalizeActorID(actorID),
		date:     date,
		mainnet:  e.mainnet,
	}
}

// Open creates the backend channel. Its creation timestamp is midnight UTC
// of the channel's date.
func (d *DailyChannel) Open(ctx context.Context, password string) (domain.ChannelAddress, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	addr, err := d.session.Open(ctx, password)
	if err != nil {
		return domain.ChannelAddress{}, wrapBackend(err, "open daily channel %s/%s %s", d.category.Tag(), d.actorID, d.date)
	}
	return addr, nil
}

// SendRawPacket publishes a signed packet. When key is non-nil the private
// payload is encrypted with it before signing.
func (d *DailyChannel) SendRawPacket(ctx context.Context, public, private []byte, key *backend.SymmetricKey) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := d.session.SendSignedRaw(ctx, public, private, key)
	if err != nil {
		return "", wrapBackend(err, "send packet on %s/%s %s", d.category.Tag(), d.actorID, d.date)
	}
	return id, nil
}

// ExportState serializes the live session together with the channel's
// identity and seals it under password.
func (d *DailyChannel) ExportState(password string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := d.session.ExportBytes(password)
	if err != nil {
		return "", wrapBackend(err, "export session of %s/%s %s", d.category.Tag(), d.actorID, d.date)
	}
	return statecodec.Seal(domain.EncryptedState{
		SessionBytes:      raw,
		Category:          d.category.Tag(),
		ActorID:           d.actorID,
		CreationTimestamp: d.date.Timestamp(),
		Password:          password,
		Mainnet:           d.mainnet,
	}, password)
}

// ImportState rebuilds a daily channel from an ExportState blob. Decoding
// and authentication failures are domain.ErrCrypto; failing to restore the
// session is domain.ErrBackend.
func ImportState(ctx context.Context, b backend.Backend, blob, password string) (*DailyChannel, error) {
	st, err := statecodec.Open(blob, password)
	if err != nil {
		return nil, err
	}
	category, err := domain.ParseCategory(st.Category)
	if err != nil {
		return nil, domain.ErrCrypto.Detailf("state record names unknown category %q", st.Category)
	}

	session, err := b.ImportBytes(ctx, st.SessionBytes, password, backend.Endpoint(st.Mainnet))
	if err != nil {
		return nil, wrapBackend(err, "restore session of %s/%s", category.Tag(), st.ActorID)
	}
	return &DailyChannel{
		session:  session,
		category: category,
		actorID:  domain.NormalizeActorID(st.ActorID),
		date:     domain.DateFromTimestamp(st.CreationTimestamp),
		mainnet:  st.Mainnet,
	}, nil
}

// Category returns the channel's category.
func (d *DailyChannel) Category() domain.Category { return d.category }

// ActorID returns the lowercase actor id.
func (d *DailyChannel) ActorID() string { return d.actorID }

// Date returns the channel's calendar date.
func (d *DailyChannel) Date() domain.Date { return d.date }

// CreationTimestamp returns midnight UTC of the date, in Unix seconds.
func (d *DailyChannel) CreationTimestamp() int64 { return d.date.Timestamp() }

// CreationDate returns the "dd/mm/yyyy" form of the date.
func (d *DailyChannel) CreationDate() string { return d.date.String() }

// CreatedAt returns midnight UTC of the date.
func (d *DailyChannel) CreatedAt() time.Time { return d.date.Midnight() }

// Mainnet reports which network the channel lives on.
func (d *DailyChannel) Mainnet() bool { return d.mainnet }

// Address returns the channel address, or the zero address before Open.
func (d *DailyChannel) Address() domain.ChannelAddress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session.Address()
}

// wrapBackend converts a backend failure into domain.ErrBackend, keeping the
// original error as the cause.
func wrapBackend(err error, format string, args ...any) error {
	if domain.IsBackend(err) {
		return err
	}
	return domain.ErrBackend.Detailf(format, args...).WithCause(err)
}
