package channel

import (
	"context"
	"sync"
	"time"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
)

// RootManager owns the root channel and the three category managers.
type RootManager struct {
	mu         sync.Mutex
	env        *env
	session    backend.Session
	categories [3]*CategoryManager
}

// NewRootManager allocates an unopened hierarchy. It performs no I/O.
func NewRootManager(b backend.Backend, mainnet bool, opts ...Option) *RootManager {
	e := newEnv(b, mainnet, opts)
	r := &RootManager{env: e, session: b.Create(e.endpoint)}
	for _, c := range domain.Categories() {
		r.categories[c] = newCategoryManager(e, c, nil)
	}
	return r
}

// Open opens the three category channels, then the root channel, and
// publishes the category directory into the root. A failure leaves
// already-opened channels in place.
func (r *RootManager) Open(ctx context.Context, password string) (domain.ChannelAddress, error) {
	var dir domain.CategoryDirectory
	for _, c := range domain.Categories() {
		addr, err := r.categories[c].open(ctx, password)
		if err != nil {
			return domain.ChannelAddress{}, err
		}
		switch c {
		case domain.Trucks:
			dir.Trucks = addr
		case domain.Scales:
			dir.Scales = addr
		case domain.BioCells:
			dir.BioCells = addr
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	addr, err := r.session.Open(ctx, password)
	if err != nil {
		return domain.ChannelAddress{}, wrapBackend(err, "open root channel")
	}
	if _, err := r.session.SendSignedPacket(ctx, dir); err != nil {
		return domain.ChannelAddress{}, wrapBackend(err, "publish category directory")
	}
	r.env.observe(ctx, Event{Kind: EventRootOpened, Address: addr})
	return addr, nil
}

// ImportRootFromRemote rebuilds a hierarchy from the root channel at addr.
// The root must hold at least one category directory; when it holds more
// the first wins.
func ImportRootFromRemote(ctx context.Context, b backend.Backend, addr domain.ChannelAddress, password string, mainnet bool, opts ...Option) (*RootManager, error) {
	e := newEnv(b, mainnet, opts)
	start := time.Now()

	session, err := b.ImportFromRemote(ctx, addr, password, e.endpoint)
	if err != nil {
		e.observe(ctx, Event{Kind: EventRootImported, Address: addr, Duration: time.Since(start), Err: err})
		return nil, wrapBackend(err, "import root channel %s", addr)
	}
	msgs, err := session.FetchMessages(ctx)
	if err != nil {
		return nil, wrapBackend(err, "read root channel %s", addr)
	}

	var (
		dir   domain.CategoryDirectory
		found int
	)
	for _, m := range msgs {
		if m.Kind != storage.KindSigned {
			continue
		}
		found++
		if found > 1 {
			e.observe(ctx, Event{Kind: EventDuplicateEntry, Address: addr})
			continue
		}
		if dir, err = domain.DecodeEntry[domain.CategoryDirectory](m.Public); err != nil {
			return nil, domain.ErrBackend.Detailf("malformed category directory in %s", addr).WithCause(err)
		}
		if err := dir.Validate(); err != nil {
			return nil, domain.ErrBackend.Detailf("incomplete category directory in %s", addr).WithCause(err)
		}
	}
	if found == 0 {
		return nil, domain.ErrBackend.Detailf("root channel %s has no category directory", addr)
	}

	r := &RootManager{env: e, session: session}
	for _, c := range domain.Categories() {
		cm, err := importCategoryManager(ctx, e, c, dir.Address(c), password)
		if err != nil {
			return nil, err
		}
		r.categories[c] = cm
	}
	e.observe(ctx, Event{Kind: EventRootImported, Address: addr, Duration: time.Since(start)})
	return r, nil
}

func (r *RootManager) category(c domain.Category) (*CategoryManager, error) {
	if !c.Valid() {
		return nil, domain.ErrValidation.Detailf("unknown category %d", int(c))
	}
	return r.categories[c], nil
}

// Category returns the manager of c, or nil for an invalid category.
func (r *RootManager) Category(c domain.Category) *CategoryManager {
	cm, _ := r.category(c)
	return cm
}

// DailyChannel routes to the category of c. Only that category's lock is
// taken.
func (r *RootManager) DailyChannel(ctx context.Context, c domain.Category, actorID, password string, date domain.Date, policy CreatePolicy) (*DailyChannel, error) {
	cm, err := r.category(c)
	if err != nil {
		return nil, err
	}
	return cm.DailyChannel(ctx, actorID, password, date, policy)
}

// GetOrCreateDailyChannel returns the existing daily channel or creates it,
// creating the actor as well when needed.
func (r *RootManager) GetOrCreateDailyChannel(ctx context.Context, c domain.Category, actorID, password string, date domain.Date) (*DailyChannel, error) {
	return r.DailyChannel(ctx, c, actorID, password, date, CreateOrReuse)
}

// NewDailyChannel creates a daily channel and fails if the date is taken.
func (r *RootManager) NewDailyChannel(ctx context.Context, c domain.Category, actorID, password string, date domain.Date) (*DailyChannel, error) {
	return r.DailyChannel(ctx, c, actorID, password, date, FailIfExists)
}

// GetDailyChannel returns an existing daily channel without creating
// anything.
func (r *RootManager) GetDailyChannel(ctx context.Context, c domain.Category, actorID, password string, date domain.Date) (*DailyChannel, error) {
	cm, err := r.category(c)
	if err != nil {
		return nil, err
	}
	return cm.GetDailyChannel(ctx, actorID, password, date)
}

// ExportDailyChannel resolves an existing daily channel and exports its
// state sealed under password.
func (r *RootManager) ExportDailyChannel(ctx context.Context, c domain.Category, actorID, password string, date domain.Date) (string, error) {
	d, err := r.GetDailyChannel(ctx, c, actorID, password, date)
	if err != nil {
		return "", err
	}
	blob, err := d.ExportState(password)
	if err != nil {
		return "", err
	}
	r.env.observe(ctx, Event{Kind: EventStateExported, Category: c.Tag(), ActorID: d.ActorID(), Date: d.CreationDate()})
	return blob, nil
}

// ImportDailyChannel restores a daily channel from an exported blob using
// the hierarchy's backend.
func (r *RootManager) ImportDailyChannel(ctx context.Context, blob, password string) (*DailyChannel, error) {
	d, err := ImportState(ctx, r.env.backend, blob, password)
	if err != nil {
		return nil, err
	}
	r.env.observe(ctx, Event{Kind: EventStateImported, Category: d.Category().Tag(), ActorID: d.ActorID(), Date: d.CreationDate()})
	return d, nil
}

// ReadDailyPublic returns the public payloads of a daily channel.
func (r *RootManager) ReadDailyPublic(ctx context.Context, c domain.Category, actorID string, date domain.Date) ([][]byte, error) {
	cm, err := r.category(c)
	if err != nil {
		return nil, err
	}
	return cm.ReadDailyPublic(ctx, actorID, date)
}

// Address returns the root channel address.
func (r *RootManager) Address() domain.ChannelAddress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Address()
}

// Mainnet reports the network the hierarchy lives on.
func (r *RootManager) Mainnet() bool { return r.env.mainnet }

// Actors returns the actor directory of category c.
func (r *RootManager) Actors(c domain.Category) []domain.ActorDirectoryEntry {
	cm, err := r.category(c)
	if err != nil {
		return nil
	}
	return cm.Actors()
}

// DailyChannels returns the daily directory of an actor.
func (r *RootManager) DailyChannels(c domain.Category, actorID string) []domain.DailyDirectoryEntry {
	cm, err := r.category(c)
	if err != nil {
		return nil
	}
	return cm.DailyChannelsOf(actorID)
}
