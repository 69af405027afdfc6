package channel

import (
	"context"
	"sync"
	"time"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
	"github.com/lore-lml/bioenpro4to-channel-manager/pkg/digest"
)

type cacheKey struct {
	date   string
	pwHash string
}

// ActorManager owns one actor channel: the directory of its daily channels
// and a cache of the daily channels opened through it. The manager's lock is
// released while a new daily channel is opened; creating marks the dates
// with such an open in flight.
type ActorManager struct {
	mu       sync.Mutex
	env      *env
	session  backend.Session
	category domain.Category
	actorID  string

	entries []domain.DailyDirectoryEntry
	byDate   map[string]int
	cache    map[cacheKey]*DailyChannel
	creating map[string]chan struct{}
}

func newActorManager(e *env, category domain.Category, actorID string, session backend.Session) *ActorManager {
	if session == nil {
		session = e.backend.Create(e.endpoint)
	}
	return &ActorManager{
		env:      e,
		session:  session,
		category: category,
		actorID:  domain.NormalizeActorID(actorID),
		byDate:   make(map[string]int),
		cache:    make(map[cacheKey]*DailyChannel),
		creating: make(map[string]chan struct{}),
	}
}

func (a *ActorManager) open(ctx context.Context, password string) (domain.ChannelAddress, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	addr, err := a.session.Open(ctx, password)
	if err != nil {
		return domain.ChannelAddress{}, wrapBackend(err, "open actor channel %s/%s", a.category.Tag(), a.actorID)
	}
	return addr, nil
}

// importActorManager imports the actor channel listed in entry and loads its
// daily directory. Daily channels themselves are imported on demand.
func importActorManager(ctx context.Context, e *env, category domain.Category, entry domain.ActorDirectoryEntry, password string) (*ActorManager, error) {
	start := time.Now()
	session, err := e.backend.ImportFromRemote(ctx, entry.Address, password, e.endpoint)
	if err != nil {
		e.observe(ctx, Event{Kind: EventActorImported, Category: category.Tag(), ActorID: domain.NormalizeActorID(entry.ActorID), Address: entry.Address, Duration: time.Since(start), Err: err})
		return nil, wrapBackend(err, "import actor channel %s/%s", category.Tag(), entry.ActorID)
	}
	a := newActorManager(e, category, entry.ActorID, session)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.syncLocked(ctx); err != nil {
		return nil, err
	}
	e.observe(ctx, Event{Kind: EventActorImported, Category: category.Tag(), ActorID: a.actorID, Address: entry.Address, Duration: time.Since(start)})
	return a, nil
}

// syncLocked reads new directory entries from the actor channel log. The
// first entry for a date wins; later ones are reported and skipped.
func (a *ActorManager) syncLocked(ctx context.Context) error {
	msgs, err := a.session.FetchMessages(ctx)
	if err != nil {
		return wrapBackend(err, "read directory of %s/%s", a.category.Tag(), a.actorID)
	}
	for _, m := range msgs {
		if m.Kind != storage.KindSigned {
			continue
		}
		entry, err := domain.DecodeEntry[domain.DailyDirectoryEntry](m.Public)
		if err != nil {
			return domain.ErrBackend.Detailf("malformed daily entry %s in %s/%s", m.ID, a.category.Tag(), a.actorID).WithCause(err)
		}
		if err := entry.Validate(a.category, a.actorID); err != nil {
			return domain.ErrBackend.Detailf("foreign daily entry %s in %s/%s", m.ID, a.category.Tag(), a.actorID).WithCause(err)
		}
		date := entry.CreationDate()
		if _, ok := a.byDate[date]; ok {
			a.env.observe(ctx, Event{Kind: EventDuplicateEntry, Category: a.category.Tag(), ActorID: a.actorID, Date: date, Address: entry.Address})
			continue
		}
		a.byDate[date] = len(a.entries)
		a.entries = append(a.entries, entry)
	}
	return nil
}

// lookupLocked finds the entry for date, syncing once on a miss.
func (a *ActorManager) lookupLocked(ctx context.Context, date domain.Date) (domain.DailyDirectoryEntry, bool, error) {
	if i, ok := a.byDate[date.String()]; ok {
		return a.entries[i], true, nil
	}
	if err := a.syncLocked(ctx); err != nil {
		return domain.DailyDirectoryEntry{}, false, err
	}
	i, ok := a.byDate[date.String()]
	if !ok {
		return domain.DailyDirectoryEntry{}, false, nil
	}
	return a.entries[i], true, nil
}

// NewDailyChannel creates, opens and publishes the daily channel for date.
// It fails with domain.ErrDuplicate if the date is already taken, including
// when a concurrent writer published first.
func (a *ActorManager) NewDailyChannel(ctx context.Context, password string, date domain.Date) (*DailyChannel, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok, release, err := a.claimLocked(ctx, date)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, domain.ErrDuplicate.Detailf("daily channel %s already exists for %s/%s", date, a.category.Tag(), a.actorID)
	}
	defer release()
	return a.createLocked(ctx, password, date)
}

// claimLocked waits out any in-flight creation of date, then looks the date
// up. When it is absent the date is claimed for the caller, who must call
// release with a.mu held once the creation is settled.
func (a *ActorManager) claimLocked(ctx context.Context, date domain.Date) (entry domain.DailyDirectoryEntry, ok bool, release func(), err error) {
	key := date.String()
	for {
		busy, inFlight := a.creating[key]
		if !inFlight {
			break
		}
		if err := waitUnlocked(ctx, &a.mu, busy); err != nil {
			return entry, false, nil, wrapBackend(err, "wait for daily channel %s of %s/%s", date, a.category.Tag(), a.actorID)
		}
	}

	entry, ok, err = a.lookupLocked(ctx, date)
	if err != nil || ok {
		return entry, ok, nil, err
	}
	done := make(chan struct{})
	a.creating[key] = done
	return entry, false, func() {
		delete(a.creating, key)
		close(done)
	}, nil
}

// createLocked opens the daily channel with a.mu released, then publishes
// its directory entry. The caller holds the claim on date.
func (a *ActorManager) createLocked(ctx context.Context, password string, date domain.Date) (*DailyChannel, error) {
	d := newDailyChannel(a.env, a.category, a.actorID, date)
	var (
		addr domain.ChannelAddress
		err  error
	)
	runUnlocked(&a.mu, func() {
		addr, err = d.Open(ctx, password)
	})
	if err != nil {
		return nil, err
	}

	entry := domain.NewDailyDirectoryEntry(addr, a.category, a.actorID, date)
	if _, err := a.session.SendSignedPacket(ctx, entry); err != nil {
		return nil, wrapBackend(err, "publish daily entry %s for %s/%s", date, a.category.Tag(), a.actorID)
	}
	if err := a.syncLocked(ctx); err != nil {
		return nil, err
	}
	i, ok := a.byDate[date.String()]
	if !ok {
		return nil, domain.ErrBackend.Detailf("published daily entry %s missing from %s/%s", date, a.category.Tag(), a.actorID)
	}
	if !a.entries[i].Address.Equal(addr) {
		return nil, domain.ErrDuplicate.Detailf("daily channel %s was created concurrently for %s/%s", date, a.category.Tag(), a.actorID)
	}

	a.cache[cacheKey{date: date.String(), pwHash: digest.HashString(password)}] = d
	a.env.observe(ctx, Event{Kind: EventDailyCreated, Category: a.category.Tag(), ActorID: a.actorID, Date: date.String(), Address: addr})
	return d, nil
}

// GetDailyChannel returns the daily channel for date. An unknown date and a
// wrong password yield the same domain.ErrNotFound, with no cause attached.
func (a *ActorManager) GetDailyChannel(ctx context.Context, password string, date domain.Date) (*DailyChannel, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok, err := a.lookupLocked(ctx, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, a.notFound(date)
	}
	return a.getLocked(ctx, password, entry)
}

func (a *ActorManager) notFound(date domain.Date) error {
	return domain.ErrNotFound.Detailf("daily channel %s of %s/%s: unknown date or wrong password", date, a.category.Tag(), a.actorID)
}

func (a *ActorManager) getLocked(ctx context.Context, password string, entry domain.DailyDirectoryEntry) (*DailyChannel, error) {
	date := entry.Date()
	key := cacheKey{date: date.String(), pwHash: digest.HashString(password)}
	ev := Event{Category: a.category.Tag(), ActorID: a.actorID, Date: key.date, Address: entry.Address}

	if d, ok := a.cache[key]; ok {
		ev.Kind = EventCacheHit
		a.env.observe(ctx, ev)
		return d, nil
	}
	ev.Kind = EventCacheMiss
	a.env.observe(ctx, ev)

	start := time.Now()
	session, err := a.env.backend.ImportFromRemote(ctx, entry.Address, password, a.env.endpoint)
	ev.Kind = EventDailyImported
	ev.Duration = time.Since(start)
	if err != nil {
		ev.Err = err
		a.env.observe(ctx, ev)
		return nil, a.notFound(date)
	}

	d := &DailyChannel{
		session:  session,
		category: a.category,
		actorID:  a.actorID,
		date:     date,
		mainnet:  a.env.mainnet,
	}
	a.cache[key] = d
	a.env.observe(ctx, ev)
	return d, nil
}

// DailyChannel returns the daily channel for date according to policy.
func (a *ActorManager) DailyChannel(ctx context.Context, password string, date domain.Date, policy CreatePolicy) (*DailyChannel, error) {
	if policy == FailIfExists {
		return a.NewDailyChannel(ctx, password, date)
	}
	if err := date.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok, release, err := a.claimLocked(ctx, date)
	if err != nil {
		return nil, err
	}
	if ok {
		return a.getLocked(ctx, password, entry)
	}
	defer release()
	return a.createLocked(ctx, password, date)
}

// ReadDailyPublic returns the public payloads published on the daily
// channel of date, in order. It needs no credential.
func (a *ActorManager) ReadDailyPublic(ctx context.Context, date domain.Date) ([][]byte, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	entry, ok, err := a.lookupLocked(ctx, date)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound.Detailf("daily channel %s of %s/%s", date, a.category.Tag(), a.actorID)
	}

	r, err := a.env.backend.Attach(ctx, entry.Address, a.env.endpoint)
	if err != nil {
		return nil, wrapBackend(err, "attach to %s", entry.Address)
	}
	msgs, err := r.FetchMessages(ctx)
	if err != nil {
		return nil, wrapBackend(err, "read %s", entry.Address)
	}
	out := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Public)
	}
	return out, nil
}

// Category returns the actor's category.
func (a *ActorManager) Category() domain.Category { return a.category }

// ActorID returns the lowercase actor id.
func (a *ActorManager) ActorID() string { return a.actorID }

// Address returns the actor channel address.
func (a *ActorManager) Address() domain.ChannelAddress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Address()
}

// DailyChannels returns the known directory entries in publication order.
func (a *ActorManager) DailyChannels() []domain.DailyDirectoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.DailyDirectoryEntry(nil), a.entries...)
}

// Cached returns the number of live daily channels held in the cache.
func (a *ActorManager) Cached() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cache)
}
