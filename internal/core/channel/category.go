package channel

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
)

// CategoryManager owns one category channel and the actors published in it.
// Actor channels are opened and imported with the manager's lock released:
// creating marks actor IDs with an open in flight, and syncing is non-nil
// while a directory sync imports actors.
type CategoryManager struct {
	mu       sync.Mutex
	env      *env
	session  backend.Session
	category domain.Category

	// password opens and imports the actor channels of this category.
	password string

	actors   map[string]*ActorManager
	entries  []domain.ActorDirectoryEntry
	pending  map[string]*ActorManager
	creating map[string]chan struct{}
	syncing  chan struct{}
}

func newCategoryManager(e *env, category domain.Category, session backend.Session) *CategoryManager {
	if session == nil {
		session = e.backend.Create(e.endpoint)
	}
	return &CategoryManager{
		env:      e,
		session:  session,
		category: category,
		actors:   make(map[string]*ActorManager),
		pending:  make(map[string]*ActorManager),
		creating: make(map[string]chan struct{}),
	}
}

func (c *CategoryManager) open(ctx context.Context, password string) (domain.ChannelAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	addr, err := c.session.Open(ctx, password)
	if err != nil {
		return domain.ChannelAddress{}, wrapBackend(err, "open category channel %s", c.category.Tag())
	}
	c.password = password
	return addr, nil
}

// importCategoryManager imports the category channel at addr and every
// actor listed in it, all with password.
func importCategoryManager(ctx context.Context, e *env, category domain.Category, addr domain.ChannelAddress, password string) (*CategoryManager, error) {
	start := time.Now()
	session, err := e.backend.ImportFromRemote(ctx, addr, password, e.endpoint)
	if err != nil {
		e.observe(ctx, Event{Kind: EventCategoryImported, Category: category.Tag(), Address: addr, Duration: time.Since(start), Err: err})
		return nil, wrapBackend(err, "import category channel %s", category.Tag())
	}
	c := newCategoryManager(e, category, session)
	c.password = password

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.syncLocked(ctx); err != nil {
		return nil, err
	}
	e.observe(ctx, Event{Kind: EventCategoryImported, Category: category.Tag(), Address: addr, Duration: time.Since(start)})
	return c, nil
}

// syncLocked reads new actor entries from the category log and registers
// them in log order. An entry matching a pending local actor registers that
// actor; any other new entry is imported with c.mu released. Only one sync
// runs at a time.
func (c *CategoryManager) syncLocked(ctx context.Context) error {
	for c.syncing != nil {
		if err := waitUnlocked(ctx, &c.mu, c.syncing); err != nil {
			return wrapBackend(err, "wait for directory sync of %s", c.category.Tag())
		}
	}

	msgs, err := c.session.FetchMessages(ctx)
	if err != nil {
		return wrapBackend(err, "read directory of %s", c.category.Tag())
	}

	type fresh struct {
		entry domain.ActorDirectoryEntry
		actor *ActorManager
	}
	var (
		batch   []fresh
		imports int
	)
	seen := make(map[string]bool)
	for _, m := range msgs {
		if m.Kind != storage.KindSigned {
			continue
		}
		entry, err := domain.DecodeEntry[domain.ActorDirectoryEntry](m.Public)
		if err != nil {
			return domain.ErrBackend.Detailf("malformed actor entry %s in %s", m.ID, c.category.Tag()).WithCause(err)
		}
		if err := entry.Validate(c.category); err != nil {
			return domain.ErrBackend.Detailf("foreign actor entry %s in %s", m.ID, c.category.Tag()).WithCause(err)
		}
		id := domain.NormalizeActorID(entry.ActorID)
		if _, ok := c.actors[id]; ok || seen[id] {
			c.env.observe(ctx, Event{Kind: EventDuplicateEntry, Category: c.category.Tag(), ActorID: id, Address: entry.Address})
			continue
		}
		seen[id] = true

		a, ok := c.pending[id]
		if !ok || !a.Address().Equal(entry.Address) {
			a = nil
			imports++
		}
		batch = append(batch, fresh{entry: entry, actor: a})
	}

	var importErr error
	if imports > 0 {
		done := make(chan struct{})
		c.syncing = done
		password := c.password
		runUnlocked(&c.mu, func() {
			for i := range batch {
				if batch[i].actor != nil {
					continue
				}
				batch[i].actor, importErr = importActorManager(ctx, c.env, c.category, batch[i].entry, password)
				if importErr != nil {
					return
				}
			}
		})
		c.syncing = nil
		close(done)
	}

	for _, f := range batch {
		if f.actor == nil {
			break
		}
		id := domain.NormalizeActorID(f.entry.ActorID)
		c.actors[id] = f.actor
		c.entries = append(c.entries, f.entry)
	}
	return importErr
}

// EnsureActor returns the manager of actorID, creating, opening and
// publishing the actor channel with rootPassword when it does not exist.
func (c *CategoryManager) EnsureActor(ctx context.Context, actorID, rootPassword string) (*ActorManager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureActorLocked(ctx, actorID, rootPassword)
}

func (c *CategoryManager) ensureActorLocked(ctx context.Context, actorID, password string) (*ActorManager, error) {
	id := domain.NormalizeActorID(strings.TrimSpace(actorID))
	if id == "" {
		return nil, domain.ErrValidation.WithDetails("empty actor id")
	}

	synced := false
	for {
		if a, ok := c.actors[id]; ok {
			return a, nil
		}
		if busy, ok := c.creating[id]; ok {
			if err := waitUnlocked(ctx, &c.mu, busy); err != nil {
				return nil, wrapBackend(err, "wait for actor %s in %s", id, c.category.Tag())
			}
			continue
		}
		if synced {
			break
		}
		if err := c.syncLocked(ctx); err != nil {
			return nil, err
		}
		synced = true
	}

	done := make(chan struct{})
	c.creating[id] = done
	defer func() {
		delete(c.creating, id)
		close(done)
	}()

	a := newActorManager(c.env, c.category, id, nil)
	var (
		addr domain.ChannelAddress
		err  error
	)
	runUnlocked(&c.mu, func() {
		addr, err = a.open(ctx, password)
	})
	if err != nil {
		return nil, err
	}
	if _, err := c.session.SendSignedPacket(ctx, domain.NewActorDirectoryEntry(addr, c.category, id)); err != nil {
		return nil, wrapBackend(err, "publish actor entry %s in %s", id, c.category.Tag())
	}

	c.pending[id] = a
	err = c.syncLocked(ctx)
	delete(c.pending, id)
	if err != nil {
		return nil, err
	}

	winner, ok := c.actors[id]
	if !ok {
		return nil, domain.ErrBackend.Detailf("published actor entry %s missing from %s", id, c.category.Tag())
	}
	if winner == a {
		c.env.observe(ctx, Event{Kind: EventActorCreated, Category: c.category.Tag(), ActorID: id, Address: addr})
	}
	return winner, nil
}

func (c *CategoryManager) actorFor(ctx context.Context, actorID string) (*ActorManager, error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureActorLocked(ctx, actorID, c.password)
}

func (c *CategoryManager) requireOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Address().IsZero() {
		return domain.ErrBackend.Detailf("category channel %s is not open", c.category.Tag())
	}
	return nil
}

// DailyChannel returns the daily channel of actorID for date according to
// policy, creating the actor first if needed. The date is checked before
// any backend call.
func (c *CategoryManager) DailyChannel(ctx context.Context, actorID, password string, date domain.Date, policy CreatePolicy) (*DailyChannel, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}
	a, err := c.actorFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return a.DailyChannel(ctx, password, date, policy)
}

// NewDailyChannel creates the daily channel and fails if it exists.
func (c *CategoryManager) NewDailyChannel(ctx context.Context, actorID, password string, date domain.Date) (*DailyChannel, error) {
	return c.DailyChannel(ctx, actorID, password, date, FailIfExists)
}

// GetOrCreateDailyChannel returns the existing daily channel or creates it.
func (c *CategoryManager) GetOrCreateDailyChannel(ctx context.Context, actorID, password string, date domain.Date) (*DailyChannel, error) {
	return c.DailyChannel(ctx, actorID, password, date, CreateOrReuse)
}

// GetDailyChannel returns an existing daily channel. It never creates the
// actor; an unknown actor is domain.ErrNotFound.
func (c *CategoryManager) GetDailyChannel(ctx context.Context, actorID, password string, date domain.Date) (*DailyChannel, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}
	a, err := c.existingActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return a.GetDailyChannel(ctx, password, date)
}

// ReadDailyPublic returns the public payloads of an existing daily channel.
func (c *CategoryManager) ReadDailyPublic(ctx context.Context, actorID string, date domain.Date) ([][]byte, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}
	a, err := c.existingActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return a.ReadDailyPublic(ctx, date)
}

func (c *CategoryManager) existingActor(ctx context.Context, actorID string) (*ActorManager, error) {
	id := domain.NormalizeActorID(strings.TrimSpace(actorID))

	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.actors[id]; ok {
		return a, nil
	}
	if !c.session.Address().IsZero() {
		if err := c.syncLocked(ctx); err != nil {
			return nil, err
		}
	}
	if a, ok := c.actors[id]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound.Detailf("actor %q does not exist in %s", id, c.category.Tag())
}

// Category returns the managed category.
func (c *CategoryManager) Category() domain.Category { return c.category }

// Address returns the category channel address.
func (c *CategoryManager) Address() domain.ChannelAddress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Address()
}

// Actors returns the actor directory entries in publication order.
func (c *CategoryManager) Actors() []domain.ActorDirectoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ActorDirectoryEntry(nil), c.entries...)
}

// Actor returns the manager of actorID if it is known locally.
func (c *CategoryManager) Actor(actorID string) (*ActorManager, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.actors[domain.NormalizeActorID(strings.TrimSpace(actorID))]
	return a, ok
}

// DailyChannelsOf returns the daily directory of actorID, or nil for an
// unknown actor.
func (c *CategoryManager) DailyChannelsOf(actorID string) []domain.DailyDirectoryEntry {
	a, ok := c.Actor(actorID)
	if !ok {
		return nil
	}
	return a.DailyChannels()
}
