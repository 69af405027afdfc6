package backend

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/telemetry/logger"
	"github.com/lore-lml/bioenpro4to-channel-manager/pkg/crypto/adaptive"
)

// Client is the ledger-backed Backend.
type Client struct {
	resolver Resolver
	logger   logger.Logger
	kdf      adaptive.KDFParams
	now      func() time.Time

	rps   float64
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithKDFParams sets the Argon2id costs used when sealing author state.
// Sealed records carry their own costs; a record sealed with other costs is
// resealed with these after a successful ImportFromRemote.
func WithKDFParams(p adaptive.KDFParams) Option {
	return func(c *Client) {
		c.kdf = p
	}
}

// WithRateLimit throttles ledger requests per endpoint. rps <= 0 disables
// throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.rps = rps
		c.burst = burst
	}
}

// WithClock overrides the time source for message timestamps and IDs.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a Client over resolver.
func New(resolver Resolver, opts ...Option) *Client {
	c := &Client{
		resolver: resolver,
		logger:   logger.Default(),
		kdf:      adaptive.DefaultKDFParams(),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.burst < 1 {
		c.burst = 1
	}
	return c
}

// link is a resolved ledger plus its throttle.
type link struct {
	ledger  storage.Ledger
	limiter *rate.Limiter
}

func (l link) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return domain.ErrBackend.WithDetails("request throttled").WithCause(err)
	}
	return nil
}

func (c *Client) link(endpoint string) (link, error) {
	l, err := c.resolver.Ledger(endpoint)
	if err != nil {
		return link{}, backendErr("resolve endpoint", err)
	}
	if c.rps <= 0 {
		return link{ledger: l}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[endpoint]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.rps), c.burst)
		c.limiters[endpoint] = lim
	}
	return link{ledger: l, limiter: lim}, nil
}

func (c *Client) newID() string {
	return ulid.MustNew(ulid.Timestamp(c.now()), rand.Reader).String()
}

// backendErr wraps infrastructure failures as domain.ErrBackend. Domain
// errors pass through unchanged.
func backendErr(op string, err error) error {
	if domain.IsDomainError(err, "") {
		return err
	}
	return domain.ErrBackend.WithDetails(op).WithCause(err)
}

func (c *Client) getRecord(ctx context.Context, ln link, addr domain.ChannelAddress) (storage.ChannelRecord, error) {
	if err := ln.wait(ctx); err != nil {
		return storage.ChannelRecord{}, err
	}
	rec, err := ln.ledger.GetChannel(ctx, addr.ChannelID)
	if err != nil {
		if errors.Is(err, storage.ErrChannelNotFound) {
			return storage.ChannelRecord{}, domain.ErrBackend.Detailf("channel %s not found", addr.ChannelID)
		}
		return storage.ChannelRecord{}, backendErr("get channel", err)
	}
	if rec.AnnounceID != addr.AnnounceID {
		return storage.ChannelRecord{}, domain.ErrBackend.Detailf("channel %s: announce %s not found", addr.ChannelID, addr.AnnounceID)
	}
	return rec, nil
}

// Create returns an unopened session.
func (c *Client) Create(endpoint string) Session {
	return &session{client: c, endpoint: endpoint}
}

// ImportFromRemote rebuilds the author session of an existing channel.
func (c *Client) ImportFromRemote(ctx context.Context, addr domain.ChannelAddress, password, endpoint string) (Session, error) {
	ln, err := c.link(endpoint)
	if err != nil {
		return nil, err
	}
	rec, err := c.getRecord(ctx, ln, addr)
	if err != nil {
		return nil, err
	}

	st, kdf, err := openState(rec.SealedState, password, rec.ID)
	if err != nil {
		return nil, domain.ErrAuth.Detailf("channel %s", rec.ID).WithCause(err)
	}
	priv, err := keyFromState(st, rec)
	if err != nil {
		return nil, err
	}
	if kdf != c.kdf {
		c.reseal(ctx, ln, st, password, kdf)
	}

	c.logger.Debug("channel imported", "channel_id", rec.ID, "endpoint", endpoint)
	return &session{
		reader:   reader{link: ln, addr: addr, pub: rec.PublicKey},
		client:   c,
		endpoint: endpoint,
		priv:     priv,
	}, nil
}

// reseal rewrites a channel's on-ledger author state with the client's
// current costs. Failures are logged; the import itself has succeeded.
func (c *Client) reseal(ctx context.Context, ln link, st authorState, password string, old adaptive.KDFParams) {
	log := c.logger.WithContext(ctx).With("channel_id", st.ChannelID)
	sealed, err := sealState(st, password, c.kdf)
	if err == nil {
		if err = ln.wait(ctx); err == nil {
			err = ln.ledger.UpdateState(ctx, st.ChannelID, sealed)
		}
	}
	if err != nil {
		log.Warn("reseal author state failed", "error", err)
		return
	}
	log.Debug("author state resealed", "old_time", old.Time, "old_memory_kib", old.Memory)
}

// ImportBytes rebuilds a session from ExportBytes output.
func (c *Client) ImportBytes(ctx context.Context, state []byte, password, endpoint string) (Session, error) {
	if len(state) > maxSealedLength {
		return nil, domain.ErrAuth.Detailf("session bytes too large: %d", len(state))
	}
	var env exportEnvelope
	if err := sealDec.Unmarshal(state, &env); err != nil {
		return nil, domain.ErrAuth.WithDetails("malformed session bytes").WithCause(err)
	}
	st, _, err := openState(env.Sealed, password, env.ChannelID)
	if err != nil {
		return nil, domain.ErrAuth.Detailf("channel %s", env.ChannelID).WithCause(err)
	}

	ln, err := c.link(endpoint)
	if err != nil {
		return nil, err
	}
	addr := domain.NewChannelAddress(st.ChannelID, st.AnnounceID)
	rec, err := c.getRecord(ctx, ln, addr)
	if err != nil {
		return nil, err
	}
	priv, err := keyFromState(st, rec)
	if err != nil {
		return nil, err
	}

	return &session{
		reader:   reader{link: ln, addr: addr, pub: rec.PublicKey, cursor: st.Cursor},
		client:   c,
		endpoint: endpoint,
		priv:     priv,
	}, nil
}

// Attach returns a read-only subscriber.
func (c *Client) Attach(ctx context.Context, addr domain.ChannelAddress, endpoint string) (Reader, error) {
	ln, err := c.link(endpoint)
	if err != nil {
		return nil, err
	}
	rec, err := c.getRecord(ctx, ln, addr)
	if err != nil {
		return nil, err
	}
	return &reader{link: ln, addr: addr, pub: rec.PublicKey}, nil
}

func keyFromState(st authorState, rec storage.ChannelRecord) (ed25519.PrivateKey, error) {
	if len(st.Seed) != ed25519.SeedSize {
		return nil, domain.ErrAuth.Detailf("channel %s: malformed seed", rec.ID)
	}
	priv := ed25519.NewKeyFromSeed(st.Seed)
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), rec.PublicKey) {
		return nil, domain.ErrAuth.Detailf("channel %s: key mismatch", rec.ID)
	}
	return priv, nil
}

// OpenPrivate decrypts the private payload of a raw packet sent with key.
func OpenPrivate(key *SymmetricKey, private []byte) ([]byte, error) {
	c, err := adaptive.NewXChaCha20(key.Key[:])
	if err != nil {
		return nil, err
	}
	plain, err := c.Open(key.Nonce[:], private, nil)
	if err != nil {
		return nil, domain.ErrCrypto.WithDetails("private payload").WithCause(err)
	}
	return plain, nil
}

// reader implements Reader.
type reader struct {
	link
	addr   domain.ChannelAddress
	pub    ed25519.PublicKey
	cursor uint64
}

func (r *reader) Address() domain.ChannelAddress {
	return r.addr
}

func (r *reader) FetchMessages(ctx context.Context) ([]Message, error) {
	if r.ledger == nil {
		return nil, domain.ErrBackend.WithDetails("channel not open")
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	msgs, err := r.ledger.Messages(ctx, r.addr.ChannelID, r.cursor)
	if err != nil {
		return nil, backendErr("fetch messages", err)
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !verify(r.pub, r.addr.ChannelID, m) {
			return nil, domain.ErrBackend.Detailf("channel %s: message %s has a bad signature", r.addr.ChannelID, m.ID)
		}
		if m.Kind == storage.KindAnnounce {
			continue
		}
		out = append(out, Message{
			ID:        m.ID,
			Seq:       m.Seq,
			Kind:      m.Kind,
			Public:    m.Public,
			Private:   m.Private,
			Timestamp: time.UnixMilli(m.Timestamp).UTC(),
		})
	}
	if len(msgs) > 0 {
		r.cursor = msgs[len(msgs)-1].Seq
	}
	return out, nil
}

// session implements Session.
type session struct {
	reader
	client   *Client
	endpoint string
	priv     ed25519.PrivateKey
}

func (s *session) Open(ctx context.Context, password string) (domain.ChannelAddress, error) {
	if s.priv != nil {
		return domain.ChannelAddress{}, domain.ErrBackend.Detailf("channel %s already open", s.addr.ChannelID)
	}
	ln, err := s.client.link(s.endpoint)
	if err != nil {
		return domain.ChannelAddress{}, err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.ChannelAddress{}, backendErr("generate key", err)
	}
	channelID := hex.EncodeToString(pub)
	announceID := s.client.newID()

	sealed, err := sealState(authorState{
		Seed:       priv.Seed(),
		ChannelID:  channelID,
		AnnounceID: announceID,
	}, password, s.client.kdf)
	if err != nil {
		return domain.ChannelAddress{}, backendErr("seal author state", err)
	}

	if err := ln.wait(ctx); err != nil {
		return domain.ChannelAddress{}, err
	}
	err = ln.ledger.CreateChannel(ctx, storage.ChannelRecord{
		ID:          channelID,
		PublicKey:   pub,
		AnnounceID:  announceID,
		SealedState: sealed,
		CreatedAt:   s.client.now().Unix(),
	})
	if err != nil {
		return domain.ChannelAddress{}, backendErr("create channel", err)
	}

	s.reader = reader{link: ln, addr: domain.NewChannelAddress(channelID, announceID), pub: pub}
	s.priv = priv

	if _, err := s.append(ctx, announceID, storage.KindAnnounce, pub, nil); err != nil {
		return domain.ChannelAddress{}, err
	}

	s.client.logger.Debug("channel opened", "channel_id", channelID, "endpoint", s.endpoint)
	return s.addr, nil
}

func (s *session) append(ctx context.Context, id string, kind storage.MessageKind, public, private []byte) (string, error) {
	if s.priv == nil {
		return "", domain.ErrBackend.WithDetails("channel not open")
	}
	msg := storage.Message{
		ID:        id,
		Kind:      kind,
		Public:    public,
		Private:   private,
		Timestamp: s.client.now().UnixMilli(),
	}
	sign(s.priv, s.addr.ChannelID, &msg)

	if err := s.wait(ctx); err != nil {
		return "", err
	}
	if _, err := s.ledger.Append(ctx, s.addr.ChannelID, msg); err != nil {
		return "", backendErr("append message", err)
	}
	return id, nil
}

func (s *session) SendSignedPacket(ctx context.Context, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", domain.ErrBackend.WithDetails("encode packet").WithCause(err)
	}
	return s.append(ctx, s.client.newID(), storage.KindSigned, payload, nil)
}

func (s *session) SendSignedRaw(ctx context.Context, public, private []byte, key *SymmetricKey) (string, error) {
	if key != nil && len(private) > 0 {
		c, err := adaptive.NewXChaCha20(key.Key[:])
		if err != nil {
			return "", domain.ErrCrypto.WithCause(err)
		}
		if private, err = c.Seal(key.Nonce[:], private, nil); err != nil {
			return "", domain.ErrCrypto.WithDetails("private payload").WithCause(err)
		}
	}
	return s.append(ctx, s.client.newID(), storage.KindRaw, public, private)
}

func (s *session) ExportBytes(password string) ([]byte, error) {
	if s.priv == nil {
		return nil, domain.ErrBackend.WithDetails("channel not open")
	}
	sealed, err := sealState(authorState{
		Seed:       s.priv.Seed(),
		ChannelID:  s.addr.ChannelID,
		AnnounceID: s.addr.AnnounceID,
		Cursor:     s.cursor,
	}, password, s.client.kdf)
	if err != nil {
		return nil, backendErr("seal session", err)
	}
	out, err := sealEnc.Marshal(exportEnvelope{ChannelID: s.addr.ChannelID, Sealed: sealed})
	if err != nil {
		return nil, backendErr("encode session", err)
	}
	return out, nil
}
