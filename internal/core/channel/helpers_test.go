package channel_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/channel"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage/memory"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/telemetry/logger"
	"github.com/lore-lml/bioenpro4to-channel-manager/pkg/crypto/adaptive"
)

const psw = "psw"

var lightKDF = adaptive.KDFParams{Time: 1, Memory: 8 * 1024, Threads: 1}

// countingBackend counts every call that reaches the backend, including
// calls made through the sessions it hands out.
type countingBackend struct {
	backend.Backend

	creates     atomic.Int64
	imports     atomic.Int64
	importBytes atomic.Int64
	attaches    atomic.Int64
	sessionOps  atomic.Int64

	mu        sync.Mutex
	onPublish func(v any)
	onOpen    func()
}

func (b *countingBackend) Create(endpoint string) backend.Session {
	b.creates.Add(1)
	return &countedSession{Session: b.Backend.Create(endpoint), b: b}
}

func (b *countingBackend) ImportFromRemote(ctx context.Context, addr domain.ChannelAddress, password, endpoint string) (backend.Session, error) {
	b.imports.Add(1)
	s, err := b.Backend.ImportFromRemote(ctx, addr, password, endpoint)
	if err != nil {
		return nil, err
	}
	return &countedSession{Session: s, b: b}, nil
}

func (b *countingBackend) ImportBytes(ctx context.Context, state []byte, password, endpoint string) (backend.Session, error) {
	b.importBytes.Add(1)
	s, err := b.Backend.ImportBytes(ctx, state, password, endpoint)
	if err != nil {
		return nil, err
	}
	return &countedSession{Session: s, b: b}, nil
}

func (b *countingBackend) Attach(ctx context.Context, addr domain.ChannelAddress, endpoint string) (backend.Reader, error) {
	b.attaches.Add(1)
	return b.Backend.Attach(ctx, addr, endpoint)
}

func (b *countingBackend) calls() int64 {
	return b.creates.Load() + b.imports.Load() + b.importBytes.Load() + b.attaches.Load() + b.sessionOps.Load()
}

// setOnPublish installs a hook run once before the next signed packet is
// published through any session of b.
func (b *countingBackend) setOnPublish(fn func(v any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPublish = fn
}

func (b *countingBackend) takeOnPublish() func(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn := b.onPublish
	b.onPublish = nil
	return fn
}

// setOnOpen installs a hook run once before the next channel is opened
// through any session of b.
func (b *countingBackend) setOnOpen(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onOpen = fn
}

func (b *countingBackend) takeOnOpen() func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn := b.onOpen
	b.onOpen = nil
	return fn
}

type countedSession struct {
	backend.Session
	b *countingBackend
}

func (s *countedSession) Open(ctx context.Context, password string) (domain.ChannelAddress, error) {
	s.b.sessionOps.Add(1)
	if fn := s.b.takeOnOpen(); fn != nil {
		fn()
	}
	return s.Session.Open(ctx, password)
}

func (s *countedSession) FetchMessages(ctx context.Context) ([]backend.Message, error) {
	s.b.sessionOps.Add(1)
	return s.Session.FetchMessages(ctx)
}

func (s *countedSession) SendSignedPacket(ctx context.Context, v any) (string, error) {
	s.b.sessionOps.Add(1)
	if fn := s.b.takeOnPublish(); fn != nil {
		fn(v)
	}
	return s.Session.SendSignedPacket(ctx, v)
}

func (s *countedSession) SendSignedRaw(ctx context.Context, public, private []byte, key *backend.SymmetricKey) (string, error) {
	s.b.sessionOps.Add(1)
	return s.Session.SendSignedRaw(ctx, public, private, key)
}

func newClient(ledger *memory.Ledger) *backend.Client {
	return backend.New(backend.SingleLedger(ledger),
		backend.WithKDFParams(lightKDF),
		backend.WithLogger(logger.Discard()))
}

type fixture struct {
	ledger  *memory.Ledger
	backend *countingBackend
	root    *channel.RootManager
	addr    domain.ChannelAddress
}

// newFixture opens a fresh hierarchy on an in-memory ledger.
func newFixture(t *testing.T, opts ...channel.Option) *fixture {
	t.Helper()
	ledger := memory.New()
	b := &countingBackend{Backend: newClient(ledger)}
	opts = append([]channel.Option{channel.WithLogger(logger.Discard())}, opts...)

	root := channel.NewRootManager(b, false, opts...)
	addr, err := root.Open(context.Background(), psw)
	require.NoError(t, err)
	return &fixture{ledger: ledger, backend: b, root: root, addr: addr}
}

// reimport rebuilds the hierarchy from the ledger with a new counting
// backend, as a restarted process would.
func (f *fixture) reimport(t *testing.T, opts ...channel.Option) (*channel.RootManager, *countingBackend) {
	t.Helper()
	b := &countingBackend{Backend: newClient(f.ledger)}
	opts = append([]channel.Option{channel.WithLogger(logger.Discard())}, opts...)
	root, err := channel.ImportRootFromRemote(context.Background(), b, f.addr, psw, false, opts...)
	require.NoError(t, err)
	return root, b
}

func date(d, m, y int) domain.Date { return domain.NewDate(d, m, y) }

// eventRecorder collects observed event kinds.
type eventRecorder struct {
	mu     sync.Mutex
	events []channel.Event
}

func (r *eventRecorder) Observe(_ context.Context, ev channel.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) count(kind channel.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// failed returns the observed events of kind that carry an error.
func (r *eventRecorder) failed(kind channel.EventKind) []channel.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []channel.Event
	for _, ev := range r.events {
		if ev.Kind == kind && ev.Err != nil {
			out = append(out, ev)
		}
	}
	return out
}

// within runs fn in its own goroutine and reports whether it returned
// before timeout.
func within(timeout time.Duration, fn func()) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
