package backend_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage/memory"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/telemetry/logger"
	"github.com/lore-lml/bioenpro4to-channel-manager/pkg/crypto/adaptive"
)

var lightKDF = adaptive.KDFParams{Time: 1, Memory: 8 * 1024, Threads: 1}

func newClient(t *testing.T, opts ...backend.Option) (*backend.Client, *memory.Ledger) {
	t.Helper()
	ledger := memory.New()
	opts = append([]backend.Option{backend.WithKDFParams(lightKDF), backend.WithLogger(logger.Discard())}, opts...)
	return backend.New(backend.SingleLedger(ledger), opts...), ledger
}

func openSession(t *testing.T, c *backend.Client, password string) backend.Session {
	t.Helper()
	s := c.Create(backend.DevnetEndpoint)
	_, err := s.Open(context.Background(), password)
	require.NoError(t, err)
	return s
}

func TestEndpoint(t *testing.T) {
	require.Equal(t, "https://chrysalis-nodes.iota.cafe/", backend.Endpoint(true))
	require.Equal(t, "https://api.lb-0.h.chrysalis-devnet.iota.cafe/", backend.Endpoint(false))

	c := backend.New(backend.NewStaticResolver())
	_, err := c.Create("https://elsewhere/").Open(context.Background(), "psw")
	require.True(t, domain.IsBackend(err), "got %v", err)
}

func TestSession_Open(t *testing.T) {
	c, _ := newClient(t)
	s := c.Create(backend.MainnetEndpoint)

	_, err := s.FetchMessages(context.Background())
	require.True(t, domain.IsBackend(err), "fetch before open: %v", err)
	_, err = s.SendSignedPacket(context.Background(), "x")
	require.True(t, domain.IsBackend(err), "send before open: %v", err)

	addr, err := s.Open(context.Background(), "psw")
	require.NoError(t, err)
	require.Len(t, addr.ChannelID, 64)
	require.Len(t, addr.AnnounceID, 26)
	require.True(t, addr.Equal(s.Address()))

	_, err = s.Open(context.Background(), "psw")
	require.True(t, domain.IsBackend(err), "second open: %v", err)
}

func TestSession_SendAndFetch(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	s := openSession(t, c, "psw")

	type packet struct {
		N int `json:"n"`
	}
	for i := 1; i <= 3; i++ {
		_, err := s.SendSignedPacket(ctx, packet{N: i})
		require.NoError(t, err)
	}

	msgs, err := s.FetchMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		require.Equal(t, storage.KindSigned, m.Kind)
		var p packet
		require.NoError(t, json.Unmarshal(m.Public, &p))
		require.Equal(t, i+1, p.N)
	}

	again, err := s.FetchMessages(ctx)
	require.NoError(t, err)
	require.Empty(t, again)

	_, err = s.SendSignedPacket(ctx, packet{N: 4})
	require.NoError(t, err)
	tail, err := s.FetchMessages(ctx)
	require.NoError(t, err)
	require.Len(t, tail, 1)
}

func TestSession_SendSignedRaw(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	s := openSession(t, c, "psw")

	key := &backend.SymmetricKey{}
	copy(key.Key[:], "an example very very secret key.")
	copy(key.Nonce[:], "a nonce of 24 bytes.....")

	_, err := s.SendSignedRaw(ctx, []byte("public"), []byte("private"), key)
	require.NoError(t, err)
	_, err = s.SendSignedRaw(ctx, []byte("plain"), []byte("visible"), nil)
	require.NoError(t, err)

	msgs, err := s.FetchMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.Equal(t, storage.KindRaw, msgs[0].Kind)
	require.Equal(t, "public", string(msgs[0].Public))
	require.NotEqual(t, "private", string(msgs[0].Private))
	plain, err := backend.OpenPrivate(key, msgs[0].Private)
	require.NoError(t, err)
	require.Equal(t, "private", string(plain))

	require.Equal(t, "visible", string(msgs[1].Private))

	wrong := &backend.SymmetricKey{}
	_, err = backend.OpenPrivate(wrong, msgs[0].Private)
	require.True(t, domain.IsCrypto(err))
}

func TestClient_ImportFromRemote(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	s := openSession(t, c, "psw")
	_, err := s.SendSignedPacket(ctx, map[string]string{"k": "v"})
	require.NoError(t, err)

	imported, err := c.ImportFromRemote(ctx, s.Address(), "psw", backend.DevnetEndpoint)
	require.NoError(t, err)
	require.True(t, imported.Address().Equal(s.Address()))

	msgs, err := imported.FetchMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// The imported session can author.
	_, err = imported.SendSignedPacket(ctx, "more")
	require.NoError(t, err)
	msgs, err = s.FetchMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	_, err = c.ImportFromRemote(ctx, s.Address(), "wrong", backend.DevnetEndpoint)
	require.True(t, domain.IsAuth(err), "wrong password: %v", err)

	bad := domain.NewChannelAddress(s.Address().ChannelID, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	_, err = c.ImportFromRemote(ctx, bad, "psw", backend.DevnetEndpoint)
	require.True(t, domain.IsBackend(err), "wrong announce: %v", err)

	_, err = c.ImportFromRemote(ctx, domain.NewChannelAddress("missing", "x"), "psw", backend.DevnetEndpoint)
	require.True(t, domain.IsBackend(err), "missing channel: %v", err)
}

func TestClient_ImportFromRemote_Reseals(t *testing.T) {
	ctx := context.Background()
	older, ledger := newClient(t)
	s := openSession(t, older, "psw")
	id := s.Address().ChannelID

	before, err := ledger.GetChannel(ctx, id)
	require.NoError(t, err)

	stronger := adaptive.KDFParams{Time: 2, Memory: 8 * 1024, Threads: 1}
	newer := backend.New(backend.SingleLedger(ledger), backend.WithKDFParams(stronger), backend.WithLogger(logger.Discard()))
	_, err = newer.ImportFromRemote(ctx, s.Address(), "psw", backend.DevnetEndpoint)
	require.NoError(t, err)

	after, err := ledger.GetChannel(ctx, id)
	require.NoError(t, err)
	require.NotEqual(t, before.SealedState, after.SealedState)

	// Already at the client's costs: nothing to rewrite.
	_, err = newer.ImportFromRemote(ctx, s.Address(), "psw", backend.DevnetEndpoint)
	require.NoError(t, err)
	again, err := ledger.GetChannel(ctx, id)
	require.NoError(t, err)
	require.Equal(t, after.SealedState, again.SealedState)

	// A failed import leaves the record alone.
	_, err = older.ImportFromRemote(ctx, s.Address(), "wrong", backend.DevnetEndpoint)
	require.True(t, domain.IsAuth(err), "wrong password: %v", err)
	again, err = ledger.GetChannel(ctx, id)
	require.NoError(t, err)
	require.Equal(t, after.SealedState, again.SealedState)

	_, err = older.ImportFromRemote(ctx, s.Address(), "psw", backend.DevnetEndpoint)
	require.NoError(t, err)
}

func TestSession_ExportImportBytes(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	s := openSession(t, c, "psw")

	_, err := s.SendSignedPacket(ctx, "first")
	require.NoError(t, err)
	_, err = s.FetchMessages(ctx)
	require.NoError(t, err)

	state, err := s.ExportBytes("export-psw")
	require.NoError(t, err)

	restored, err := c.ImportBytes(ctx, state, "export-psw", backend.DevnetEndpoint)
	require.NoError(t, err)
	require.True(t, restored.Address().Equal(s.Address()))

	// The cursor travels with the state.
	msgs, err := restored.FetchMessages(ctx)
	require.NoError(t, err)
	require.Empty(t, msgs)

	_, err = restored.SendSignedPacket(ctx, "second")
	require.NoError(t, err)
	msgs, err = restored.FetchMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	_, err = c.ImportBytes(ctx, state, "psw", backend.DevnetEndpoint)
	require.True(t, domain.IsAuth(err), "wrong password: %v", err)
	_, err = c.ImportBytes(ctx, []byte("garbage"), "export-psw", backend.DevnetEndpoint)
	require.True(t, domain.IsAuth(err), "garbage: %v", err)

	_, err = c.Create(backend.DevnetEndpoint).ExportBytes("psw")
	require.True(t, domain.IsBackend(err))
}

func TestClient_Attach(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	s := openSession(t, c, "psw")
	_, err := s.SendSignedPacket(ctx, "hello")
	require.NoError(t, err)

	r, err := c.Attach(ctx, s.Address(), backend.DevnetEndpoint)
	require.NoError(t, err)
	msgs, err := r.FetchMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, `"hello"`, string(msgs[0].Public))

	_, err = c.Attach(ctx, domain.NewChannelAddress("nope", "nope"), backend.DevnetEndpoint)
	require.True(t, domain.IsBackend(err))
}

func TestFetch_DetectsTampering(t *testing.T) {
	c, ledger := newClient(t)
	ctx := context.Background()
	s := openSession(t, c, "psw")
	_, err := s.SendSignedPacket(ctx, "genuine")
	require.NoError(t, err)

	// A message appended by someone without the channel key.
	_, err = ledger.Append(ctx, s.Address().ChannelID, storage.Message{
		ID:        "forged",
		Kind:      storage.KindSigned,
		Public:    []byte(`"forged"`),
		Signature: make([]byte, 64),
	})
	require.NoError(t, err)

	r, err := c.Attach(ctx, s.Address(), backend.DevnetEndpoint)
	require.NoError(t, err)
	_, err = r.FetchMessages(ctx)
	require.True(t, domain.IsBackend(err), "got %v", err)
}

func TestClient_RateLimit(t *testing.T) {
	c, _ := newClient(t, backend.WithRateLimit(1000, 1))
	s := openSession(t, c, "psw")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.FetchMessages(ctx)
	require.True(t, domain.IsBackend(err), "cancelled wait: %v", err)

	_, err = s.FetchMessages(context.Background())
	require.NoError(t, err)
}

func TestClient_Clock(t *testing.T) {
	fixed := time.Date(2021, 5, 25, 10, 0, 0, 0, time.UTC)
	c, _ := newClient(t, backend.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	s := openSession(t, c, "psw")

	_, err := s.SendSignedPacket(ctx, 1)
	require.NoError(t, err)
	msgs, err := s.FetchMessages(ctx)
	require.NoError(t, err)
	require.True(t, fixed.Equal(msgs[0].Timestamp), "timestamp %v", msgs[0].Timestamp)
}
