package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// appendAttempts bounds optimistic retries when another writer appended to
// the same channel between our read and our publish.
const appendAttempts = 5

// fetchBatch is the ordered-consumer batch size used by Messages.
const fetchBatch = 256

// JetStreamLedger implements Ledger on NATS JetStream.
//
// Channel records live in the KV bucket "<prefix>_channels". Messages of a
// channel are published to "<prefix>.msg.<id>" on the stream
// "<prefix>_messages"; each publish is conditioned on the last stream
// sequence of that subject, so per-channel sequence numbers stay gapless
// across processes.
//
// The ledger remembers, per channel, the stream sequence of the newest
// message it appended or read. Messages starts its consumer there instead
// of replaying the subject from the beginning.
type JetStreamLedger struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	stream jetstream.Stream
	cfg    JetStreamConfig
	logger *slog.Logger

	// appendMu serializes appends from this process; the expected-sequence
	// check covers other processes.
	appendMu sync.Mutex

	mu     sync.Mutex
	closed bool

	posMu     sync.Mutex
	positions map[string]logPosition
}

var _ Ledger = (*JetStreamLedger)(nil)

// logPosition maps a channel sequence to the stream sequence holding it.
type logPosition struct {
	channel uint64
	stream  uint64
}

func (l *JetStreamLedger) position(id string) (logPosition, bool) {
	l.posMu.Lock()
	defer l.posMu.Unlock()
	pos, ok := l.positions[id]
	return pos, ok
}

func (l *JetStreamLedger) remember(id string, pos logPosition) {
	l.posMu.Lock()
	defer l.posMu.Unlock()
	if cur, ok := l.positions[id]; !ok || pos.channel > cur.channel {
		l.positions[id] = pos
	}
}

// orderedConfig returns the consumer config reading subject past channel
// sequence after. A known position at or below after lets delivery start
// right behind it; otherwise the whole subject is replayed.
func orderedConfig(subject string, pos logPosition, known bool, after uint64) jetstream.OrderedConsumerConfig {
	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if known && pos.stream > 0 && pos.channel <= after {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = pos.stream + 1
	}
	return cfg
}

// NewJetStreamLedger connects to NATS and ensures the bucket and stream.
func NewJetStreamLedger(ctx context.Context, cfg JetStreamConfig, logger *slog.Logger) (*JetStreamLedger, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("jetstream: url is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "channelctl"
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := []nats.Option{nats.Name("channelctl"), nats.Timeout(timeout)}
	if cfg.TLS != nil {
		opts = append(opts, nats.Secure(cfg.TLS))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("jetstream: connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: create context: %w", err)
	}

	l := &JetStreamLedger{conn: conn, js: js, cfg: cfg, logger: logger, positions: make(map[string]logPosition)}

	setupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := l.initBucket(setupCtx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := l.initStream(setupCtx); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("jetstream ledger connected",
		"url", cfg.URL,
		"bucket", l.bucketName(),
		"stream", l.streamName())

	return l, nil
}

func (l *JetStreamLedger) bucketName() string { return l.cfg.Prefix + "_channels" }

func (l *JetStreamLedger) streamName() string { return l.cfg.Prefix + "_messages" }

func (l *JetStreamLedger) subject(id string) string { return l.cfg.Prefix + ".msg." + id }

func (l *JetStreamLedger) initBucket(ctx context.Context) error {
	kv, err := l.js.KeyValue(ctx, l.bucketName())
	if err == nil {
		l.kv = kv
		return nil
	}

	kv, err = l.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      l.bucketName(),
		Description: "Channel records for the channel manager",
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("jetstream: create kv bucket: %w", err)
	}
	l.kv = kv
	return nil
}

func (l *JetStreamLedger) initStream(ctx context.Context) error {
	stream, err := l.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        l.streamName(),
		Description: "Channel logs for the channel manager",
		Subjects:    []string{l.cfg.Prefix + ".msg.>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		Discard:     jetstream.DiscardNew,
	})
	if err != nil {
		return fmt.Errorf("jetstream: create stream: %w", err)
	}
	l.stream = stream
	return nil
}

func (l *JetStreamLedger) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// CreateChannel stores a new channel record.
func (l *JetStreamLedger) CreateChannel(ctx context.Context, rec ChannelRecord) error {
	if l.isClosed() {
		return ErrClosed
	}
	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := l.kv.Create(ctx, rec.ID, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrChannelExists
		}
		return fmt.Errorf("jetstream: create channel: %w", err)
	}
	return nil
}

func (l *JetStreamLedger) getEntry(ctx context.Context, id string) (jetstream.KeyValueEntry, ChannelRecord, error) {
	entry, err := l.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ChannelRecord{}, ErrChannelNotFound
		}
		return nil, ChannelRecord{}, fmt.Errorf("jetstream: get channel: %w", err)
	}
	rec, err := DecodeRecord(entry.Value())
	if err != nil {
		return nil, ChannelRecord{}, err
	}
	return entry, rec, nil
}

// GetChannel returns a channel record.
func (l *JetStreamLedger) GetChannel(ctx context.Context, id string) (ChannelRecord, error) {
	if l.isClosed() {
		return ChannelRecord{}, ErrClosed
	}
	_, rec, err := l.getEntry(ctx, id)
	return rec, err
}

// UpdateState replaces the sealed author state of a channel. The write is
// conditioned on the revision that was read.
func (l *JetStreamLedger) UpdateState(ctx context.Context, id string, sealed []byte) error {
	if l.isClosed() {
		return ErrClosed
	}
	entry, rec, err := l.getEntry(ctx, id)
	if err != nil {
		return err
	}
	rec.SealedState = sealed
	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := l.kv.Update(ctx, id, data, entry.Revision()); err != nil {
		return fmt.Errorf("jetstream: update channel state: %w", err)
	}
	return nil
}

// lastMessage returns the stream sequence and channel sequence of the last
// message on a channel, or zeros for an empty log.
func (l *JetStreamLedger) lastMessage(ctx context.Context, id string) (streamSeq, channelSeq uint64, err error) {
	raw, err := l.stream.GetLastMsgForSubject(ctx, l.subject(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("jetstream: last message: %w", err)
	}
	msg, err := DecodeMessage(raw.Data)
	if err != nil {
		return 0, 0, err
	}
	return raw.Sequence, msg.Seq, nil
}

func isWrongLastSequence(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// Append adds msg to the channel log.
func (l *JetStreamLedger) Append(ctx context.Context, id string, msg Message) (uint64, error) {
	if l.isClosed() {
		return 0, ErrClosed
	}
	if _, _, err := l.getEntry(ctx, id); err != nil {
		return 0, err
	}

	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	for attempt := 0; attempt < appendAttempts; attempt++ {
		streamSeq, channelSeq, err := l.lastMessage(ctx, id)
		if err != nil {
			return 0, err
		}
		msg.Seq = channelSeq + 1
		data, err := EncodeMessage(msg)
		if err != nil {
			return 0, err
		}

		ack, err := l.js.Publish(ctx, l.subject(id), data,
			jetstream.WithMsgID(msg.ID),
			jetstream.WithExpectLastSequencePerSubject(streamSeq))
		if err == nil {
			l.remember(id, logPosition{channel: msg.Seq, stream: ack.Sequence})
			return msg.Seq, nil
		}
		if !isWrongLastSequence(err) {
			return 0, fmt.Errorf("jetstream: publish: %w", err)
		}
		l.logger.Debug("append raced, retrying", "channel_id", id, "attempt", attempt+1)
	}
	return 0, fmt.Errorf("jetstream: append to %s: too many concurrent writers", id)
}

// Messages returns the messages with a sequence number above after.
func (l *JetStreamLedger) Messages(ctx context.Context, id string, after uint64) ([]Message, error) {
	if l.isClosed() {
		return nil, ErrClosed
	}
	if _, _, err := l.getEntry(ctx, id); err != nil {
		return nil, err
	}

	_, total, err := l.lastMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if total <= after {
		return nil, nil
	}

	pos, known := l.position(id)
	cons, err := l.stream.OrderedConsumer(ctx, orderedConfig(l.subject(id), pos, known, after))
	if err != nil {
		return nil, fmt.Errorf("jetstream: create consumer: %w", err)
	}

	out := make([]Message, 0, total-after)
	for last := uint64(0); last < total; {
		batch, err := cons.Fetch(fetchBatch, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			return nil, fmt.Errorf("jetstream: fetch: %w", err)
		}
		received := 0
		for m := range batch.Messages() {
			received++
			msg, err := DecodeMessage(m.Data())
			if err != nil {
				return nil, err
			}
			last = msg.Seq
			if meta, err := m.Metadata(); err == nil {
				l.remember(id, logPosition{channel: msg.Seq, stream: meta.Sequence.Stream})
			}
			if msg.Seq > after {
				out = append(out, msg)
			}
		}
		if err := batch.Error(); err != nil {
			return nil, fmt.Errorf("jetstream: fetch: %w", err)
		}
		if received == 0 {
			return nil, fmt.Errorf("jetstream: channel %s: log ended at %d of %d", id, last, total)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Close drains the NATS connection.
func (l *JetStreamLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.conn.Drain(); err != nil {
		l.conn.Close()
		return fmt.Errorf("jetstream: drain: %w", err)
	}
	return nil
}
