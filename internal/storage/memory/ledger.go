package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
)

// Ledger is an in-memory storage.Ledger.
type Ledger struct {
	mu       sync.RWMutex
	closed   bool
	channels map[string]storage.ChannelRecord
	logs     map[string][]storage.Message
}

var _ storage.Ledger = (*Ledger)(nil)

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		channels: make(map[string]storage.ChannelRecord),
		logs:     make(map[string][]storage.Message),
	}
}

// CreateChannel stores a new channel record.
func (l *Ledger) CreateChannel(_ context.Context, rec storage.ChannelRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return storage.ErrClosed
	}
	if _, ok := l.channels[rec.ID]; ok {
		return storage.ErrChannelExists
	}
	l.channels[rec.ID] = cloneRecord(rec)
	return nil
}

// GetChannel returns a channel record.
func (l *Ledger) GetChannel(_ context.Context, id string) (storage.ChannelRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return storage.ChannelRecord{}, storage.ErrClosed
	}
	rec, ok := l.channels[id]
	if !ok {
		return storage.ChannelRecord{}, storage.ErrChannelNotFound
	}
	return cloneRecord(rec), nil
}

// UpdateState replaces the sealed author state of a channel.
func (l *Ledger) UpdateState(_ context.Context, id string, sealed []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return storage.ErrClosed
	}
	rec, ok := l.channels[id]
	if !ok {
		return storage.ErrChannelNotFound
	}
	rec.SealedState = bytes.Clone(sealed)
	l.channels[id] = rec
	return nil
}

// Append adds msg to the channel log.
func (l *Ledger) Append(_ context.Context, id string, msg storage.Message) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, storage.ErrClosed
	}
	if _, ok := l.channels[id]; !ok {
		return 0, storage.ErrChannelNotFound
	}
	msg = cloneMessage(msg)
	msg.Seq = uint64(len(l.logs[id])) + 1
	l.logs[id] = append(l.logs[id], msg)
	return msg.Seq, nil
}

// Messages returns the messages with a sequence number above after.
func (l *Ledger) Messages(_ context.Context, id string, after uint64) ([]storage.Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, storage.ErrClosed
	}
	if _, ok := l.channels[id]; !ok {
		return nil, storage.ErrChannelNotFound
	}
	log := l.logs[id]
	if after >= uint64(len(log)) {
		return nil, nil
	}
	out := make([]storage.Message, 0, uint64(len(log))-after)
	for _, m := range log[after:] {
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

// Channels returns the number of stored channels.
func (l *Ledger) Channels() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.channels)
}

// Close marks the ledger closed. Later calls fail with storage.ErrClosed.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func cloneRecord(rec storage.ChannelRecord) storage.ChannelRecord {
	rec.PublicKey = bytes.Clone(rec.PublicKey)
	rec.SealedState = bytes.Clone(rec.SealedState)
	return rec
}

func cloneMessage(m storage.Message) storage.Message {
	m.Public = bytes.Clone(m.Public)
	m.Private = bytes.Clone(m.Private)
	m.Signature = bytes.Clone(m.Signature)
	return m
}
