// Package ledgertest holds the behaviour every storage.Ledger must share.
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
)

// Run exercises a fresh ledger returned by newLedger for each subtest.
func Run(t *testing.T, newLedger func(t *testing.T) storage.Ledger) {
	t.Run("CreateAndGet", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		rec := storage.ChannelRecord{ID: "c1", PublicKey: []byte{1, 2}, AnnounceID: "a1", CreatedAt: 42}
		require.NoError(t, l.CreateChannel(ctx, rec))

		got, err := l.GetChannel(ctx, "c1")
		require.NoError(t, err)
		require.Equal(t, rec.AnnounceID, got.AnnounceID)
		require.Equal(t, rec.PublicKey, got.PublicKey)
		require.Equal(t, rec.CreatedAt, got.CreatedAt)

		require.ErrorIs(t, l.CreateChannel(ctx, rec), storage.ErrChannelExists)

		_, err = l.GetChannel(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrChannelNotFound)
	})

	t.Run("UpdateState", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		require.NoError(t, l.CreateChannel(ctx, storage.ChannelRecord{ID: "c1", AnnounceID: "a1"}))
		require.NoError(t, l.UpdateState(ctx, "c1", []byte("sealed")))

		got, err := l.GetChannel(ctx, "c1")
		require.NoError(t, err)
		require.Equal(t, []byte("sealed"), got.SealedState)

		require.ErrorIs(t, l.UpdateState(ctx, "missing", nil), storage.ErrChannelNotFound)
	})

	t.Run("AppendAndRead", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		require.NoError(t, l.CreateChannel(ctx, storage.ChannelRecord{ID: "c1", AnnounceID: "a1"}))
		require.NoError(t, l.CreateChannel(ctx, storage.ChannelRecord{ID: "c2", AnnounceID: "a2"}))

		for i := 1; i <= 5; i++ {
			seq, err := l.Append(ctx, "c1", storage.Message{
				ID:        fmt.Sprintf("m%d", i),
				Kind:      storage.KindSigned,
				Public:    []byte(fmt.Sprintf("p%d", i)),
				Signature: []byte("sig"),
			})
			require.NoError(t, err)
			require.Equal(t, uint64(i), seq)
		}
		_, err := l.Append(ctx, "c2", storage.Message{ID: "other", Kind: storage.KindRaw})
		require.NoError(t, err)

		all, err := l.Messages(ctx, "c1", 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i, m := range all {
			require.Equal(t, uint64(i+1), m.Seq)
			require.Equal(t, fmt.Sprintf("m%d", i+1), m.ID)
		}

		tail, err := l.Messages(ctx, "c1", 3)
		require.NoError(t, err)
		require.Len(t, tail, 2)
		require.Equal(t, "m4", tail[0].ID)

		none, err := l.Messages(ctx, "c1", 5)
		require.NoError(t, err)
		require.Empty(t, none)

		other, err := l.Messages(ctx, "c2", 0)
		require.NoError(t, err)
		require.Len(t, other, 1)

		_, err = l.Append(ctx, "missing", storage.Message{ID: "x"})
		require.ErrorIs(t, err, storage.ErrChannelNotFound)
		_, err = l.Messages(ctx, "missing", 0)
		require.ErrorIs(t, err, storage.ErrChannelNotFound)
	})

	t.Run("ConcurrentAppend", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		require.NoError(t, l.CreateChannel(ctx, storage.ChannelRecord{ID: "c1", AnnounceID: "a1"}))

		const writers = 8
		var wg sync.WaitGroup
		seqs := make(chan uint64, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				seq, err := l.Append(ctx, "c1", storage.Message{ID: fmt.Sprintf("w%d", i), Kind: storage.KindSigned})
				if err == nil {
					seqs <- seq
				}
			}(i)
		}
		wg.Wait()
		close(seqs)

		seen := make(map[uint64]bool)
		for s := range seqs {
			require.False(t, seen[s], "duplicate sequence %d", s)
			seen[s] = true
		}
		require.Len(t, seen, writers)

		all, err := l.Messages(ctx, "c1", 0)
		require.NoError(t, err)
		require.Len(t, all, writers)
	})

	t.Run("ConcurrentCreate", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		var mu sync.Mutex
		created := 0
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := l.CreateChannel(ctx, storage.ChannelRecord{ID: "race", AnnounceID: "a"}); err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, created)
	})
}
