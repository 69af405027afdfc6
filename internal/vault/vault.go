// Package vault stores exported daily-channel state blobs in SQLite.
//
// Blobs are stored exactly as ExportState produced them; the vault never
// sees a plaintext session or password.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
)

// ErrNotFound is returned by Get and Delete for an unknown key.
var ErrNotFound = errors.New("vault: entry not found")

// Key identifies one daily channel.
type Key struct {
	Category domain.Category
	ActorID  string
	Date     domain.Date
}

func (k Key) actorID() string {
	return domain.NormalizeActorID(strings.TrimSpace(k.ActorID))
}

// String returns "category/actor/dd-mm-yyyy".
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%02d-%02d-%d", k.Category.Tag(), k.actorID(), k.Date.Day, k.Date.Month, k.Date.Year)
}

// Entry is a stored blob with its key.
type Entry struct {
	Key       Key
	Blob      string
	UpdatedAt time.Time
}

// Store is a SQLite-backed blob store.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the vault at path. Use ":memory:" for a
// process-local vault.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_states (
		category TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		blob TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (category, actor_id, day)
	);
	CREATE INDEX IF NOT EXISTS idx_daily_states_actor ON daily_states(category, actor_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func validateKey(k Key) error {
	if !k.Category.Valid() {
		return domain.ErrValidation.Detailf("vault key: unknown category %d", int(k.Category))
	}
	if k.actorID() == "" {
		return domain.ErrValidation.WithDetails("vault key: empty actor id")
	}
	return k.Date.Validate()
}

// Put stores blob under k, replacing any previous blob.
func (s *Store) Put(ctx context.Context, k Key, blob string) error {
	if err := validateKey(k); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_states (category, actor_id, day, blob, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (category, actor_id, day) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		k.Category.Tag(), k.actorID(), k.Date.Timestamp(), blob, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// Get returns the blob stored under k.
func (s *Store) Get(ctx context.Context, k Key) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRowContext(ctx,
		"SELECT blob FROM daily_states WHERE category = ? AND actor_id = ? AND day = ?",
		k.Category.Tag(), k.actorID(), k.Date.Timestamp(),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query state: %w", err)
	}
	return blob, nil
}

// List returns every entry ordered by category, actor and date.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT category, actor_id, day, blob, updated_at FROM daily_states ORDER BY category, actor_id, day")
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			tag, actorID string
			day, updated int64
			e            Entry
		)
		if err := rows.Scan(&tag, &actorID, &day, &e.Blob, &updated); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		c, err := domain.ParseCategory(tag)
		if err != nil {
			return nil, fmt.Errorf("row %s/%s: %w", tag, actorID, err)
		}
		e.Key = Key{Category: c, ActorID: actorID, Date: domain.DateFromTimestamp(day)}
		e.UpdatedAt = time.Unix(updated, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Delete removes the blob stored under k.
func (s *Store) Delete(ctx context.Context, k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM daily_states WHERE category = ? AND actor_id = ? AND day = ?",
		k.Category.Tag(), k.actorID(), k.Date.Timestamp(),
	)
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
