package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store keeps raw ord server responses keyed by request URL. Each entry
// remembers the chain tip it was fetched at; a response from an older tip
// is stale even inside its TTL, since a new block can spend outputs or
// move inscriptions.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

type Result struct {
	Hit    bool
	Value  []byte
	Age    time.Duration
	Height uint64
	Stale  bool
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS responses (
			key TEXT PRIMARY KEY,
			body BLOB NOT NULL,
			height INTEGER NOT NULL,
			fetched_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init cache schema: %w", err)
		}
	}

	store := &Store{db: db, lock: flock.New(lockPath), now: time.Now}
	_ = store.Prune()
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Prune deletes expired entries.
func (s *Store) Prune() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.write(func() error {
		_, err := s.db.Exec("DELETE FROM responses WHERE expires_at < ?", s.now().UTC().Unix())
		return err
	})
}

// Get looks up key. With tip > 0, an entry fetched at another height is
// reported stale; tip 0 means the caller does not know the chain tip.
func (s *Store) Get(key string, tip uint64) (Result, error) {
	var (
		body      []byte
		height    uint64
		fetchedAt int64
		expiresAt int64
	)
	err := s.db.QueryRow("SELECT body, height, fetched_at, expires_at FROM responses WHERE key = ?", key).
		Scan(&body, &height, &fetchedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("cache read: %w", err)
	}

	now := s.now().UTC()
	age := max(now.Sub(time.Unix(fetchedAt, 0)), 0)
	return Result{
		Hit:    true,
		Value:  body,
		Age:    age,
		Height: height,
		Stale:  now.Unix() > expiresAt || (tip > 0 && height != tip),
	}, nil
}

// Set stores body for key as fetched at chain height tip.
func (s *Store) Set(key string, body []byte, ttl time.Duration, tip uint64) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	now := s.now().UTC()
	return s.write(func() error {
		_, err := s.db.Exec(`
			INSERT INTO responses (key, body, height, fetched_at, expires_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				body=excluded.body,
				height=excluded.height,
				fetched_at=excluded.fetched_at,
				expires_at=excluded.expires_at
		`, key, body, tip, now.Unix(), now.Add(ttl).Unix())
		return err
	})
}

func (s *Store) write(fn func() error) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := fn(); err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}
