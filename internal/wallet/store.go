package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/ggonzalez94/ord-wallet/internal/model"
)

var (
	ErrWalletExists   = errors.New("wallet already exists")
	ErrWalletNotFound = errors.New("wallet not found")
)

// Record is the persisted state of a named wallet.
type Record struct {
	Name         string
	Chain        string
	Descriptor   string
	XPub         string
	Fingerprint  string
	SealedSeed   []byte
	NextIndex    uint32
	SyncedHeight uint64
	CreatedAt    time.Time
}

// Store persists wallets, their receive addresses and recorded actions.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create wallet store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return nil, fmt.Errorf("create wallet lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open wallet sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS wallets (
			name TEXT PRIMARY KEY,
			chain TEXT NOT NULL,
			descriptor TEXT NOT NULL,
			xpub TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			sealed_seed BLOB NOT NULL,
			next_index INTEGER NOT NULL DEFAULT 0,
			synced_height INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS addresses (
			wallet TEXT NOT NULL,
			idx INTEGER NOT NULL,
			address TEXT NOT NULL,
			PRIMARY KEY (wallet, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			action_id TEXT PRIMARY KEY,
			wallet TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_actions_wallet_kind ON actions(wallet, kind, status, updated_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init wallet schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) withLock(what string, fn func() error) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock wallet store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock wallet store: timeout acquiring lock for %s", what)
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *Store) CreateWallet(rec Record) error {
	if strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("create wallet: missing name")
	}
	return s.withLock("create wallet", func() error {
		var exists int
		err := s.db.QueryRow("SELECT COUNT(1) FROM wallets WHERE name = ?", rec.Name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check wallet: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", ErrWalletExists, rec.Name)
		}
		created := rec.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		_, err = s.db.Exec(`
			INSERT INTO wallets (name, chain, descriptor, xpub, fingerprint, sealed_seed, next_index, synced_height, created_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?)
		`, rec.Name, rec.Chain, rec.Descriptor, rec.XPub, rec.Fingerprint, rec.SealedSeed, created.UTC().Unix())
		if err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		return nil
	})
}

func (s *Store) GetWallet(name string) (Record, error) {
	var rec Record
	var createdUnix int64
	err := s.db.QueryRow(`
		SELECT name, chain, descriptor, xpub, fingerprint, sealed_seed, next_index, synced_height, created_at
		FROM wallets WHERE name = ?
	`, name).Scan(&rec.Name, &rec.Chain, &rec.Descriptor, &rec.XPub, &rec.Fingerprint, &rec.SealedSeed, &rec.NextIndex, &rec.SyncedHeight, &createdUnix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s", ErrWalletNotFound, name)
		}
		return Record{}, fmt.Errorf("read wallet: %w", err)
	}
	rec.CreatedAt = time.Unix(createdUnix, 0).UTC()
	return rec, nil
}

// AppendAddresses stores addresses derived at indexes start.. and advances
// the wallet's next index past them.
func (s *Store) AppendAddresses(name string, start uint32, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	return s.withLock("append addresses", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin address tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for i, addr := range addresses {
			if _, err := tx.Exec("INSERT INTO addresses (wallet, idx, address) VALUES (?, ?, ?)", name, start+uint32(i), addr); err != nil {
				return fmt.Errorf("insert address: %w", err)
			}
		}
		res, err := tx.Exec("UPDATE wallets SET next_index = ? WHERE name = ? AND next_index = ?", start+uint32(len(addresses)), name, start)
		if err != nil {
			return fmt.Errorf("advance address index: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("advance address index: wallet %s changed concurrently", name)
		}
		return tx.Commit()
	})
}

func (s *Store) Addresses(name string) ([]string, error) {
	rows, err := s.db.Query("SELECT address FROM addresses WHERE wallet = ? ORDER BY idx", name)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		out = append(out, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address rows: %w", err)
	}
	return out, nil
}

func (s *Store) SetSyncedHeight(name string, height uint64) error {
	return s.withLock("record sync height", func() error {
		if _, err := s.db.Exec("UPDATE wallets SET synced_height = ? WHERE name = ?", height, name); err != nil {
			return fmt.Errorf("record sync height: %w", err)
		}
		return nil
	})
}

func (s *Store) SaveAction(action model.Action) error {
	if strings.TrimSpace(action.ActionID) == "" {
		return fmt.Errorf("save action: missing action id")
	}
	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	createdUnix := parseRFC3339Unix(action.CreatedAt)
	updatedUnix := parseRFC3339Unix(action.UpdatedAt)

	return s.withLock("save action", func() error {
		_, err := s.db.Exec(`
			INSERT INTO actions (action_id, wallet, kind, status, created_at, updated_at, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(action_id) DO UPDATE SET
				status=excluded.status,
				updated_at=excluded.updated_at,
				payload=excluded.payload
		`, action.ActionID, action.Wallet, action.Kind, string(action.Status), createdUnix, updatedUnix, payload)
		if err != nil {
			return fmt.Errorf("save action: %w", err)
		}
		return nil
	})
}

// ListActions returns a wallet's actions, newest first. Empty kind or status
// match everything.
func (s *Store) ListActions(wallet, kind string, status model.ActionStatus) ([]model.Action, error) {
	query := "SELECT payload FROM actions WHERE wallet = ?"
	args := []any{wallet}
	if strings.TrimSpace(kind) != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY updated_at DESC, action_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	actions := make([]model.Action, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		var action model.Action
		if err := json.Unmarshal(payload, &action); err != nil {
			return nil, fmt.Errorf("decode action row: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action rows: %w", err)
	}
	return actions, nil
}

func parseRFC3339Unix(v string) int64 {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Now().UTC().Unix()
	}
	return t.UTC().Unix()
}
