package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// StateStore persists the operational state: admin identities, the pause
// flag and usage counters. Every mutation writes through before returning.
// A single connection serializes writers so concurrent RecordOutcome calls
// never lose an increment.
type StateStore struct {
	db *sql.DB
}

// Open creates or opens <dir>/state.db.
func Open(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS admins (id TEXT PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS flags (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS counters (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS kb_hits (domain TEXT PRIMARY KEY, value INTEGER NOT NULL)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure state schema: %w", err)
		}
	}

	return &StateStore{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests.
func NewWithDB(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Close() error { return s.db.Close() }

// SeedAdmins registers the configured administrator identities. Existing
// entries are kept, so admins added at runtime survive a restart with an
// unchanged environment.
func (s *StateStore) SeedAdmins(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO admins (id) VALUES (?)`, id); err != nil {
			return domain.WrapError(domain.ErrStoreUnavailable, "seed admin", err)
		}
	}
	return nil
}

func (s *StateStore) IsAdmin(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.WrapError(domain.ErrStoreUnavailable, "admin lookup", err)
	}
	return true, nil
}

func (s *StateStore) AddAdmin(ctx context.Context, id, byAdminID string) error {
	if err := s.requireAdmin(ctx, byAdminID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO admins (id) VALUES (?)`, id); err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "add admin", err)
	}
	return nil
}

func (s *StateStore) IsPaused(ctx context.Context) (bool, error) {
	var value int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM flags WHERE name = 'paused'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.WrapError(domain.ErrStoreUnavailable, "read pause flag", err)
	}
	return value != 0, nil
}

func (s *StateStore) SetPaused(ctx context.Context, paused bool, byAdminID string) error {
	if err := s.requireAdmin(ctx, byAdminID); err != nil {
		return err
	}
	value := 0
	if paused {
		value = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO flags (name, value) VALUES ('paused', ?)
ON CONFLICT(name) DO UPDATE SET value = excluded.value
`, value)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "write pause flag", err)
	}
	return nil
}

// RecordOutcome increments the total counter plus exactly one of
// {kb_hits[domain], fallbacks} in a single transaction.
func (s *StateStore) RecordOutcome(ctx context.Context, kbDomain string, usedFallback bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "begin outcome tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO counters (name, value) VALUES ('total_queries', 1)
ON CONFLICT(name) DO UPDATE SET value = value + 1
`); err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "increment total queries", err)
	}

	if usedFallback {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO counters (name, value) VALUES ('fallbacks', 1)
ON CONFLICT(name) DO UPDATE SET value = value + 1
`); err != nil {
			return domain.WrapError(domain.ErrStoreUnavailable, "increment fallbacks", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO kb_hits (domain, value) VALUES (?, 1)
ON CONFLICT(domain) DO UPDATE SET value = value + 1
`, kbDomain); err != nil {
			return domain.WrapError(domain.ErrStoreUnavailable, "increment kb hits", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "commit outcome tx", err)
	}
	return nil
}

func (s *StateStore) Snapshot(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{KBHits: map[string]int64{}}

	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM counters`)
	if err != nil {
		return domain.Stats{}, domain.WrapError(domain.ErrStoreUnavailable, "read counters", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name  string
			value int64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return domain.Stats{}, domain.WrapError(domain.ErrStoreUnavailable, "scan counter", err)
		}
		switch name {
		case "total_queries":
			stats.TotalQueries = value
		case "fallbacks":
			stats.Fallbacks = value
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Stats{}, domain.WrapError(domain.ErrStoreUnavailable, "iterate counters", err)
	}

	hitRows, err := s.db.QueryContext(ctx, `SELECT domain, value FROM kb_hits`)
	if err != nil {
		return domain.Stats{}, domain.WrapError(domain.ErrStoreUnavailable, "read kb hits", err)
	}
	defer hitRows.Close()
	for hitRows.Next() {
		var (
			kbDomain string
			value    int64
		)
		if err := hitRows.Scan(&kbDomain, &value); err != nil {
			return domain.Stats{}, domain.WrapError(domain.ErrStoreUnavailable, "scan kb hit", err)
		}
		stats.KBHits[kbDomain] = value
	}
	if err := hitRows.Err(); err != nil {
		return domain.Stats{}, domain.WrapError(domain.ErrStoreUnavailable, "iterate kb hits", err)
	}

	return stats, nil
}

func (s *StateStore) requireAdmin(ctx context.Context, id string) error {
	ok, err := s.IsAdmin(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.WrapError(domain.ErrNotAuthorized, "admin command", fmt.Errorf("id=%s", id))
	}
	return nil
}
