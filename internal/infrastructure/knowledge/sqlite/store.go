package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// Store is one domain-scoped knowledge base backed by a SQLite file under
// its own directory. Similarity search runs in-process: the curated KBs are
// small, a full scan with cosine scoring stays well under interactive
// latency and keeps reads snapshot-consistent under WAL.
type Store struct {
	db       *sql.DB
	kbDomain string
}

// Open creates or opens <root>/<domain>/entries.db.
func Open(root, kbDomain string) (*Store, error) {
	dir := filepath.Join(root, kbDomain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create kb directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "entries.db"))
	if err != nil {
		return nil, fmt.Errorf("open kb database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS entries (
    seq       INTEGER PRIMARY KEY AUTOINCREMENT,
    id        TEXT NOT NULL UNIQUE,
    text      TEXT NOT NULL,
    embedding BLOB NOT NULL
)
`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure kb schema: %w", err)
	}

	return &Store{db: db, kbDomain: kbDomain}, nil
}

func (s *Store) Domain() string { return s.kbDomain }

func (s *Store) Close() error { return s.db.Close() }

// Insert adds or replaces an entry by id. A replaced entry keeps its
// original insertion sequence so tie-breaks stay stable.
func (s *Store) Insert(ctx context.Context, entry domain.KnowledgeEntry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO entries (id, text, embedding) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET text = excluded.text, embedding = excluded.embedding
`, entry.ID, entry.Text, packVector(entry.Embedding))
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "insert entry", err)
	}
	return nil
}

// Search returns up to k entries ordered by descending cosine similarity,
// ties broken by insertion order.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]domain.QueryResult, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding FROM entries ORDER BY seq`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "search entries", err)
	}
	defer rows.Close()

	results := make([]domain.QueryResult, 0, k)
	for rows.Next() {
		var (
			id   string
			text string
			blob []byte
		)
		if err := rows.Scan(&id, &text, &blob); err != nil {
			return nil, domain.WrapError(domain.ErrStoreUnavailable, "scan entry", err)
		}
		embedding, err := unpackVector(blob)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStoreUnavailable, "decode embedding", err)
		}
		// Entries embedded by an older model are invisible to search until
		// re-indexed; all live entries share the embedder's dimensionality.
		if len(embedding) != len(vector) {
			continue
		}
		results = append(results, domain.QueryResult{
			Entry: domain.KnowledgeEntry{
				ID:        id,
				Text:      text,
				Embedding: embedding,
				Domain:    s.kbDomain,
			},
			Score:  cosineSimilarity(vector, embedding),
			Domain: s.kbDomain,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "iterate entries", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *Store) Size(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return 0, domain.WrapError(domain.ErrStoreUnavailable, "count entries", err)
	}
	return count, nil
}
