package sqlite

import (
	"context"
	"math"
	"testing"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

func openTestStore(t *testing.T, kbDomain string) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), kbDomain)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insert(t *testing.T, store *Store, id, text string, embedding []float32) {
	t.Helper()
	err := store.Insert(context.Background(), domain.KnowledgeEntry{
		ID:        id,
		Text:      text,
		Embedding: embedding,
		Domain:    store.Domain(),
	})
	if err != nil {
		t.Fatalf("Insert(%s) error = %v", id, err)
	}
}

func TestStoreSearchEmptyStore(t *testing.T) {
	store := openTestStore(t, "general")

	results, err := store.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result, got %d", len(results))
	}
}

func TestStoreSearchRanksByCosineSimilarity(t *testing.T) {
	store := openTestStore(t, "general")
	insert(t, store, "exact", "exact match", []float32{1, 0})
	insert(t, store, "close", "close match", []float32{0.9, 0.1})
	insert(t, store, "far", "far match", []float32{0, 1})

	results, err := store.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Entry.ID != "exact" {
		t.Fatalf("expected exact match first, got %s", results[0].Entry.ID)
	}
	if math.Abs(results[0].Score-1.0) > 1e-9 {
		t.Fatalf("exact duplicate must score 1.0, got %v", results[0].Score)
	}
	if results[2].Entry.ID != "far" {
		t.Fatalf("expected far match last, got %s", results[2].Entry.ID)
	}
	for _, r := range results {
		if r.Domain != "general" {
			t.Fatalf("result missing domain: %+v", r)
		}
	}
}

func TestStoreSearchLimitsToK(t *testing.T) {
	store := openTestStore(t, "general")
	insert(t, store, "a", "a", []float32{1, 0})
	insert(t, store, "b", "b", []float32{0.9, 0.1})
	insert(t, store, "c", "c", []float32{0.8, 0.2})

	results, err := store.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestStoreTiesBreakByInsertionOrder(t *testing.T) {
	store := openTestStore(t, "general")
	insert(t, store, "second-inserted-later", "b", []float32{0, 1})
	insert(t, store, "first", "a", []float32{1, 0})
	insert(t, store, "twin", "c", []float32{1, 0})

	results, err := store.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Entry.ID != "first" || results[1].Entry.ID != "twin" {
		t.Fatalf("equal scores must keep insertion order, got %s, %s", results[0].Entry.ID, results[1].Entry.ID)
	}
}

func TestStoreReplaceKeepsInsertionOrder(t *testing.T) {
	store := openTestStore(t, "general")
	insert(t, store, "one", "old text", []float32{1, 0})
	insert(t, store, "two", "twin", []float32{1, 0})
	insert(t, store, "one", "new text", []float32{1, 0})

	results, err := store.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Entry.ID != "one" || results[0].Entry.Text != "new text" {
		t.Fatalf("replace must keep sequence and update text, got %+v", results[0].Entry)
	}

	size, err := store.Size(context.Background())
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 2 {
		t.Fatalf("replace must not grow the store, got size %d", size)
	}
}

func TestStoreSkipsMismatchedDimensions(t *testing.T) {
	store := openTestStore(t, "general")
	insert(t, store, "old-model", "stale", []float32{1, 0, 0})
	insert(t, store, "current", "fresh", []float32{1, 0})

	results, err := store.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Entry.ID != "current" {
		t.Fatalf("mismatched dimensionality must be skipped, got %+v", results)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, "technical")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	insert(t, store, "kb-1", "restart the agent", []float32{0.5, 0.5})
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(dir, "technical")
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	results, err := reopened.Search(context.Background(), []float32{0.5, 0.5}, 1)
	if err != nil {
		t.Fatalf("Search() after reopen error = %v", err)
	}
	if len(results) != 1 || results[0].Entry.ID != "kb-1" {
		t.Fatalf("entries must survive restart, got %+v", results)
	}
}

func TestVectorPackUnpackRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75}
	out, err := unpackVector(packVector(in))
	if err != nil {
		t.Fatalf("unpackVector() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("component %d mismatch: %v vs %v", i, in[i], out[i])
		}
	}
}

func TestVectorUnpackRejectsCorruptBlob(t *testing.T) {
	if _, err := unpackVector([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated blob")
	}
}
