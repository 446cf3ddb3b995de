package ports

import (
	"context"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// Embedder converts query or entry text into a fixed-length vector.
// One embedder instance serves the whole process so that scores stay
// comparable across stores.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KnowledgeStore is one domain-scoped persistent index of knowledge entries.
// Search returns up to k nearest entries by similarity, descending score,
// ties broken by insertion order.
type KnowledgeStore interface {
	Domain() string
	Search(ctx context.Context, vector []float32, k int) ([]domain.QueryResult, error)
	Insert(ctx context.Context, entry domain.KnowledgeEntry) error
	Size(ctx context.Context) (int, error)
}

// AnswerGenerator wraps the external generative capability for the
// fallback path.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, contextEntries []domain.QueryResult) (string, error)
}

// StateStore owns the persisted operational state: admin identities, the
// pause flag and usage counters. Every mutating call writes through to
// durable storage before returning.
type StateStore interface {
	IsPaused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool, byAdminID string) error
	IsAdmin(ctx context.Context, id string) (bool, error)
	AddAdmin(ctx context.Context, id, byAdminID string) error
	RecordOutcome(ctx context.Context, kbDomain string, usedFallback bool) error
	Snapshot(ctx context.Context) (domain.Stats, error)
}

// MaintenanceQueue carries knowledge-base upsert events from the admin
// surface to the indexing worker.
type MaintenanceQueue interface {
	PublishEntryUpsert(ctx context.Context, req domain.EntryUpsert) error
	SubscribeEntryUpserts(ctx context.Context, handler func(context.Context, domain.EntryUpsert) error) error
	Close()
}
