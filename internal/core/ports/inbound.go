package ports

import (
	"context"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// QueryResolver decides between a knowledge-base answer and generative
// fallback for one query.
type QueryResolver interface {
	Resolve(ctx context.Context, query string) (domain.Decision, error)
}

// QueryService is the inbound contract for one full query cycle.
type QueryService interface {
	Ask(ctx context.Context, query string) (*domain.Answer, error)
}

// AdminService is the inbound contract for administrative commands.
// Every operation is gated on the caller's admin identity.
type AdminService interface {
	Pause(ctx context.Context, byAdminID string) error
	Resume(ctx context.Context, byAdminID string) error
	Status(ctx context.Context, byAdminID string) (*domain.Status, error)
	AddAdmin(ctx context.Context, id, byAdminID string) error
	SubmitEntry(ctx context.Context, req domain.EntryUpsert, byAdminID string) error
}

// EntryIndexer is the inbound contract for asynchronous knowledge-base
// maintenance.
type EntryIndexer interface {
	IndexEntry(ctx context.Context, req domain.EntryUpsert) error
}
