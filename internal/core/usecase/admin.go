package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

// AdminUseCase handles administrative commands against the operational
// state store and the knowledge-base maintenance queue.
type AdminUseCase struct {
	state   ports.StateStore
	queue   ports.MaintenanceQueue
	domains map[string]struct{}
	logger  *slog.Logger
}

func NewAdminUseCase(
	state ports.StateStore,
	queue ports.MaintenanceQueue,
	domains []string,
	logger *slog.Logger,
) *AdminUseCase {
	known := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		known[d] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminUseCase{
		state:   state,
		queue:   queue,
		domains: known,
		logger:  logger,
	}
}

func (uc *AdminUseCase) Pause(ctx context.Context, byAdminID string) error {
	if err := uc.state.SetPaused(ctx, true, byAdminID); err != nil {
		return err
	}
	uc.logger.Info("service_paused", "admin_id", byAdminID)
	return nil
}

func (uc *AdminUseCase) Resume(ctx context.Context, byAdminID string) error {
	if err := uc.state.SetPaused(ctx, false, byAdminID); err != nil {
		return err
	}
	uc.logger.Info("service_resumed", "admin_id", byAdminID)
	return nil
}

func (uc *AdminUseCase) Status(ctx context.Context, byAdminID string) (*domain.Status, error) {
	if err := uc.requireAdmin(ctx, byAdminID); err != nil {
		return nil, err
	}

	paused, err := uc.state.IsPaused(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pause flag: %w", err)
	}
	stats, err := uc.state.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats snapshot: %w", err)
	}
	return &domain.Status{Paused: paused, Stats: stats}, nil
}

func (uc *AdminUseCase) AddAdmin(ctx context.Context, id, byAdminID string) error {
	return uc.state.AddAdmin(ctx, id, byAdminID)
}

// SubmitEntry validates a maintenance request and hands it to the indexing
// worker via the queue.
func (uc *AdminUseCase) SubmitEntry(ctx context.Context, req domain.EntryUpsert, byAdminID string) error {
	if err := uc.requireAdmin(ctx, byAdminID); err != nil {
		return err
	}

	req.Domain = strings.TrimSpace(req.Domain)
	req.ID = strings.TrimSpace(req.ID)
	if _, ok := uc.domains[req.Domain]; !ok {
		return domain.WrapError(domain.ErrInvalidQuery, "submit entry", fmt.Errorf("unknown domain %q", req.Domain))
	}
	if req.ID == "" || strings.TrimSpace(req.Text) == "" {
		return domain.WrapError(domain.ErrInvalidQuery, "submit entry", errors.New("id and text are required"))
	}

	if err := uc.queue.PublishEntryUpsert(ctx, req); err != nil {
		return fmt.Errorf("publish entry upsert: %w", err)
	}
	uc.logger.Info("entry_upsert_submitted", "domain", req.Domain, "entry_id", req.ID, "admin_id", byAdminID)
	return nil
}

func (uc *AdminUseCase) requireAdmin(ctx context.Context, id string) error {
	ok, err := uc.state.IsAdmin(ctx, id)
	if err != nil {
		return fmt.Errorf("admin lookup: %w", err)
	}
	if !ok {
		return domain.WrapError(domain.ErrNotAuthorized, "admin command", fmt.Errorf("id=%s", id))
	}
	return nil
}
