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

// IndexEntryUseCase embeds one maintenance request and inserts the resulting
// entry into its domain store. Runs on the worker side of the queue.
type IndexEntryUseCase struct {
	embedder ports.Embedder
	stores   map[string]ports.KnowledgeStore
	logger   *slog.Logger
}

func NewIndexEntryUseCase(
	embedder ports.Embedder,
	stores []ports.KnowledgeStore,
	logger *slog.Logger,
) *IndexEntryUseCase {
	byDomain := make(map[string]ports.KnowledgeStore, len(stores))
	for _, s := range stores {
		byDomain[s.Domain()] = s
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexEntryUseCase{
		embedder: embedder,
		stores:   byDomain,
		logger:   logger,
	}
}

func (uc *IndexEntryUseCase) IndexEntry(ctx context.Context, req domain.EntryUpsert) error {
	req.Domain = strings.TrimSpace(req.Domain)
	req.ID = strings.TrimSpace(req.ID)
	req.Text = strings.TrimSpace(req.Text)
	if req.ID == "" || req.Text == "" {
		return domain.WrapError(domain.ErrInvalidQuery, "index entry", errors.New("id and text are required"))
	}

	store, ok := uc.stores[req.Domain]
	if !ok {
		return domain.WrapError(domain.ErrInvalidQuery, "index entry", fmt.Errorf("unknown domain %q", req.Domain))
	}

	vector, err := uc.embedder.Embed(ctx, req.Text)
	if err != nil {
		return fmt.Errorf("embed entry: %w", err)
	}

	entry := domain.KnowledgeEntry{
		ID:        req.ID,
		Text:      req.Text,
		Embedding: vector,
		Domain:    req.Domain,
	}
	if err := store.Insert(ctx, entry); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	uc.logger.Info("entry_indexed", "domain", req.Domain, "entry_id", req.ID)
	return nil
}
