package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

// AskUseCase runs one full query cycle: pause gate, retrieval decision,
// optional generative fallback, stats update.
type AskUseCase struct {
	resolver    ports.QueryResolver
	generator   ports.AnswerGenerator
	state       ports.StateStore
	pausedText  string
	apologyText string
	genTimeout  time.Duration
	logger      *slog.Logger
}

func NewAskUseCase(
	resolver ports.QueryResolver,
	generator ports.AnswerGenerator,
	state ports.StateStore,
	pausedText string,
	apologyText string,
	genTimeout time.Duration,
	logger *slog.Logger,
) *AskUseCase {
	if genTimeout <= 0 {
		genTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{
		resolver:    resolver,
		generator:   generator,
		state:       state,
		pausedText:  pausedText,
		apologyText: apologyText,
		genTimeout:  genTimeout,
		logger:      logger,
	}
}

func (uc *AskUseCase) Ask(ctx context.Context, query string) (*domain.Answer, error) {
	// The pause flag is re-read per query so an admin pause takes effect for
	// every query that starts after it.
	paused, err := uc.state.IsPaused(ctx)
	if err != nil {
		uc.logger.Warn("pause_check_failed", "error", err)
	}
	if paused {
		return &domain.Answer{Text: uc.pausedText, Source: domain.SourcePaused}, nil
	}

	decision, err := uc.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	if decision.Kind == domain.DecisionAnswered {
		uc.recordOutcome(ctx, decision.Best.Domain, false)
		return &domain.Answer{
			Text:   decision.Best.Entry.Text,
			Source: domain.SourceKnowledgeBase,
			Domain: decision.Best.Domain,
			Score:  decision.Best.Score,
		}, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, uc.genTimeout)
	defer cancel()

	text, err := uc.generator.Generate(genCtx, query, decision.Context)
	if err != nil {
		if decision.EmbedFailed {
			// Embedding and generation both failed: nothing can serve this
			// query, surface the failure.
			return nil, domain.WrapError(domain.ErrGenerationUnavailable, "ask", err)
		}
		uc.logger.Error("fallback_generation_failed", "error", err)
		text = uc.apologyText
	}

	uc.recordOutcome(ctx, "", true)
	return &domain.Answer{Text: text, Source: domain.SourceGenerated}, nil
}

func (uc *AskUseCase) recordOutcome(ctx context.Context, kbDomain string, usedFallback bool) {
	if err := uc.state.RecordOutcome(ctx, kbDomain, usedFallback); err != nil {
		uc.logger.Error("record_outcome_failed", "domain", kbDomain, "fallback", usedFallback, "error", err)
	}
}
