package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/support-assistant/internal/config"
	"github.com/kirillkom/support-assistant/internal/core/ports"
	"github.com/kirillkom/support-assistant/internal/core/usecase"
	"github.com/kirillkom/support-assistant/internal/infrastructure/embcache"
	kbsqlite "github.com/kirillkom/support-assistant/internal/infrastructure/knowledge/sqlite"
	"github.com/kirillkom/support-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/support-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/support-assistant/internal/infrastructure/resilience"
	statesqlite "github.com/kirillkom/support-assistant/internal/infrastructure/state/sqlite"
	"github.com/kirillkom/support-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue   ports.MaintenanceQueue
	State   ports.StateStore
	Stores  []ports.KnowledgeStore
	AskUC   ports.QueryService
	AdminUC ports.AdminService
	IndexUC ports.EntryIndexer

	closeFn func()
}

type Options struct {
	Logger *slog.Logger

	// HTTPMetrics is optional; when set the embedding cache reports
	// hit/miss counts through it.
	HTTPMetrics *metrics.HTTPServerMetrics
	Service     string
}

func New(ctx context.Context, cfg config.Config, options Options) (*App, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state, err := statesqlite.Open(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	if err := state.SeedAdmins(ctx, cfg.AdminIDs); err != nil {
		state.Close()
		return nil, fmt.Errorf("seed admins: %w", err)
	}

	stores := make([]ports.KnowledgeStore, 0, len(cfg.Domains))
	kbStores := make([]*kbsqlite.Store, 0, len(cfg.Domains))
	closeStores := func() {
		for _, s := range kbStores {
			_ = s.Close()
		}
	}
	for _, kbDomain := range cfg.Domains {
		store, err := kbsqlite.Open(cfg.KBPath, kbDomain)
		if err != nil {
			closeStores()
			state.Close()
			return nil, fmt.Errorf("open knowledge store %s: %w", kbDomain, err)
		}
		kbStores = append(kbStores, store)
		stores = append(stores, store)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy(), logger)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	generator := ollama.NewGenerator(ollamaClient)

	var embedder ports.Embedder = ollama.NewEmbedder(ollamaClient)
	if cfg.EmbedCacheSize > 0 {
		cached, err := embcache.New(embedder, cfg.EmbedCacheSize, cacheCounter(options), logger)
		if err != nil {
			closeStores()
			state.Close()
			return nil, fmt.Errorf("init embedding cache: %w", err)
		}
		embedder = cached
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		closeStores()
		state.Close()
		return nil, fmt.Errorf("init maintenance queue: %w", err)
	}

	resolver := usecase.NewRetrievalRouter(
		embedder,
		stores,
		cfg.TopK,
		cfg.SimilarityThreshold,
		cfg.ContextThreshold,
		cfg.ContextN,
		logger,
	)
	askUC := usecase.NewAskUseCase(
		resolver,
		generator,
		state,
		cfg.PausedText,
		cfg.ApologyText,
		time.Duration(cfg.GenTimeoutSec)*time.Second,
		logger,
	)
	adminUC := usecase.NewAdminUseCase(state, queue, cfg.Domains, logger)
	indexUC := usecase.NewIndexEntryUseCase(embedder, stores, logger)

	return &App{
		Config: cfg,

		Queue:   queue,
		State:   state,
		Stores:  stores,
		AskUC:   askUC,
		AdminUC: adminUC,
		IndexUC: indexUC,

		closeFn: func() {
			queue.Close()
			closeStores()
			_ = state.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func cacheCounter(options Options) *prometheus.CounterVec {
	if options.HTTPMetrics == nil {
		return nil
	}
	service := options.Service
	if service == "" {
		service = "api"
	}
	return options.HTTPMetrics.EmbedCacheCounter(service)
}
