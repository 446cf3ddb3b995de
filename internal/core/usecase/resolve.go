package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

// RetrievalRouter searches every domain store with one shared query vector
// and applies the confidence-threshold policy.
//
// Stores are iterated in configured preference order; at equal score the
// earlier store wins, and within a store the earliest-inserted entry wins,
// so repeated queries are deterministic.
type RetrievalRouter struct {
	embedder         ports.Embedder
	stores           []ports.KnowledgeStore
	topK             int
	threshold        float64
	contextThreshold float64
	contextN         int
	logger           *slog.Logger
}

func NewRetrievalRouter(
	embedder ports.Embedder,
	stores []ports.KnowledgeStore,
	topK int,
	threshold float64,
	contextThreshold float64,
	contextN int,
	logger *slog.Logger,
) *RetrievalRouter {
	if topK <= 0 {
		topK = 3
	}
	if contextN <= 0 {
		contextN = topK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalRouter{
		embedder:         embedder,
		stores:           stores,
		topK:             topK,
		threshold:        threshold,
		contextThreshold: contextThreshold,
		contextN:         contextN,
		logger:           logger,
	}
}

func (r *RetrievalRouter) Resolve(ctx context.Context, query string) (domain.Decision, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Decision{}, domain.WrapError(domain.ErrInvalidQuery, "resolve", errors.New("query is empty"))
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		// A failed embedding degrades to fallback with no context rather
		// than failing the whole query.
		r.logger.Error("embed_query_failed", "error", err)
		return domain.Decision{Kind: domain.DecisionNeedsFallback, EmbedFailed: true}, nil
	}

	candidates := r.collectCandidates(ctx, vector)
	if len(candidates) == 0 {
		return domain.Decision{Kind: domain.DecisionNeedsFallback}, nil
	}

	best := candidates[0]
	bestScore := best.Score
	if bestScore >= r.threshold {
		return domain.Decision{
			Kind:      domain.DecisionAnswered,
			Best:      &best,
			BestScore: &bestScore,
		}, nil
	}

	return domain.Decision{
		Kind:      domain.DecisionNeedsFallback,
		BestScore: &bestScore,
		Context:   r.contextWorthy(candidates),
	}, nil
}

// collectCandidates fans the shared vector out to every store and merges the
// per-store top-k lists into one ranked list. A failing store contributes no
// candidates; the remaining stores may still answer.
func (r *RetrievalRouter) collectCandidates(ctx context.Context, vector []float32) []domain.QueryResult {
	type ranked struct {
		result   domain.QueryResult
		storeIdx int
	}

	merged := make([]ranked, 0, len(r.stores)*r.topK)
	for idx, store := range r.stores {
		results, err := store.Search(ctx, vector, r.topK)
		if err != nil {
			r.logger.Warn("store_search_failed", "domain", store.Domain(), "error", err)
			continue
		}
		for _, res := range results {
			merged = append(merged, ranked{result: res, storeIdx: idx})
		}
	}

	// Stable sort keeps each store's insertion-order tie-break intact.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].result.Score != merged[j].result.Score {
			return merged[i].result.Score > merged[j].result.Score
		}
		return merged[i].storeIdx < merged[j].storeIdx
	})

	out := make([]domain.QueryResult, 0, len(merged))
	for _, c := range merged {
		out = append(out, c.result)
	}
	return out
}

// contextWorthy trims the merged candidates to the top-N entries confident
// enough to ground the generator. Sub-threshold noise is dropped entirely.
func (r *RetrievalRouter) contextWorthy(candidates []domain.QueryResult) []domain.QueryResult {
	out := make([]domain.QueryResult, 0, r.contextN)
	for _, c := range candidates {
		if c.Score < r.contextThreshold {
			break
		}
		out = append(out, c)
		if len(out) == r.contextN {
			break
		}
	}
	return out
}
