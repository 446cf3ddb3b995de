package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/support-assistant/internal/core/ports"
)

// CachedEmbedder memoizes embeddings in an in-memory LRU. Embedding is
// deterministic for a fixed model version, so cached vectors stay valid for
// the process lifetime. Cached slices are shared; callers must not mutate
// returned vectors.
type CachedEmbedder struct {
	inner      ports.Embedder
	cache      *lru.Cache[string, []float32]
	cacheTotal *prometheus.CounterVec
	logger     *slog.Logger
}

// New creates a caching decorator. cacheTotal is an optional counter vec
// with label "result" ("hit"/"miss").
func New(inner ports.Embedder, size int, cacheTotal *prometheus.CounterVec, logger *slog.Logger) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{
		inner:      inner,
		cache:      cache,
		cacheTotal: cacheTotal,
		logger:     logger,
	}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	if vector, ok := c.cache.Get(key); ok {
		c.incCache("hit")
		return vector, nil
	}
	c.incCache("miss")

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, vector)
	return vector, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
