package usecases

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/pkg/metrics"
)

// getCached decodes key into dst. It returns false on a miss, a decode
// failure, or when cache is nil.
func getCached(ctx context.Context, cache ports.CacheService, op, key string, dst any) bool {
	if cache == nil {
		return false
	}
	data, err := cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func setCached(ctx context.Context, cache ports.CacheService, key string, v any, ttlSeconds int) {
	if cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = cache.Set(ctx, key, data, ttlSeconds)
	}
}

const (
	// generationKey versions every cached proximity result. Writers that
	// change which reports a query would return bump it.
	generationKey = "reports:generation"
	generationTTL = 3600
)

// cacheGeneration returns the current proximity cache generation, "0" when
// none has been recorded.
func cacheGeneration(ctx context.Context, cache ports.CacheService) string {
	if cache == nil {
		return "0"
	}
	data, err := cache.Get(ctx, generationKey)
	if err != nil || len(data) == 0 {
		return "0"
	}
	return string(data)
}

// bumpGeneration orphans every cached proximity result.
func bumpGeneration(ctx context.Context, cache ports.CacheService) {
	if cache == nil {
		return
	}
	gen := strconv.FormatInt(time.Now().UnixNano(), 36)
	if err := cache.Set(ctx, generationKey, []byte(gen), generationTTL); err != nil {
		slog.WarnContext(ctx, "bump cache generation failed", "error", err)
	}
}
