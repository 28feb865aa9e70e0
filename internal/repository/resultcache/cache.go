// Package resultcache is the typed JSON result cache used by the search,
// recommendation, and catalog services. Cache failures are logged and
// treated as misses; they never propagate as request errors.
package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/db"
	"github.com/skyhive/marketdex/internal/metrics"
)

// Cache data classes. Each class has its own configured TTL.
const (
	ClassSearchResults   = "search_results"
	ClassRecommendations = "recommendations"
	ClassCategories      = "categories"
	ClassTags            = "tags"
	ClassEntityDetail    = "entity_detail"
)

// TTLSource resolves the TTL for a cache data class.
type TTLSource interface {
	TTLFor(class string) time.Duration
}

// Cache stores JSON-encoded responses in a KV store with per-class TTLs.
type Cache struct {
	store  db.KVStore
	prefix string
	ttls   TTLSource
	logger *zap.Logger
}

// New creates a result cache on top of a KV store.
func New(store db.KVStore, prefix string, ttls TTLSource, logger *zap.Logger) *Cache {
	return &Cache{store: store, prefix: prefix, ttls: ttls, logger: logger}
}

// Get loads a cached value into dst. Returns false on miss, on store
// failure, and on decode failure, so callers always fall through to a
// fresh lookup.
func (c *Cache) Get(ctx context.Context, class, key string, dst any) bool {
	data, err := c.store.Get(ctx, c.key(class, key))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			metrics.CacheTotal.WithLabelValues(class, "miss").Inc()
			return false
		}
		metrics.CacheTotal.WithLabelValues(class, "error").Inc()
		c.logger.Warn("cache read failed, treating as miss",
			zap.String("class", class), zap.Error(err))
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheTotal.WithLabelValues(class, "error").Inc()
		c.logger.Warn("cache entry undecodable, treating as miss",
			zap.String("class", class), zap.Error(err))
		return false
	}

	metrics.CacheTotal.WithLabelValues(class, "hit").Inc()
	return true
}

// Put stores a value under the class TTL. Best effort: failures are
// logged at warn and otherwise ignored.
func (c *Cache) Put(ctx context.Context, class, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("class", class), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, c.key(class, key), data, c.ttls.TTLFor(class)); err != nil {
		c.logger.Warn("cache write failed", zap.String("class", class), zap.Error(err))
	}
}

// Invalidate drops a cached entry. Best effort.
func (c *Cache) Invalidate(ctx context.Context, class, key string) {
	if err := c.store.Del(ctx, c.key(class, key)); err != nil {
		c.logger.Warn("cache delete failed", zap.String("class", class), zap.Error(err))
	}
}

func (c *Cache) key(class, key string) string {
	return c.prefix + class + ":" + key
}
