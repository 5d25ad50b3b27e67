package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"weather-predictor/internal/artifact"
)

type CacheItem struct {
	Bundle    *artifact.Bundle
	ExpiresAt time.Time
}

// ModelCache holds the loaded model bundle between scheduled runs so the
// artifact is not decompressed on every forecast. A zero TTL disables caching.
type ModelCache struct {
	mu     sync.RWMutex
	item   *CacheItem
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
	hits   int
	misses int
}

func NewModelCache(ttl time.Duration, logger *zap.Logger) *ModelCache {
	return &ModelCache{
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (c *ModelCache) Set(bundle *artifact.Bundle) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	c.item = &CacheItem{Bundle: bundle, ExpiresAt: expiresAt}

	c.logger.Debug("Model bundle cached",
		zap.String("run_id", bundle.RunID),
		zap.Time("expires_at", expiresAt))
}

func (c *ModelCache) Get() (*artifact.Bundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.item == nil {
		c.misses++
		return nil, false
	}

	if c.now().After(c.item.ExpiresAt) {
		c.logger.Debug("Cached model bundle expired",
			zap.String("run_id", c.item.Bundle.RunID))
		c.item = nil
		c.misses++
		return nil, false
	}

	c.hits++
	return c.item.Bundle, true
}

func (c *ModelCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.item = nil
}

func (c *ModelCache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := map[string]interface{}{
		"cached": c.item != nil,
		"hits":   c.hits,
		"misses": c.misses,
		"ttl":    c.ttl.String(),
	}
	if c.item != nil {
		stats["run_id"] = c.item.Bundle.RunID
		stats["expires_at"] = c.item.ExpiresAt
	}
	return stats
}
