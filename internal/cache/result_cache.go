package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResultCache keeps authoritative backend values for recently measured
// shapes so re-finalizing an identical geometry skips the network.
// A nil *ResultCache is valid and caches nothing.
type ResultCache struct {
	lru    *expirable.LRU[string, float64]
	cfg    *Config
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a cache bounded by cfg.MaxEntries with per-entry TTL
func NewResultCache(cfg *Config) *ResultCache {
	cfg = cfg.withDefaults()
	return &ResultCache{
		lru: expirable.NewLRU[string, float64](cfg.MaxEntries, nil, cfg.TTL),
		cfg: cfg,
	}
}

// Key derives a cache key from the endpoint and the encoded request geometry
func Key(endpoint string, geometry []byte) string {
	h := sha256.New()
	h.Write([]byte(endpoint))
	h.Write([]byte{0})
	h.Write(geometry)
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached value
func (c *ResultCache) Get(key string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value
func (c *ResultCache) Set(key string, value float64) {
	if c == nil {
		return
	}
	c.lru.Add(key, value)
}

// Stats returns cache statistics
func (c *ResultCache) Stats() (entries int, hits int64, misses int64) {
	if c == nil {
		return 0, 0, 0
	}
	return c.lru.Len(), c.hits.Load(), c.misses.Load()
}

// Clear removes all cached values
func (c *ResultCache) Clear() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
