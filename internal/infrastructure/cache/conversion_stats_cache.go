package cache

import (
	"sync"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
)

// CacheEntry represents cached conversion stats with their insertion time
type CacheEntry struct {
	Stats     *entity.ConversionStats
	Timestamp time.Time
}

// ConversionStatsCache provides a thread-safe in-memory cache of stats keyed by window length
type ConversionStatsCache struct {
	cache      map[int]CacheEntry
	expiration time.Duration
	mutex      sync.RWMutex
	now        func() time.Time
}

// NewConversionStatsCache creates a cache whose entries live for expiration
func NewConversionStatsCache(expiration time.Duration) *ConversionStatsCache {
	return &ConversionStatsCache{
		cache:      make(map[int]CacheEntry),
		expiration: expiration,
		now:        time.Now,
	}
}

// Get returns the stats for days if present and not expired
func (c *ConversionStatsCache) Get(days int) *entity.ConversionStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[days]
	if !exists || c.now().Sub(entry.Timestamp) > c.expiration {
		return nil
	}

	stats := *entry.Stats
	return &stats
}

// Put stores stats under their window length
func (c *ConversionStatsCache) Put(stats *entity.ConversionStats) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stored := *stats
	c.cache[stats.Days] = CacheEntry{
		Stats:     &stored,
		Timestamp: c.now(),
	}
}

// CleanExpired removes expired entries from the cache
func (c *ConversionStatsCache) CleanExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := 0
	now := c.now()

	for key, entry := range c.cache {
		if now.Sub(entry.Timestamp) > c.expiration {
			delete(c.cache, key)
			count++
		}
	}

	return count
}
