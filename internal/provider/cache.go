package provider

import (
	"sync"
	"time"
)

// DefaultCacheTTL keeps a lookup result for five minutes.
const DefaultCacheTTL = 5 * time.Minute

// Cache is a TTL cache of lookup results keyed by video id.
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]cacheEntry
}

type cacheEntry struct {
	info      *VideoInfo
	expiresAt time.Time
}

// NewCache returns a cache; now defaults to time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, items: make(map[string]cacheEntry)}
}

// Get returns a copy of a fresh entry.
func (c *Cache) Get(videoID string) (*VideoInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[videoID]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.items, videoID)
		return nil, false
	}
	return e.info.Clone(), true
}

// Set stores a copy of info.
func (c *Cache) Set(videoID string, info *VideoInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, id)
		}
	}
	c.items[videoID] = cacheEntry{info: info.Clone(), expiresAt: now.Add(c.ttl)}
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
