package playerjs

import (
	"sync"
	"time"
)

// Cache stores player JS bodies keyed by player id and variant.
type Cache interface {
	Get(key string) (string, bool)
	Set(key string, jsBody string)
}

type memoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]cacheItem
}

type cacheItem struct {
	body      string
	expiresAt time.Time
}

// NewMemoryCache returns an in-process cache. A zero ttl keeps entries forever.
func NewMemoryCache(ttl time.Duration) Cache {
	return &memoryCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheItem),
	}
}

func (c *memoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return "", false
	}
	return item.body, true
}

func (c *memoryCache) Set(key string, jsBody string) {
	item := cacheItem{body: jsBody}
	if c.ttl > 0 {
		item.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
}
