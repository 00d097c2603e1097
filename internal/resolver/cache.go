package resolver

import (
	"sync"
	"time"
)

// resultCache is the content-level cache: resolved lyric text (or the
// failure it produced) keyed by (folder, song), expiring after the TTL.
// A nil *resultCache is a valid, always-missing cache.
type resultCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

type cacheKey struct {
	folder string
	song   string
}

type cacheEntry struct {
	result Result
	at     time.Time
}

func newResultCache(ttl time.Duration, clock func() time.Time) *resultCache {
	return &resultCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *resultCache) get(folder, song string) (Result, bool) {
	if c == nil {
		return Result{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{folder, song}
	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if c.clock().Sub(entry.at) >= c.ttl {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result, true
}

func (c *resultCache) set(folder, song string, result Result) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{folder, song}] = cacheEntry{result: result, at: c.clock()}
}

func (c *resultCache) clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]cacheEntry)
}
