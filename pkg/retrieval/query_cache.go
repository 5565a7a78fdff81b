package retrieval

import (
	"container/list"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueryCache is a bounded LRU with a short TTL keyed by (method, normalized
// parameters), fronting repeated hybrid-search calls. It prefers a redis
// backend (grounded on zero-day-ai-sdk's go-redis dependency) when
// configured, falling back to the teacher's in-process TTL-map idiom
// (pkg/runbook/cache.go) otherwise — the same "local manager with an
// optional external dependency" shape the teacher uses for its runbook
// cache.
type QueryCache struct {
	ttl time.Duration
	rdb *redis.Client

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	maxSize int

	hits, misses, evictions int64
}

type queryCacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewQueryCache builds a cache with the given max in-process size and TTL.
// Pass a non-nil redis.Client to back it with redis instead.
func NewQueryCache(maxSize int, ttl time.Duration, rdb *redis.Client) *QueryCache {
	if maxSize <= 0 {
		maxSize = 500
	}
	if ttl <= 0 {
		ttl = 180 * time.Second
	}
	return &QueryCache{
		ttl:     ttl,
		rdb:     rdb,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the cached bytes for key, if present and unexpired.
func (c *QueryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			return val, true
		}
		if err != redis.Nil {
			slog.Warn("query cache redis get failed, falling back to local", "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*queryCacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		c.evictions++
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return entry.value, true
}

// Set stores bytes under key with the cache's TTL.
func (c *QueryCache) Set(ctx context.Context, key string, value []byte) {
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
			slog.Warn("query cache redis set failed, falling back to local", "error", err)
		} else {
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*queryCacheEntry).value = value
		el.Value.(*queryCacheEntry).expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&queryCacheEntry{key: key, value: value, expiresAt: time.Now().Add(c.ttl)})
	c.entries[key] = el

	for len(c.entries) > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*queryCacheEntry).key)
		c.evictions++
	}
}

// Stats for observability.
type QueryCacheStats struct {
	Hits, Misses, Evictions int64
}

func (c *QueryCache) Stats() QueryCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return QueryCacheStats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}

// CacheKeyFor builds a deterministic cache key from a method name and a
// normalized parameter bag.
func CacheKeyFor(method string, params map[string]any) string {
	b, err := json.Marshal(params)
	if err != nil {
		return method
	}
	return method + ":" + string(b)
}
