package retrieval

import (
	"container/list"
	"crypto/md5"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
)

// EmbeddingCache is a two-tier cache of (text, model) -> vector: a bounded
// in-memory LRU in front of a disk-persisted, hash-sharded store. Hit/miss
// counters are exposed for observability.
//
// Grounded on EmbeddingCache in
// original_source/backend/app/db/vector_manager.py: MD5 cache key,
// 2-hex-char shard subdirectory, manual LRU eviction, hit/miss stats.
// Translated using container/list for the LRU (the idiomatic Go analogue
// of the Python list-based access-order trick) and encoding/gob in place
// of pickle for on-disk serialization — see DESIGN.md for why no
// third-party serialization library from the pack was used here.
type EmbeddingCache struct {
	mu            sync.Mutex
	cacheDir      string
	maxMemItems   int
	memory        map[string]*list.Element
	order         *list.List // front = most recently used
	hits, misses  int64
}

type embEntry struct {
	key    string
	vector []float32
}

// NewEmbeddingCache builds a cache rooted at cacheDir with the given
// in-memory item cap.
func NewEmbeddingCache(cacheDir string, maxMemItems int) *EmbeddingCache {
	if maxMemItems <= 0 {
		maxMemItems = 10000
	}
	return &EmbeddingCache{
		cacheDir:    cacheDir,
		maxMemItems: maxMemItems,
		memory:      make(map[string]*list.Element),
		order:       list.New(),
	}
}

func cacheKey(text, model string) string {
	sum := md5.Sum([]byte(model + "::" + text))
	return hex.EncodeToString(sum[:])
}

func (c *EmbeddingCache) diskPath(key string) string {
	shard := key[:2]
	return filepath.Join(c.cacheDir, shard, key+".gob")
}

// Get returns the cached vector for (text, model), checking memory first
// and falling back to disk.
func (c *EmbeddingCache) Get(text, model string) ([]float32, bool) {
	key := cacheKey(text, model)

	c.mu.Lock()
	if el, ok := c.memory[key]; ok {
		c.order.MoveToFront(el)
		vec := el.Value.(*embEntry).vector
		c.hits++
		c.mu.Unlock()
		return vec, true
	}
	c.mu.Unlock()

	if c.cacheDir == "" {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	f, err := os.Open(c.diskPath(key))
	if err != nil {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	defer f.Close()

	var vec []float32
	if err := gob.NewDecoder(f).Decode(&vec); err != nil {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.insertMemoryLocked(key, vec)
	c.mu.Unlock()
	return vec, true
}

// Set stores a vector for (text, model) in both tiers.
func (c *EmbeddingCache) Set(text, model string, vector []float32) {
	key := cacheKey(text, model)

	c.mu.Lock()
	c.insertMemoryLocked(key, vector)
	c.mu.Unlock()

	if c.cacheDir == "" {
		return
	}
	path := c.diskPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	_ = gob.NewEncoder(f).Encode(vector)
}

// insertMemoryLocked must be called with c.mu held.
func (c *EmbeddingCache) insertMemoryLocked(key string, vector []float32) {
	if el, ok := c.memory[key]; ok {
		el.Value.(*embEntry).vector = vector
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&embEntry{key: key, vector: vector})
	c.memory[key] = el

	for len(c.memory) > c.maxMemItems {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.memory, oldest.Value.(*embEntry).key)
	}
}

// Stats reports cache performance for observability.
type EmbeddingCacheStats struct {
	Hits        int64
	Misses      int64
	HitRate     float64
	MemoryItems int
}

func (c *EmbeddingCache) Stats() EmbeddingCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return EmbeddingCacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		HitRate:     rate,
		MemoryItems: len(c.memory),
	}
}
