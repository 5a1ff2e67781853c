// Package cache holds an LRU+TTL cache for pipeline answers, so
// repeated interactive queries skip the provider round-trips.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"copilot/internal/domain"
)

// AnswerCache caches final answers keyed by the normalized query text.
// Entries expire after the TTL and are invalidated wholesale when the
// knowledge index changes.
type AnswerCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
}

type cacheEntry struct {
	answer    domain.Answer
	timestamp time.Time
	indexGen  uint64
}

// NewAnswerCache creates a cache holding up to maxSize answers for ttl.
func NewAnswerCache(maxSize int, ttl time.Duration) *AnswerCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnswerCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:16])
}

// Get returns the cached answer for a query, if fresh.
func (c *AnswerCache) Get(query string) (domain.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query)
	entry, ok := c.entries[key]
	if !ok {
		return domain.Answer{}, false
	}
	if time.Since(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return domain.Answer{}, false
	}

	c.moveToEnd(key)
	return entry.answer, true
}

// Put stores an answer, evicting the least recently used entry when
// full.
func (c *AnswerCache) Put(query string, answer domain.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query)
	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{answer: answer, timestamp: time.Now(), indexGen: c.indexGen}
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &cacheEntry{answer: answer, timestamp: time.Now(), indexGen: c.indexGen}
	c.order = append(c.order, key)
}

// Invalidate drops every entry. Called after ingestion changes the
// index.
func (c *AnswerCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

// Size returns the number of cached answers.
func (c *AnswerCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *AnswerCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *AnswerCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *AnswerCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
