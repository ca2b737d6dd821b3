package search

import (
	"crypto/md5"
	"fmt"
	"sync"
)

// resultCache is a bounded FIFO cache of search results. Insertion-order
// eviction is deliberate: recency of access doesn't matter much for news
// queries, but a hard memory bound does. Empty result sets are never cached
// so a transient miss can't become sticky.
type resultCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string][]Result
	order   []string
}

func newResultCache(maxSize int) *resultCache {
	return &resultCache{
		maxSize: maxSize,
		entries: make(map[string][]Result, maxSize),
	}
}

// cacheKey derives the lookup key from everything that changes results.
func cacheKey(query, category string, topK int) string {
	sum := md5.Sum(fmt.Appendf(nil, "%s_%s_%d", query, category, topK))
	return fmt.Sprintf("%x", sum)
}

func (c *resultCache) get(key string) ([]Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	results, ok := c.entries[key]
	return results, ok
}

func (c *resultCache) put(key string, results []Result) {
	if len(results) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = results
		return
	}
	if len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = results
	c.order = append(c.order, key)
}
