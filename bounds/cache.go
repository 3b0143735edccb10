package bounds

import (
	"crypto/sha256"
	"sync"
)

type cacheKey struct {
	sum  [sha256.Size]byte
	tmpl Template
}

// Cache stores analysis results by document content and template size,
// so that a document is measured again only when its bytes change.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]Result
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]Result)}
}

func newCacheKey(doc []byte, tmpl Template) cacheKey {
	return cacheKey{sum: sha256.Sum256(doc), tmpl: tmpl}
}

// Get returns the stored result, if any.
func (c *Cache) Get(doc []byte, tmpl Template) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[newCacheKey(doc, tmpl)]
	return res, ok
}

// Put stores the result for `doc`.
func (c *Cache) Put(doc []byte, tmpl Template, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[cacheKey]Result)
	}
	c.entries[newCacheKey(doc, tmpl)] = res
}

// Len returns the number of stored results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]Result)
}
