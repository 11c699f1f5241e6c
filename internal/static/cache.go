package static

import (
	"path"
	"sync"
	"time"
)

// IndexName is what "/", index.html and index.htm resolve to.
const IndexName = "frontend.html"

// Cache holds the loaded assets in memory, keyed by file name.
type Cache struct {
	mu         sync.RWMutex
	assets     map[string]Asset
	lastReload time.Time
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{assets: make(map[string]Asset)}
}

// Replace swaps in a new asset set.
func (c *Cache) Replace(assets []Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.assets = make(map[string]Asset, len(assets))
	for _, a := range assets {
		c.assets[a.Name] = a
	}
	c.lastReload = time.Now()
}

// Get retrieves an asset by name
func (c *Cache) Get(name string) (Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.assets[name]
	return a, ok
}

// Count returns the number of cached assets
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.assets)
}

// LastReload returns when the cache was last replaced (zero if never).
func (c *Cache) LastReload() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReload
}

// ResolveName maps a request path to a cached asset name: the last path
// element, with the directory and index names mapped to IndexName.
func ResolveName(urlPath string) string {
	if urlPath == "" || urlPath[len(urlPath)-1] == '/' {
		return IndexName
	}
	name := path.Base(urlPath)
	switch name {
	case "", ".", "/", "index.html", "index.htm":
		return IndexName
	}
	return name
}
