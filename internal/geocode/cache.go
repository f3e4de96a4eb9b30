package geocode

import (
	"strings"
	"sync"
	"time"

	"github.com/example/rideboard/internal/models"
)

// Cache is a tiny in-memory cache for geocoder lookups keyed by the
// normalized address text. Addresses rarely move, so a generous TTL is fine.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	coord models.Coord
	ts    time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Get returns the cached coordinate and true if present and not expired.
func (c *Cache) Get(address string) (models.Coord, bool) {
	k := keyFor(address)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return models.Coord{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return models.Coord{}, false
	}
	return e.coord, true
}

// Set stores a resolved coordinate in the cache.
func (c *Cache) Set(address string, coord models.Coord) {
	k := keyFor(address)
	c.mu.Lock()
	c.store[k] = cacheEntry{coord: coord, ts: time.Now()}
	c.mu.Unlock()
}
