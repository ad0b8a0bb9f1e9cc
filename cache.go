package tangguh

import (
	"container/list"
	"context"
	"net/http"
	"sync"
	"time"
)

// CacheEntry represents a cached response.
type CacheEntry struct {
	Response  *Response
	ExpiresAt time.Time
}

// Cache is the store backing the caching plugin.
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, entry *CacheEntry, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

// DefaultCacheMaxSize bounds a MemoryCache when no size is given.
const DefaultCacheMaxSize = 1000

// MemoryCache is a bounded in-memory Cache. Entries expire by TTL, checked
// lazily on read, and are evicted in FIFO insertion order when the store is
// full. Safe for concurrent use; readers never observe a partially written
// entry.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*list.Element
	order   *list.List // front = oldest inserted

	now func() time.Time
}

type memoryCacheItem struct {
	key   string
	entry *CacheEntry
}

// NewMemoryCache creates a MemoryCache holding at most maxSize entries.
// maxSize <= 0 falls back to DefaultCacheMaxSize.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheMaxSize
	}
	return &MemoryCache{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the entry for key if present and not expired. Stale entries
// are purged on read and reported as a miss, so expired data is never
// served regardless of read pressure.
func (c *MemoryCache) Get(key string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	item := elem.Value.(*memoryCacheItem)
	if !c.now().Before(item.entry.ExpiresAt) {
		c.removeLocked(elem)
		return nil, false
	}

	return item.entry, true
}

// Set stores entry under key with expiry now+ttl. A ttl <= 0 is a no-op:
// such responses are never cached. Re-setting an existing key refreshes the
// entry and moves it to the back of the eviction order. When the store is
// full the oldest-inserted entry is evicted before inserting.
func (c *MemoryCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry.ExpiresAt = c.now().Add(ttl)

	if elem, exists := c.entries[key]; exists {
		c.removeLocked(elem)
	}
	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.removeLocked(oldest)
		}
	}

	c.entries[key] = c.order.PushBack(&memoryCacheItem{key: key, entry: entry})
}

// Delete removes the entry for key, if any.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[key]; exists {
		c.removeLocked(elem)
	}
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including any not yet lazily
// purged.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) removeLocked(elem *list.Element) {
	item := elem.Value.(*memoryCacheItem)
	delete(c.entries, item.key)
	c.order.Remove(elem)
}

// CacheCondition determines whether a request is cacheable.
type CacheCondition func(req *Request) bool

// DefaultCacheCondition caches GET and HEAD requests only.
func DefaultCacheCondition(req *Request) bool {
	return req.Method() == http.MethodGet || req.Method() == http.MethodHead
}

// DefaultCacheKeyFunc keys entries by the request's stable cache key.
func DefaultCacheKeyFunc(req *Request) string {
	return req.CacheKey()
}

// Context keys for per-request cache control.
type contextKey string

const cacheControlKey contextKey = "tangguh_cache_control"

// CacheControl holds per-request cache overrides carried on the context.
type CacheControl struct {
	Enabled bool
	TTL     time.Duration
}

// WithContextCacheEnabled forces caching for the request on ctx.
func WithContextCacheEnabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{Enabled: true})
}

// WithContextCacheDisabled disables caching for the request on ctx.
func WithContextCacheDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{Enabled: false})
}

// WithContextCacheTTL enables caching with a per-request TTL override.
func WithContextCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{Enabled: true, TTL: ttl})
}

func cacheControlFrom(ctx context.Context) (*CacheControl, bool) {
	cc, ok := ctx.Value(cacheControlKey).(*CacheControl)
	return cc, ok
}
