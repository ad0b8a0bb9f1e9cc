package tangguh

import (
	"context"
	"time"
)

// CachePlugin serves cacheable requests from a Cache store. Its
// before-hook short-circuits the call on a hit; its after-hook stores
// successful (<400) responses to cacheable requests. Cacheable means the
// cache condition holds (GET/HEAD by default) and the effective TTL is
// positive; per-request overrides travel on the context (see
// WithContextCacheEnabled and friends).
type CachePlugin struct {
	BasePlugin

	store     Cache
	ttl       time.Duration
	keyFunc   func(*Request) string
	condition CacheCondition
	metrics   *MetricsCollector
}

// NewCachePlugin creates a caching plugin over the given store with the
// given default TTL.
func NewCachePlugin(store Cache, ttl time.Duration) *CachePlugin {
	return &CachePlugin{
		store:     store,
		ttl:       ttl,
		keyFunc:   DefaultCacheKeyFunc,
		condition: DefaultCacheCondition,
	}
}

// WithKeyFunc overrides how cache keys are derived from requests.
func (p *CachePlugin) WithKeyFunc(fn func(*Request) string) *CachePlugin {
	p.keyFunc = fn
	return p
}

// WithCondition overrides which requests are cacheable.
func (p *CachePlugin) WithCondition(fn CacheCondition) *CachePlugin {
	p.condition = fn
	return p
}

// Store exposes the backing cache for invalidation and inspection.
func (p *CachePlugin) Store() Cache { return p.store }

// BeforeRequest short-circuits with the cached response on a hit.
func (p *CachePlugin) BeforeRequest(ctx context.Context, req *Request) (*Request, *Response, error) {
	if !p.cacheable(ctx, req) {
		return nil, nil, nil
	}

	key := p.keyFunc(req)
	entry, found := p.store.Get(key)
	if !found {
		if p.metrics != nil {
			p.metrics.RecordCacheMiss(req.Method(), req.Endpoint())
		}
		return nil, nil, nil
	}

	if p.metrics != nil {
		p.metrics.RecordCacheHit(req.Method(), req.Endpoint())
	}

	resp := entry.Response.clone()
	resp.FromCache = true
	return nil, resp, nil
}

// AfterRequest stores successful responses to cacheable requests. Cached
// (short-circuited) responses are not re-stored.
func (p *CachePlugin) AfterRequest(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	if resp.FromCache || resp.StatusCode >= 400 {
		return nil, nil
	}
	if !p.cacheable(ctx, req) {
		return nil, nil
	}

	ttl := p.effectiveTTL(ctx)
	if ttl <= 0 {
		return nil, nil
	}

	p.store.Set(p.keyFunc(req), &CacheEntry{Response: resp.clone()}, ttl)
	if p.metrics != nil {
		p.metrics.RecordCacheSize("default", p.store.Len())
	}
	return nil, nil
}

func (p *CachePlugin) cacheable(ctx context.Context, req *Request) bool {
	if cc, ok := cacheControlFrom(ctx); ok {
		if !cc.Enabled {
			return false
		}
		return p.condition(req)
	}
	if p.effectiveTTL(ctx) <= 0 {
		return false
	}
	return p.condition(req)
}

func (p *CachePlugin) effectiveTTL(ctx context.Context) time.Duration {
	if cc, ok := cacheControlFrom(ctx); ok && cc.TTL > 0 {
		return cc.TTL
	}
	return p.ttl
}
