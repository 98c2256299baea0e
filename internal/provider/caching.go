package provider

import (
	"context"
	"sync"
	"time"

	"chanlens/pkg/model"
)

type cacheEntry struct {
	bars      []model.Bar
	fetchedAt time.Time
}

// CachingProvider wraps a Provider with an in-memory per-query cache.
// Designed for the web server where the structure and breakout views of
// the same window are requested back to back.
type CachingProvider struct {
	inner Provider
	ttl   time.Duration
	cache map[string]cacheEntry
	mu    sync.Mutex
	now   func() time.Time
}

// NewCachingProvider creates a caching wrapper. A zero ttl keeps entries
// until Purge.
func NewCachingProvider(inner Provider, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		inner: inner,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

func (p *CachingProvider) GetBars(ctx context.Context, q Query) ([]model.Bar, error) {
	norm, err := q.Normalize()
	if err != nil {
		return p.inner.GetBars(ctx, q)
	}
	key := norm.Key()

	p.mu.Lock()
	entry, ok := p.cache[key]
	p.mu.Unlock()
	if ok && (p.ttl == 0 || p.now().Sub(entry.fetchedAt) < p.ttl) {
		return entry.bars, nil
	}

	bars, err := p.inner.GetBars(ctx, norm)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[key] = cacheEntry{bars: bars, fetchedAt: p.now()}
	p.mu.Unlock()

	return bars, nil
}

// Purge drops every cached window
func (p *CachingProvider) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]cacheEntry)
}
