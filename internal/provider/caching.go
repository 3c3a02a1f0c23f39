package provider

import (
	"context"
	"sync"
	"time"

	"eventedge/pkg/model"
)

// CachingProvider wraps a Provider with an in-memory cache so repeated
// analyses of one symbol (fixed table, grid, analyze) hit the API once.
// Bars are fetched from the earliest requested date and trimmed per call.
// Entries older than the TTL are refetched so a long-running server picks up
// new trading days and new event dates.
type CachingProvider struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	bars    map[string]cachedBars
	anchors map[anchorKey]cachedAnchors
}

type cachedBars struct {
	from    time.Time
	bars    []model.PriceBar
	fetched time.Time
}

type cachedAnchors struct {
	dates   []time.Time
	fetched time.Time
}

type anchorKey struct {
	symbol string
	kind   model.EventKind
}

// NewCachingProvider creates a caching wrapper. ttl <= 0 keeps entries for
// the life of the process.
func NewCachingProvider(inner Provider, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		bars:    make(map[string]cachedBars),
		anchors: make(map[anchorKey]cachedAnchors),
	}
}

func (p *CachingProvider) fresh(fetched time.Time) bool {
	return p.ttl <= 0 || p.now().Sub(fetched) < p.ttl
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

// GetDailyBars serves from cache when an earlier or equal start was fetched
func (p *CachingProvider) GetDailyBars(ctx context.Context, symbol string, from time.Time) ([]model.PriceBar, error) {
	p.mu.Lock()
	cached, ok := p.bars[symbol]
	p.mu.Unlock()
	if ok && !from.Before(cached.from) && p.fresh(cached.fetched) {
		return trimBars(cached.bars, from), nil
	}

	bars, err := p.inner.GetDailyBars(ctx, symbol, from)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.bars[symbol] = cachedBars{from: from, bars: bars, fetched: p.now()}
	p.mu.Unlock()
	return bars, nil
}

// GetAnchors caches event dates per symbol and kind
func (p *CachingProvider) GetAnchors(ctx context.Context, symbol string, kind model.EventKind) ([]time.Time, error) {
	key := anchorKey{symbol: symbol, kind: kind}
	p.mu.Lock()
	cached, ok := p.anchors[key]
	p.mu.Unlock()
	if ok && p.fresh(cached.fetched) {
		return append([]time.Time(nil), cached.dates...), nil
	}

	dates, err := p.inner.GetAnchors(ctx, symbol, kind)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.anchors[key] = cachedAnchors{dates: dates, fetched: p.now()}
	p.mu.Unlock()
	return append([]time.Time(nil), dates...), nil
}

// trimBars drops bars dated before from; bars must be ascending
func trimBars(bars []model.PriceBar, from time.Time) []model.PriceBar {
	for i, b := range bars {
		if !b.Date.Before(from) {
			return bars[i:]
		}
	}
	return nil
}
