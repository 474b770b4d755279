package cache

import (
	"context"
	"sync"
	"time"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

// entry stores the cached reading for a single instrument with expiry.
type entry struct {
	expiresAt time.Time
	quote     market.Quote
}

// Provider caches readings per instrument for a TTL so that bursts of
// on-demand refreshes do not each cost an upstream request. Errors are not
// cached.
type Provider struct {
	P        provider.Provider
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[market.Instrument]entry
}

func (c *Provider) Name() string { return c.P.Name() }

// Fetch returns the cached reading for inst when still valid.
func (c *Provider) Fetch(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	if c.TTL <= 0 {
		return c.P.Fetch(ctx, inst)
	}

	now := time.Now()
	c.mu.RLock()
	e, ok := c.items[inst]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.quote, nil
	}

	q, err := c.P.Fetch(ctx, inst)
	if err != nil {
		return market.Quote{}, err
	}

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[market.Instrument]entry)
	}
	c.items[inst] = entry{expiresAt: now.Add(c.TTL), quote: q}
	// best-effort cap cache size: expired first, then arbitrary
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != inst {
				delete(c.items, k)
			}
		}
	}
	c.mu.Unlock()
	return q, nil
}
