package ratelimit

import (
	"context"
	"sync"
	"time"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// Concurrent calls are spaced out one Interval apart, or return early if the
// context is canceled.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Fetch(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	if m.Interval > 0 {
		// reserve a slot so parallel instruments queue behind each other
		m.mu.Lock()
		now := time.Now()
		slot := m.next
		if slot.Before(now) {
			slot = now
		}
		m.next = slot.Add(m.Interval)
		m.mu.Unlock()

		if wait := time.Until(slot); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return market.Quote{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	return m.P.Fetch(ctx, inst)
}
