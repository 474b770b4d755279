// Package poller drives the periodic fetch cycle and fans each snapshot out
// to publishers.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketfeed/internal/aggregate"
	"marketfeed/internal/observability"
)

const DefaultInterval = 30 * time.Second

// Fetcher is satisfied by *aggregate.Aggregator.
type Fetcher interface {
	FetchAll(ctx context.Context) aggregate.Snapshot
	Latest() aggregate.Snapshot
}

//go:generate mockgen -source=poller.go -destination=mock_poller_test.go -package=poller

// Publisher receives every snapshot the poller produces.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, snap aggregate.Snapshot) error
}

type Poller struct {
	fetcher    Fetcher
	interval   time.Duration
	publishers []Publisher
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu sync.Mutex // one fetch cycle at a time
}

func New(f Fetcher, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics, pubs ...Publisher) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{fetcher: f, interval: interval, publishers: pubs, logger: logger, metrics: metrics}
}

// Run fetches once right away and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Poller started", zap.Duration("interval", p.interval))
	p.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh performs one fetch cycle and publishes the result. Concurrent
// callers are serialized.
func (p *Poller) Refresh(ctx context.Context) aggregate.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := p.fetcher.FetchAll(ctx)
	p.metrics.RecordPoll(time.Now())

	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, snap); err != nil {
			p.metrics.RecordPublishError(pub.Name())
			p.logger.Warn("Publish failed", zap.String("publisher", pub.Name()), zap.Error(err))
		}
	}
	return snap
}

// Current returns the last snapshot without fetching; empty before the first
// cycle.
func (p *Poller) Current() aggregate.Snapshot { return p.fetcher.Latest() }

// Latest returns the last snapshot, fetching one first if none exists yet.
func (p *Poller) Latest(ctx context.Context) aggregate.Snapshot {
	if snap := p.fetcher.Latest(); len(snap) > 0 {
		return snap
	}
	return p.Refresh(ctx)
}
