// Package aggregate runs one fetch per tracked instrument concurrently, feeds
// the history store and folds the results into a keyed snapshot.
package aggregate

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketfeed/internal/history"
	"marketfeed/internal/market"
	"marketfeed/internal/observability"
	"marketfeed/internal/provider"
)

// Entry is the per-instrument view consumed by the ticker cards.
type Entry struct {
	market.Quote
	HistoricalData []market.QuotePoint `json:"historicalData"`
	Error          string              `json:"error,omitempty"`
}

// Snapshot maps every tracked instrument to its entry.
type Snapshot map[market.Instrument]Entry

type Aggregator struct {
	provider    provider.Provider
	instruments []market.Instrument
	store       *history.Store
	logger      *zap.Logger
	metrics     *observability.Metrics

	mu     sync.RWMutex
	latest Snapshot
}

func New(p provider.Provider, instruments []market.Instrument, store *history.Store, logger *zap.Logger, metrics *observability.Metrics) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		provider:    p,
		instruments: instruments,
		store:       store,
		logger:      logger,
		metrics:     metrics,
		latest:      Snapshot{},
	}
}

// Instruments returns the tracked set.
func (a *Aggregator) Instruments() []market.Instrument {
	return append([]market.Instrument(nil), a.instruments...)
}

// FetchAll fetches every instrument in parallel and never fails: an
// instrument whose fetch errors or panics gets a zeroed entry carrying the
// message, and its siblings are unaffected.
func (a *Aggregator) FetchAll(ctx context.Context) Snapshot {
	entries := make([]Entry, len(a.instruments))

	var g errgroup.Group
	for i, inst := range a.instruments {
		g.Go(func() error {
			entries[i] = a.fetchOne(ctx, inst)
			return nil
		})
	}
	_ = g.Wait()

	snap := make(Snapshot, len(a.instruments))
	for i, inst := range a.instruments {
		snap[inst] = entries[i]
	}

	a.mu.Lock()
	a.latest = snap
	a.mu.Unlock()
	return snap
}

func (a *Aggregator) fetchOne(ctx context.Context, inst market.Instrument) (entry Entry) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveFetch(string(inst), time.Since(start))
		if r := recover(); r != nil {
			entry = a.failed(inst, fmt.Errorf("panic: %v", r))
		}
	}()

	q, err := a.provider.Fetch(ctx, inst)
	if err != nil {
		return a.failed(inst, err)
	}
	if err := a.store.Append(inst, q.Point()); err != nil {
		return a.failed(inst, err)
	}

	hist := a.store.History(inst)
	a.metrics.RecordReading(string(inst), q.Source, len(hist))
	return Entry{Quote: q, HistoricalData: hist}
}

func (a *Aggregator) failed(inst market.Instrument, err error) Entry {
	a.metrics.RecordFetchError(string(inst))
	a.logger.Error("Fetch failed", zap.String("instrument", string(inst)), zap.Error(err))
	return Entry{HistoricalData: []market.QuotePoint{}, Error: err.Error()}
}

// Latest returns the snapshot from the most recent FetchAll, empty before the
// first one. The returned map is a copy.
func (a *Aggregator) Latest() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.latest)
}
