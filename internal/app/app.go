// Package app assembles the provider chain and the long-running components
// from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketfeed/internal/aggregate"
	"marketfeed/internal/config"
	"marketfeed/internal/history"
	"marketfeed/internal/httpx"
	"marketfeed/internal/market"
	"marketfeed/internal/observability"
	"marketfeed/internal/poller"
	"marketfeed/internal/provider"
	"marketfeed/internal/provider/cache"
	"marketfeed/internal/provider/fallback"
	"marketfeed/internal/provider/finnhub"
	"marketfeed/internal/provider/finnhubadapter"
	"marketfeed/internal/provider/ratelimit"
	"marketfeed/internal/provider/synthetic"
	"marketfeed/internal/snapshot"
	"marketfeed/internal/stream"
)

type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Provider   provider.Provider
	Store      *history.Store
	Aggregator *aggregate.Aggregator
	Poller     *poller.Poller
	Hub        *stream.Hub

	redis redis.UniversalClient
}

// New builds every component. The Redis publisher is only attached when
// enabled; an unreachable Redis is logged and publishing keeps retrying on
// each poll.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics("")

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	p, err := BuildProvider(cfg.Finnhub, httpClient, logger, metrics)
	if err != nil {
		return nil, err
	}

	instruments := market.All()
	store := history.NewStore(instruments, cfg.Poller.HistorySize)
	agg := aggregate.New(p, instruments, store, logger, metrics)
	hub := stream.NewHub(logger, metrics)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Provider:   p,
		Store:      store,
		Aggregator: agg,
		Hub:        hub,
	}

	pubs := []poller.Publisher{hub}
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rp := snapshot.NewRedisPublisher(a.redis, cfg.Redis.Key, cfg.Redis.Channel, time.Duration(cfg.Redis.TTLSec)*time.Second)
		if err := rp.Ping(ctx); err != nil {
			logger.Warn("Redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		pubs = append(pubs, rp)
	}
	a.Poller = poller.New(agg, cfg.Poller.Interval(), logger, metrics, pubs...)

	logger.Info("Market feed assembled",
		zap.String("provider", p.Name()),
		zap.Bool("live", cfg.Finnhub.Enabled()),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Int("history_size", store.Capacity()),
	)
	return a, nil
}

// BuildProvider wraps the live Finnhub adapter in rate limiting and caching
// and puts the synthetic generator behind it. Without an API key the chain is
// synthetic only.
func BuildProvider(cfg config.Finnhub, httpClient finnhub.HTTPClient, logger *zap.Logger, metrics *observability.Metrics) (provider.Provider, error) {
	syn := synthetic.New(nil, nil, nil)
	if !cfg.Enabled() {
		logger.Warn("FINNHUB_API_KEY not set; serving synthetic quotes only")
		return &fallback.Provider{Fallback: syn, Logger: logger, Metrics: metrics}, nil
	}

	symbols := make(map[market.Instrument]string, len(cfg.Symbols))
	for name, sym := range cfg.Symbols {
		inst, err := market.ParseInstrument(name)
		if err != nil {
			return nil, fmt.Errorf("finnhub.symbols: %w", err)
		}
		symbols[inst] = sym
	}

	client, err := finnhub.NewClient(cfg.APIKey,
		finnhub.WithBaseURL(cfg.BaseURL),
		finnhub.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("finnhub client: %w", err)
	}

	var p provider.Provider = finnhubadapter.New(finnhubadapter.Config{Name: "Finnhub", SymbolMap: symbols}, client)
	// Prefer token bucket with burst if RPM is set, otherwise use min-interval
	switch {
	case cfg.MaxRequestsPerMinute > 0:
		p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.PerMinute(cfg.MaxRequestsPerMinute, cfg.Burst)}
	case cfg.MinRequestIntervalSec > 0:
		p = &ratelimit.MinInterval{P: p, Interval: time.Duration(cfg.MinRequestIntervalSec) * time.Second}
	}
	if cfg.CacheTTLSeconds > 0 {
		p = &cache.Provider{P: p, TTL: time.Duration(cfg.CacheTTLSeconds) * time.Second, MaxItems: len(market.All())}
	}
	return &fallback.Provider{P: p, Fallback: syn, Logger: logger, Metrics: metrics}, nil
}

// Close releases the stream clients and the Redis connection.
func (a *App) Close() error {
	a.Hub.Close()
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := a.Logger.Sync(); err != nil {
		a.Logger.Debug("Logger sync", zap.Error(err))
	}
	return errors.Join(errs...)
}
