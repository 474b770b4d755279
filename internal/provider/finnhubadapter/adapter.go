package finnhubadapter

import (
	"context"
	"fmt"
	"time"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
	"marketfeed/internal/provider/finnhub"
)

// QuoteClient is the part of the Finnhub client the adapter needs.
type QuoteClient interface {
	GetQuote(ctx context.Context, symbol string) (finnhub.QuoteResponse, error)
}

type Config struct {
	Name string // display name, default: Finnhub
	// SymbolMap overrides market.DefaultSymbols per instrument.
	SymbolMap map[market.Instrument]string
	// Now stamps readings whose upstream timestamp is missing. Defaults to time.Now.
	Now func() time.Time
}

// Adapter turns Finnhub quotes into live market readings.
type Adapter struct {
	cfg     Config
	client  QuoteClient
	symbols map[market.Instrument]string
}

func New(cfg Config, client QuoteClient) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Finnhub"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	symbols := make(map[market.Instrument]string, len(market.DefaultSymbols))
	for inst, sym := range market.DefaultSymbols {
		symbols[inst] = sym
	}
	for inst, sym := range cfg.SymbolMap {
		if sym != "" {
			symbols[inst] = sym
		}
	}
	return &Adapter{cfg: cfg, client: client, symbols: symbols}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// Symbol returns the upstream symbol used for inst.
func (a *Adapter) Symbol(inst market.Instrument) (string, bool) {
	sym, ok := a.symbols[inst]
	return sym, ok
}

func (a *Adapter) Fetch(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	sym, ok := a.symbols[inst]
	if !ok {
		return market.Quote{}, fmt.Errorf("%s: %w: %q", a.cfg.Name, market.ErrUnknownInstrument, inst)
	}

	res, err := a.client.GetQuote(ctx, sym)
	if err != nil {
		return market.Quote{}, fmt.Errorf("%s quote %s: %w", a.cfg.Name, sym, err)
	}
	if res.PricesZero() {
		return market.Quote{}, fmt.Errorf("%s quote %s: %w", a.cfg.Name, sym, provider.ErrNotEntitled)
	}

	ts := res.Timestamp * 1000
	if res.Timestamp <= 0 {
		ts = a.cfg.Now().UnixMilli()
	}
	return market.Quote{
		Current:       res.Current,
		Change:        res.Change,
		ChangePercent: res.ChangePercent,
		High:          res.High,
		Low:           res.Low,
		Open:          res.Open,
		PreviousClose: res.PreviousClose,
		Timestamp:     ts,
		Source:        market.SourceLive,
	}, nil
}
