package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"marketfeed/internal/config"
	"marketfeed/internal/httpx"
	"marketfeed/internal/market"
	"marketfeed/internal/provider/finnhub"
)

// dump is what we print: the raw upstream payload plus how the feed would
// treat it.
type dump struct {
	Instrument  market.Instrument     `json:"instrument"`
	Symbol      string                `json:"symbol"`
	Raw         finnhub.QuoteResponse `json:"raw"`
	NotEntitled bool                  `json:"notEntitled"`
	FetchedAt   time.Time             `json:"fetchedAt"`
}

func main() {
	var (
		cfgPath string
		instArg string
		symbol  string
	)
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config file (optional)")
	flag.StringVar(&instArg, "instrument", string(market.Nifty50), "instrument to query")
	flag.StringVar(&symbol, "symbol", "", "raw Finnhub symbol; overrides -instrument mapping")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.Finnhub.Enabled() {
		log.Fatal("FINNHUB_API_KEY not set")
	}

	inst, err := market.ParseInstrument(instArg)
	if err != nil {
		log.Fatalf("instrument: %v", err)
	}
	if symbol == "" {
		symbol = market.DefaultSymbols[inst]
		for name, s := range cfg.Finnhub.Symbols {
			if i, err := market.ParseInstrument(name); err == nil && i == inst {
				symbol = s
			}
		}
	}

	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	client, err := finnhub.NewClient(cfg.Finnhub.APIKey,
		finnhub.WithBaseURL(cfg.Finnhub.BaseURL),
		finnhub.WithHTTPClient(httpx.New(timeout)),
	)
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	raw, err := client.GetQuote(ctx, symbol)
	if err != nil {
		log.Fatalf("quote %s: %v", symbol, err)
	}

	out := dump{Instrument: inst, Symbol: symbol, Raw: raw, NotEntitled: raw.PricesZero(), FetchedAt: time.Now().UTC()}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode: %v", err)
	}
	if out.NotEntitled {
		fmt.Fprintln(os.Stderr, "all price fields are zero: the key is not entitled to this symbol")
	}
}
