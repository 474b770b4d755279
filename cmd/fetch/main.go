package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"marketfeed/internal/app"
	"marketfeed/internal/config"
)

func main() {
	var (
		configPath string
		count      int
		interval   time.Duration
		timeout    int
		verbose    bool
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config file (optional)")
	flag.IntVar(&count, "count", 1, "number of fetch cycles; history accumulates across cycles")
	flag.DurationVar(&interval, "interval", 0, "pause between cycles")
	flag.IntVar(&timeout, "timeout", 0, "request timeout seconds (0 = config)")
	flag.BoolVar(&verbose, "v", false, "log to stderr")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}
	// one-shot runs never mirror to Redis
	cfg.Redis.Enabled = false

	logger := zap.NewNop()
	if verbose {
		if logger, err = cfg.Log.Logger(); err != nil {
			log.Fatalf("logger: %v", err)
		}
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	defer a.Close()

	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			time.Sleep(interval)
		}
		snap := a.Poller.Refresh(ctx)
		if i < count-1 {
			continue
		}
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			log.Fatalf("encode: %v", err)
		}
		fmt.Println(string(b))
	}
}
