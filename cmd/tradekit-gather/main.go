package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"tradekit/internal/broker"
	"tradekit/internal/config"
	"tradekit/internal/domain"
	"tradekit/internal/marketdata"
	"tradekit/internal/store"
	"tradekit/internal/util"
)

func main() {
	skipAssets := flag.Bool("skip-assets", false, "skip refreshing the asset reference cache")
	skipBars := flag.Bool("skip-bars", false, "skip pulling daily candles")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides config)")
	days := flag.Int("days", 120, "number of recent daily bars to pull per symbol")
	flag.Parse()

	cfgPath := "config/tradekit.yaml"
	if p := os.Getenv("TRADEKIT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !*skipAssets {
		refStore, err := store.NewReferenceStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open reference store: %v", err)
		}
		alp := broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		assets, err := alp.FetchAssets(ctx)
		if err != nil {
			log.Fatalf("failed to fetch assets: %v", err)
		}
		if err := refStore.UpsertAssets(ctx, assets); err != nil {
			log.Fatalf("failed to store assets: %v", err)
		}
		n, _ := refStore.Count(ctx)
		logger.Info("asset reference cache refreshed", "assets", n)
		refStore.Close()
	}

	if *skipBars {
		return
	}

	symbols := cfg.Gather.Symbols
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}
	if len(symbols) == 0 {
		logger.Warn("no symbols configured, nothing to pull")
		return
	}

	candles := marketdata.NewCandleClient(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		cfg.Alpaca.Feed,
		cfg.Gather.RateLimitPerMin,
	)
	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	workers := cfg.Gather.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				bars, err := candles.LastDailyBars(ctx, sym, *days)
				if err != nil {
					logger.Error("failed to pull bars", "symbol", sym, "err", err)
					continue
				}
				if err := pstore.WriteBars(ctx, domain.IntervalDaily, bars); err != nil {
					logger.Error("failed to store bars", "symbol", sym, "err", err)
					continue
				}
				logger.Info("bars stored", "symbol", sym, "count", len(bars))
			}
		}()
	}

dispatch:
	for _, sym := range symbols {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- strings.TrimSpace(sym):
		}
	}
	close(jobs)
	wg.Wait()
}
