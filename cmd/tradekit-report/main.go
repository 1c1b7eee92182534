package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"tradekit/internal/config"
	"tradekit/internal/sim"
)

func main() {
	statePath := flag.String("state", "", "paper state file (overrides config)")
	flag.Parse()

	cfgPath := "config/tradekit.yaml"
	if p := os.Getenv("TRADEKIT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	path := cfg.Sim.StatePath
	if *statePath != "" {
		path = *statePath
	}

	trader := sim.New(sim.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := trader.LoadState(path); err != nil {
		log.Fatalf("failed to load paper state from %s: %v", path, err)
	}

	fmt.Println(trader.TradeReport())
	fmt.Println(trader.PortfolioReport(nil))
}
