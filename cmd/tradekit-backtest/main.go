package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"tradekit/internal/config"
	"tradekit/internal/replay"
	"tradekit/internal/replay/builtins"
	"tradekit/internal/store"
	"tradekit/internal/util"
)

func main() {
	strategyName := flag.String("strategy", "", "strategy to run (overrides config)")
	symbol := flag.String("symbol", "", "symbol to backtest (overrides config)")
	startStr := flag.String("start", "", "start date YYYY-MM-DD (overrides config)")
	endStr := flag.String("end", "", "end date YYYY-MM-DD (overrides config)")
	cash := flag.Float64("cash", 0, "initial cash (overrides config)")
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

	name := cfg.Replay.Strategy
	if *strategyName != "" {
		name = *strategyName
	}
	sym := *symbol
	if sym == "" && len(cfg.Replay.Symbols) > 0 {
		sym = cfg.Replay.Symbols[0]
	}
	start, err := resolveDate(*startStr, cfg.Replay.Start)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}
	end, err := resolveDate(*endStr, cfg.Replay.End)
	if err != nil {
		log.Fatalf("invalid end date: %v", err)
	}
	initialCash := cfg.Replay.InitialCash
	if *cash > 0 {
		initialCash = *cash
	}
	if initialCash <= 0 {
		initialCash = 100000
	}
	if name == "" || sym == "" {
		log.Fatal("a strategy and a symbol are required")
	}

	registry := replay.NewRegistry()
	builtins.RegisterAll(registry)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	bt := replay.NewBacktester(pstore, registry)

	res, err := bt.Run(context.Background(), name, sym, start, end, initialCash)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	fmt.Printf("=== Backtest: %s on %s (%s to %s) ===\n",
		name, sym, start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("Total Return: %.2f%%\n", res.TotalReturn)
	fmt.Printf("Max Drawdown: %.2f%%\n", res.MaxDrawdown)
	fmt.Printf("Sharpe Ratio: %.2f\n", res.SharpeRatio)
	fmt.Printf("Final Equity: %.2f\n", res.FinalEquity)
	fmt.Println()
	fmt.Println(res.TradeReport)
}

// resolveDate prefers the flag value over the config value. An empty value
// resolves to today.
func resolveDate(flagVal, cfgVal string) (time.Time, error) {
	v := cfgVal
	if flagVal != "" {
		v = flagVal
	}
	if v == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", v)
}
