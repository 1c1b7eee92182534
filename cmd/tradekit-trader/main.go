package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tradekit/internal/config"
	"tradekit/internal/domain"
	"tradekit/internal/marketdata"
	"tradekit/internal/replay"
	"tradekit/internal/replay/builtins"
	"tradekit/internal/sim"
	"tradekit/internal/util"
)

// entryPct is the fraction of equity committed on each buy signal, in percent.
const entryPct = 20.0

func main() {
	strategyName := flag.String("strategy", "", "strategy to run (overrides config)")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides config)")
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
	symbols := cfg.Replay.Symbols
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}
	if name == "" || len(symbols) == 0 {
		log.Fatal("a strategy and at least one symbol are required")
	}

	registry := replay.NewRegistry()
	builtins.RegisterAll(registry)
	strat, ok := registry.Get(name)
	if !ok {
		log.Fatalf("unknown strategy %q (available: %v)", name, registry.List())
	}

	trader := sim.New(sim.Options{
		InitialCash:      cfg.Sim.InitialCash,
		CommissionPct:    cfg.Sim.CommissionPct,
		SlippagePct:      cfg.Sim.SlippagePct,
		AllowShort:       cfg.Sim.AllowShort,
		MinTradeValue:    cfg.Sim.MinTradeValue,
		MarginMultiplier: cfg.Sim.MarginMultiplier,
		MaxPositionSize:  cfg.Sim.MaxPositionSize,
		Logger:           logger,
	})
	if err := trader.LoadState(cfg.Sim.StatePath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to load paper state: %v", err)
		}
		logger.Info("no saved state, starting fresh", "path", cfg.Sim.StatePath)
	} else {
		logger.Info("resumed paper state", "path", cfg.Sim.StatePath, "cash", trader.Cash())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := strat.Init(ctx); err != nil {
		log.Fatalf("strategy init: %v", err)
	}

	// The stream handler only forwards ticks; the loop below is the single
	// goroutine that touches the trader and the strategy.
	ticks := make(chan domain.Tick, 1024)
	stream := marketdata.NewTickStream(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.Feed)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- stream.Run(ctx, symbols, func(t domain.Tick) {
			select {
			case ticks <- t:
			default:
				logger.Warn("tick buffer full, dropping", "symbol", t.Symbol)
			}
		})
	}()

	logger.Info("paper trader running", "strategy", name, "symbols", symbols)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-streamErr:
			if err != nil && ctx.Err() == nil {
				logger.Error("tick stream stopped", "err", err)
			}
			break loop
		case tick := <-ticks:
			trader.ProcessTick(tick.Symbol, tick.Price, tick.Timestamp)
			signals, err := strat.OnTick(ctx, tick)
			if err != nil {
				logger.Error("strategy error", "symbol", tick.Symbol, "err", err)
				continue
			}
			for _, sig := range signals {
				applySignal(trader, sig, tick, logger)
			}
		}
	}

	if err := trader.SaveState(cfg.Sim.StatePath); err != nil {
		logger.Error("failed to save paper state", "path", cfg.Sim.StatePath, "err", err)
	} else {
		logger.Info("paper state saved", "path", cfg.Sim.StatePath)
	}
	fmt.Println(trader.TradeReport())
}

func applySignal(trader *sim.PaperTrader, sig domain.Signal, tick domain.Tick, logger *slog.Logger) {
	src := sim.Quote{Price: tick.Price, Time: tick.Timestamp}
	switch sig.Type {
	case domain.SignalTypeBuy:
		qty, err := trader.SizeByPercentOfEquity(entryPct, sig.Symbol, src)
		if err != nil || qty <= 0 {
			return
		}
		if _, err := trader.PlaceMarketOrder(sig.Symbol, domain.SideBuy, qty, src); err != nil {
			logger.Debug("buy rejected", "symbol", sig.Symbol, "err", err)
		}
	case domain.SignalTypeSell:
		pos, ok := trader.Positions()[sig.Symbol]
		if !ok || pos.Qty <= 0 {
			return
		}
		if _, err := trader.ClosePosition(sig.Symbol, src, 1.0); err != nil {
			logger.Debug("close rejected", "symbol", sig.Symbol, "err", err)
		}
	}
}
