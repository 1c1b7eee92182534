package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"tradekit/internal/domain"
	"tradekit/internal/sim"
	"tradekit/internal/store"
)

// ErrUnknownStrategy is returned when Run names a strategy the registry does
// not hold.
var ErrUnknownStrategy = errors.New("replay: unknown strategy")

// ErrNoData is returned when the store holds no bars for the requested
// symbol and range.
var ErrNoData = errors.New("replay: no bar data")

// tradingDaysPerYear annualizes the Sharpe ratio from per-bar returns.
const tradingDaysPerYear = 252

// entryPctOfEquity is the equity fraction committed per buy signal.
const entryPctOfEquity = 20.0

// Result holds the summary metrics produced by a backtest run.
type Result struct {
	TotalReturn  float64 // percent
	MaxDrawdown  float64 // percent, reported positive
	SharpeRatio  float64 // annualized
	TotalTrades  int64
	WinRate      float64 // percent
	ProfitFactor float64
	FinalEquity  float64
	TradeReport  string
}

// Backtester replays stored bars through a strategy, routing signals into
// the simulation engine, and computes performance metrics from the engine's
// equity curve and trade stats.
type Backtester struct {
	store    store.BarStore
	registry *Registry
	log      *slog.Logger
}

// NewBacktester creates a Backtester that reads bars from the given store
// and looks up strategies in the provided registry.
func NewBacktester(barStore store.BarStore, registry *Registry) *Backtester {
	return &Backtester{
		store:    barStore,
		registry: registry,
		log:      slog.Default().With("component", "backtest"),
	}
}

// Run executes a backtest for the named strategy over one symbol's daily
// bars in [start, end], starting with initialCash. Buy signals open a
// position sized at a fixed percent of equity; sell signals close the open
// position. Any position left at the end is closed at the final bar's close.
func (bt *Backtester) Run(ctx context.Context, strategyName, symbol string, start, end time.Time, initialCash float64) (*Result, error) {
	strat, ok := bt.registry.Get(strategyName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategyName)
	}
	if err := strat.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing strategy %q: %w", strategyName, err)
	}

	bars, err := bt.store.ReadBars(ctx, domain.IntervalDaily, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, symbol,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	trader := sim.New(sim.Options{
		InitialCash: initialCash,
		Logger:      bt.log.With("strategy", strategyName),
	})

	equity := make([]float64, 0, len(bars))
	for _, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trader.ProcessTick(bar.Symbol, bar.Close, bar.Timestamp)

		signals, err := strat.OnBar(ctx, bar)
		if err != nil {
			return nil, fmt.Errorf("strategy %q on bar %s: %w", strategyName, bar.Timestamp.Format("2006-01-02"), err)
		}
		for _, sig := range signals {
			if sig.Symbol != symbol {
				continue
			}
			bt.apply(trader, sig, bar)
		}

		// Liquidation value: cash plus position marked at the close.
		pos := trader.Positions()[symbol]
		equity = append(equity, trader.Cash()+float64(pos.Qty)*bar.Close)
	}

	// Flatten at the final close so every trade has a realized outcome.
	last := bars[len(bars)-1]
	trader.CloseAllPositions(map[string]float64{symbol: last.Close})

	final := trader.Equity(nil)
	metrics := trader.Metrics()

	res := &Result{
		TotalTrades:  metrics.TotalTrades,
		WinRate:      metrics.WinRate,
		ProfitFactor: metrics.ProfitFactor,
		FinalEquity:  final,
		TradeReport:  trader.TradeReport(),
	}
	if initialCash != 0 {
		res.TotalReturn = (final - initialCash) / initialCash * 100
	}
	res.MaxDrawdown = maxDrawdown(equity)
	res.SharpeRatio = sharpe(equity)
	return res, nil
}

// apply routes one signal into the engine. Fills that fail validation (cash,
// position limits) are logged and skipped, matching how a live account would
// reject the order.
func (bt *Backtester) apply(trader *sim.PaperTrader, sig domain.Signal, bar domain.Bar) {
	src := sim.Quote{Price: bar.Close, Time: bar.Timestamp}

	switch sig.Type {
	case domain.SignalTypeBuy:
		qty, err := trader.SizeByPercentOfEquity(entryPctOfEquity, sig.Symbol, src)
		if err != nil || qty <= 0 {
			return
		}
		if _, err := trader.PlaceMarketOrder(sig.Symbol, domain.SideBuy, qty, src); err != nil {
			bt.log.Debug("buy rejected", "symbol", sig.Symbol, "qty", qty, "err", err)
		}

	case domain.SignalTypeSell:
		pos, ok := trader.Positions()[sig.Symbol]
		if !ok || pos.Qty <= 0 {
			return
		}
		if _, err := trader.ClosePosition(sig.Symbol, src, 1.0); err != nil {
			bt.log.Debug("close rejected", "symbol", sig.Symbol, "err", err)
		}
	}
}

// maxDrawdown returns the largest peak-to-trough equity decline in percent.
func maxDrawdown(equity []float64) float64 {
	var peak, worst float64
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe computes the annualized Sharpe ratio of per-bar returns, with a
// zero risk-free rate. Fewer than two points, or zero variance, yield 0.
func sharpe(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}
