// Package sim implements the paper-trading engine: an in-process simulator
// that accepts market, limit, stop, and bracket orders, matches them against
// incoming price ticks, and maintains cash, positions, realized/unrealized
// P&L, and aggregate performance metrics.
//
// A PaperTrader is driven by exactly one logical caller at a time. A single
// engine-wide mutex guards every public operation, because the engine's
// invariants span cash, positions, and open orders jointly; callers that need
// concurrency should funnel work through one dispatcher goroutine.
package sim

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"tradekit/internal/domain"
)

// Options configures a new PaperTrader. Zero values select the defaults
// listed on each field; a negative value disables the charge or check where
// that is noted.
type Options struct {
	InitialCash      float64 // starting cash, default 100000
	CommissionPct    float64 // commission as a fraction of trade value, default 0.0005, negative disables
	SlippagePct      float64 // slippage as a fraction of price and of value, default 0.0002, negative disables
	AllowShort       bool    // permit selling into negative exposure
	MinTradeValue    float64 // minimum notional for market orders, default 100, negative disables
	MarginMultiplier float64 // cash divisor for opening exposure, default 1
	MaxPositionSize  float64 // per-symbol exposure cap as a fraction of equity, default 1.0
	Logger           *slog.Logger
}

// Metrics aggregates trade outcomes as fills happen, so performance queries
// stay O(1) instead of rescanning the trade list.
type Metrics struct {
	TotalTrades     int64   `json:"totalTrades"`
	WinningTrades   int64   `json:"winningTrades"`
	LosingTrades    int64   `json:"losingTrades"`
	LargestWin      float64 `json:"largestWin"`
	LargestLoss     float64 `json:"largestLoss"`
	TotalCommission float64 `json:"totalCommission"`
	TotalSlippage   float64 `json:"totalSlippage"`
	TotalWinAmount  float64 `json:"totalWinAmount"`
	TotalLossAmount float64 `json:"totalLossAmount"`
}

// PaperTrader simulates order execution against a external price feed. All
// state is owned exclusively by the instance; getters return copies.
type PaperTrader struct {
	mu sync.Mutex

	cash             float64
	initialCash      float64
	commissionPct    float64
	slippagePct      float64
	allowShort       bool
	minTradeValue    float64
	marginMultiplier float64
	maxPositionSize  float64

	nextOrderID int64
	nextTradeID int64

	positions     map[string]*domain.Position
	openOrders    []*domain.Order
	orderIndex    map[int64]*domain.Order
	trades        []domain.Trade
	equityHistory []domain.EquityPoint
	lastPrices    map[string]float64
	metrics       Metrics

	log *slog.Logger
}

// New creates a PaperTrader with the given options.
func New(opts Options) *PaperTrader {
	if opts.InitialCash == 0 {
		opts.InitialCash = 100000
	}
	switch {
	case opts.CommissionPct == 0:
		opts.CommissionPct = 0.0005
	case opts.CommissionPct < 0:
		opts.CommissionPct = 0
	}
	switch {
	case opts.SlippagePct == 0:
		opts.SlippagePct = 0.0002
	case opts.SlippagePct < 0:
		opts.SlippagePct = 0
	}
	switch {
	case opts.MinTradeValue == 0:
		opts.MinTradeValue = 100
	case opts.MinTradeValue < 0:
		opts.MinTradeValue = 0
	}
	if opts.MarginMultiplier == 0 {
		opts.MarginMultiplier = 1
	}
	if opts.MaxPositionSize == 0 {
		opts.MaxPositionSize = 1.0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "sim")
	}

	t := &PaperTrader{
		cash:             opts.InitialCash,
		initialCash:      opts.InitialCash,
		commissionPct:    opts.CommissionPct,
		slippagePct:      opts.SlippagePct,
		allowShort:       opts.AllowShort,
		minTradeValue:    opts.MinTradeValue,
		marginMultiplier: opts.MarginMultiplier,
		maxPositionSize:  opts.MaxPositionSize,
		log:              opts.Logger,
	}
	t.resetLocked()
	return t
}

// Reset restores initial cash and clears positions, orders, trades, equity
// history, price cache, metrics, and id counters.
func (t *PaperTrader) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *PaperTrader) resetLocked() {
	t.cash = t.initialCash
	t.positions = make(map[string]*domain.Position)
	t.openOrders = nil
	t.orderIndex = make(map[int64]*domain.Order)
	t.trades = nil
	t.equityHistory = nil
	t.lastPrices = make(map[string]float64)
	t.nextOrderID = 1
	t.nextTradeID = 1
	t.metrics = Metrics{}
}

// ---------------------------------------------------------------------------
// Read access (defensive copies)
// ---------------------------------------------------------------------------

// Cash returns the current cash balance.
func (t *PaperTrader) Cash() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cash
}

// InitialCash returns the configured starting cash.
func (t *PaperTrader) InitialCash() float64 {
	return t.initialCash
}

// OpenOrders returns a copy of all open orders.
func (t *PaperTrader) OpenOrders() []domain.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Order, 0, len(t.openOrders))
	for _, o := range t.openOrders {
		out = append(out, *o)
	}
	return out
}

// Positions returns a copy of all position records, keyed by symbol.
func (t *PaperTrader) Positions() map[string]domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]domain.Position, len(t.positions))
	for sym, p := range t.positions {
		out[sym] = *p
	}
	return out
}

// TradeHistory returns a copy of all executed trades in order of execution.
func (t *PaperTrader) TradeHistory() []domain.Trade {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Trade, len(t.trades))
	copy(out, t.trades)
	return out
}

// EquityHistory returns a copy of the equity time series.
func (t *PaperTrader) EquityHistory() []domain.EquityPoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.EquityPoint, len(t.equityHistory))
	copy(out, t.equityHistory)
	return out
}

// LastPrices returns a copy of the last-known price per symbol.
func (t *PaperTrader) LastPrices() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.lastPrices))
	for sym, p := range t.lastPrices {
		out[sym] = p
	}
	return out
}

// ---------------------------------------------------------------------------
// Rounding helpers
// ---------------------------------------------------------------------------

// Money amounts are kept at 2 decimal places, percentages at 4.

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

func orTime(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at
}
