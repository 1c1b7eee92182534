package sim

import (
	"fmt"
	"sort"
	"strings"
)

// PositionSnapshot is one row of a portfolio snapshot, marked against the
// supplied (or last-known) prices.
type PositionSnapshot struct {
	Symbol     string  `json:"symbol"`
	Qty        int64   `json:"qty"`
	Side       string  `json:"side"`
	AvgPrice   float64 `json:"avgPrice"`
	Realized   float64 `json:"realized"`
	LastPrice  float64 `json:"lastPrice"`
	Unrealized float64 `json:"unrealized"`
	Value      float64 `json:"value"`
}

// PortfolioSnapshot is a point-in-time view of the account.
type PortfolioSnapshot struct {
	Cash            float64            `json:"cash"`
	InitialCash     float64            `json:"initialCash"`
	Positions       []PositionSnapshot `json:"positions"`
	TotalUnrealized float64            `json:"totalUnrealized"`
	TotalRealized   float64            `json:"totalRealized"`
	Equity          float64            `json:"equity"`
	TotalPnL        float64            `json:"totalPnL"`
	ReturnPct       float64            `json:"returnPct"`
}

// PerformanceMetrics summarizes closed-trade statistics. Averages and ratios
// are derived from the running totals, not recomputed from the trade list.
type PerformanceMetrics struct {
	TotalTrades     int64   `json:"totalTrades"`
	WinningTrades   int64   `json:"winningTrades"`
	LosingTrades    int64   `json:"losingTrades"`
	WinRate         float64 `json:"winRate"`
	LargestWin      float64 `json:"largestWin"`
	LargestLoss     float64 `json:"largestLoss"`
	AvgWin          float64 `json:"avgWin"`
	AvgLoss         float64 `json:"avgLoss"`
	ProfitFactor    float64 `json:"profitFactor"`
	Expectancy      float64 `json:"expectancy"`
	TotalCommission float64 `json:"totalCommission"`
	TotalSlippage   float64 `json:"totalSlippage"`
}

// Equity returns cash plus unrealized P&L marked at the given prices. A nil
// map marks at last-known prices; symbols absent from both mark at their
// average price.
func (t *PaperTrader) Equity(prices map[string]float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prices == nil {
		prices = t.lastPrices
	}
	return t.equityLocked(prices)
}

// Snapshot builds a portfolio snapshot marked at the given prices (nil means
// last-known). Flat positions with no realized P&L are omitted; flat positions
// that carry realized P&L are kept so closed-trade results stay visible.
func (t *PaperTrader) Snapshot(prices map[string]float64) PortfolioSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prices == nil {
		prices = t.lastPrices
	}

	snap := PortfolioSnapshot{
		Cash:        round2(t.cash),
		InitialCash: t.initialCash,
	}

	symbols := make([]string, 0, len(t.positions))
	for sym := range t.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		pos := t.positions[sym]
		if pos.Qty == 0 && pos.Realized == 0 {
			continue
		}

		last, ok := prices[sym]
		if !ok {
			last = pos.AvgPrice
		}
		var unreal float64
		if pos.Qty != 0 {
			unreal = round2((last - pos.AvgPrice) * float64(pos.Qty))
		}

		snap.Positions = append(snap.Positions, PositionSnapshot{
			Symbol:     sym,
			Qty:        pos.Qty,
			Side:       string(pos.Side),
			AvgPrice:   round2(pos.AvgPrice),
			Realized:   round2(pos.Realized),
			LastPrice:  last,
			Unrealized: unreal,
			Value:      round2(last * abs(float64(pos.Qty))),
		})

		snap.TotalUnrealized += unreal
		snap.TotalRealized += pos.Realized
	}

	snap.TotalUnrealized = round2(snap.TotalUnrealized)
	snap.TotalRealized = round2(snap.TotalRealized)
	snap.Equity = round2(t.cash + snap.TotalUnrealized)
	snap.TotalPnL = round2(snap.TotalRealized + snap.TotalUnrealized)
	if t.initialCash != 0 {
		snap.ReturnPct = round4((snap.Equity - t.initialCash) / t.initialCash * 100)
	}
	return snap
}

// Metrics returns the closed-trade performance summary.
func (t *PaperTrader) Metrics() PerformanceMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metricsLocked()
}

func (t *PaperTrader) metricsLocked() PerformanceMetrics {
	m := PerformanceMetrics{
		TotalTrades:     t.metrics.TotalTrades,
		WinningTrades:   t.metrics.WinningTrades,
		LosingTrades:    t.metrics.LosingTrades,
		LargestWin:      round2(t.metrics.LargestWin),
		LargestLoss:     round2(t.metrics.LargestLoss),
		TotalCommission: round2(t.metrics.TotalCommission),
		TotalSlippage:   round2(t.metrics.TotalSlippage),
	}
	if t.metrics.TotalTrades > 0 {
		m.WinRate = round4(float64(t.metrics.WinningTrades) / float64(t.metrics.TotalTrades) * 100)
		m.Expectancy = round2((t.metrics.TotalWinAmount - t.metrics.TotalLossAmount) / float64(t.metrics.TotalTrades))
	}
	if t.metrics.WinningTrades > 0 {
		m.AvgWin = round2(t.metrics.TotalWinAmount / float64(t.metrics.WinningTrades))
	}
	if t.metrics.LosingTrades > 0 {
		m.AvgLoss = round2(t.metrics.TotalLossAmount / float64(t.metrics.LosingTrades))
	}
	if t.metrics.TotalLossAmount > 0 {
		m.ProfitFactor = round2(t.metrics.TotalWinAmount / t.metrics.TotalLossAmount)
	}
	return m
}

// TradeReport renders the trade history and performance metrics as text.
func (t *PaperTrader) TradeReport() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.trades) == 0 {
		return "No trades executed yet."
	}

	rule := strings.Repeat("=", 80)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nTRADE HISTORY REPORT\n%s\n\n", rule, rule)

	for _, tr := range t.trades {
		fmt.Fprintf(&b, "Trade #%d | %s\n", tr.ID, tr.Time.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "  %s %d x %s @ $%.2f\n", tr.Side, tr.Qty, tr.Symbol, tr.Price)
		fmt.Fprintf(&b, "  Value: $%.2f | Commission: $%.2f | Slippage: $%.2f\n", tr.Value, tr.Commission, tr.Slippage)
		if tr.PnL != 0 {
			fmt.Fprintf(&b, "  P&L: $%.2f\n", tr.PnL)
		}
		b.WriteString("\n")
	}

	m := t.metricsLocked()
	fmt.Fprintf(&b, "%s\nPERFORMANCE METRICS\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Total Trades: %d\n", m.TotalTrades)
	fmt.Fprintf(&b, "Win Rate: %.2f%%\n", m.WinRate)
	fmt.Fprintf(&b, "Winning Trades: %d | Losing Trades: %d\n", m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(&b, "Largest Win: $%.2f | Largest Loss: $%.2f\n", m.LargestWin, m.LargestLoss)
	fmt.Fprintf(&b, "Average Win: $%.2f | Average Loss: $%.2f\n", m.AvgWin, m.AvgLoss)
	fmt.Fprintf(&b, "Profit Factor: %.2f\n", m.ProfitFactor)
	fmt.Fprintf(&b, "Expectancy: $%.2f per trade\n", m.Expectancy)
	fmt.Fprintf(&b, "Total Commission Paid: $%.2f\n", m.TotalCommission)
	fmt.Fprintf(&b, "Total Slippage Cost: $%.2f\n", m.TotalSlippage)
	b.WriteString(rule + "\n")
	return b.String()
}

// PortfolioReport renders a portfolio snapshot, open positions, and open
// orders as text, marked at the given prices (nil means last-known).
func (t *PaperTrader) PortfolioReport(prices map[string]float64) string {
	snap := t.Snapshot(prices)
	openOrders := t.OpenOrders()

	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nPORTFOLIO SNAPSHOT\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Cash: $%.2f\n", snap.Cash)
	fmt.Fprintf(&b, "Initial Capital: $%.2f\n", snap.InitialCash)
	fmt.Fprintf(&b, "Current Equity: $%.2f\n", snap.Equity)
	fmt.Fprintf(&b, "Total Return: $%.2f (%.4f%%)\n\n", round2(snap.Equity-snap.InitialCash), snap.ReturnPct)
	fmt.Fprintf(&b, "Total Realized P&L: $%.2f\n", snap.TotalRealized)
	fmt.Fprintf(&b, "Total Unrealized P&L: $%.2f\n", snap.TotalUnrealized)
	fmt.Fprintf(&b, "Total P&L: $%.2f\n\n", snap.TotalPnL)

	fmt.Fprintf(&b, "%s\nOPEN POSITIONS\n%s\n", thin, thin)
	open := 0
	for _, p := range snap.Positions {
		if p.Qty == 0 {
			continue
		}
		open++
		fmt.Fprintf(&b, "%s | %s\n", p.Symbol, p.Side)
		fmt.Fprintf(&b, "  Qty: %d @ Avg $%.2f\n", p.Qty, p.AvgPrice)
		fmt.Fprintf(&b, "  Current: $%.2f | Value: $%.2f\n", p.LastPrice, p.Value)
		fmt.Fprintf(&b, "  Unrealized P&L: $%.2f\n", p.Unrealized)
		if p.Realized != 0 {
			fmt.Fprintf(&b, "  Realized P&L: $%.2f\n", p.Realized)
		}
		b.WriteString("\n")
	}
	if open == 0 {
		b.WriteString("No open positions.\n")
	}

	fmt.Fprintf(&b, "%s\nOPEN ORDERS\n%s\n", thin, thin)
	if len(openOrders) == 0 {
		b.WriteString("No open orders.\n")
	}
	for _, o := range openOrders {
		fmt.Fprintf(&b, "Order #%d | %s | %s %d x %s\n", o.ID, o.Type, o.Side, o.Qty, o.Symbol)
		if o.LimitPrice != 0 {
			fmt.Fprintf(&b, "  Limit Price: $%.2f\n", o.LimitPrice)
		}
		if o.StopPrice != 0 {
			fmt.Fprintf(&b, "  Stop Price: $%.2f\n", o.StopPrice)
		}
		fmt.Fprintf(&b, "  Status: %s\n", o.Status)
		if o.Role != "" {
			fmt.Fprintf(&b, "  Role: %s\n", o.Role)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	return b.String()
}
