package sim

import (
	"fmt"
	"math"

	"tradekit/internal/domain"
)

// SizeByPercentOfEquity returns the whole-share quantity that allocates pct
// percent of current equity to symbol at the price resolved from src. Equity
// is marked with last-known prices overlaid by the resolved price. Floors at
// zero.
func (t *PaperTrader) SizeByPercentOfEquity(pct float64, symbol string, src PriceSource) (int64, error) {
	quote, err := resolvePrice(src)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	equity := t.equityLocked(t.mergedPrices(symbol, quote.Price))
	t.mu.Unlock()

	allocated := equity * (pct / 100)
	qty := int64(math.Floor(allocated / quote.Price))
	if qty < 0 {
		return 0, nil
	}
	return qty, nil
}

// SizeByRisk returns the quantity whose loss between entry and stop equals
// riskAmount. A non-nil src overrides entryPrice with a resolved live price.
// Floors at one share.
func (t *PaperTrader) SizeByRisk(symbol string, entryPrice, stopPrice, riskAmount float64, src PriceSource) (int64, error) {
	entry := entryPrice
	if src != nil {
		quote, err := resolvePrice(src)
		if err != nil {
			return 0, err
		}
		entry = quote.Price
	}

	perShare := abs(entry - stopPrice)
	if perShare <= 0 {
		return 0, fmt.Errorf("size %s: %w", symbol, ErrNoRiskDefined)
	}

	qty := int64(math.Floor(riskAmount / perShare))
	if qty < 1 {
		return 1, nil
	}
	return qty, nil
}

// KellySize converts win statistics into a share quantity using a half-Kelly
// fraction capped at 25% of equity. A non-positive Kelly fraction sizes to
// zero (no edge, no trade).
func KellySize(winRate, avgWin, avgLoss, equity, price float64) (int64, error) {
	if avgLoss <= 0 {
		return 0, fmt.Errorf("%w: avgLoss must be > 0", ErrInvalidInput)
	}
	if winRate < 0 || winRate > 1 {
		return 0, fmt.Errorf("%w: winRate must be in [0, 1]", ErrInvalidInput)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: price must be > 0", ErrInvalidInput)
	}

	b := avgWin / avgLoss
	kelly := (b*winRate - (1 - winRate)) / b
	if kelly <= 0 {
		return 0, nil
	}

	safe := math.Min(kelly*0.5, 0.25)
	if safe < 0 {
		safe = 0
	}
	return int64(math.Floor(equity * safe / price)), nil
}

// withinPositionLimit projects the absolute position value after the
// candidate order and compares it against maxPositionSize of current equity.
// Caller holds the lock.
func (t *PaperTrader) withinPositionLimit(symbol string, side domain.Side, qty int64, price float64) bool {
	projected := qty
	if pos, ok := t.positions[symbol]; ok {
		if side == domain.SideBuy {
			if pos.Qty > 0 {
				projected = pos.Qty + qty
			} else {
				projected = max64(qty, qty+pos.Qty)
			}
		} else {
			if pos.Qty < 0 {
				projected = -pos.Qty + qty
			} else {
				projected = max64(qty, qty-pos.Qty)
			}
		}
	}

	positionValue := abs(float64(projected)) * price
	equity := t.equityLocked(t.mergedPrices(symbol, price))
	if equity <= 0 {
		return false
	}
	return positionValue/equity <= t.maxPositionSize
}

// equityLocked computes cash plus unrealized P&L marked at the given prices.
// Symbols missing from the map mark at their average price (zero unrealized).
// Caller holds the lock.
func (t *PaperTrader) equityLocked(prices map[string]float64) float64 {
	var unreal float64
	for sym, pos := range t.positions {
		if pos.Qty == 0 {
			continue
		}
		last, ok := prices[sym]
		if !ok {
			last = pos.AvgPrice
		}
		unreal += (last - pos.AvgPrice) * float64(pos.Qty)
	}
	return round2(t.cash + unreal)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
