package sim

import (
	"time"

	"tradekit/internal/domain"
)

// ProcessTick advances simulated time for one symbol. It records the price,
// evaluates open stop orders first and limit orders second (stop-loss urgency
// beats profit-taking on the same tick), and appends an equity-history point
// from the post-fill state. Orders on other symbols are untouched.
//
// Ticks never fail: a non-positive price is logged and ignored with no state
// change, and an order whose execution fails at trigger time (for example a
// buy stop hitting insufficient cash) is marked FAILED, logged, and removed
// from the open set.
func (t *PaperTrader) ProcessTick(symbol string, price float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if price <= 0 {
		t.log.Warn("ignoring invalid tick", "symbol", symbol, "price", price)
		return
	}
	now := orTime(at)
	t.lastPrices[symbol] = price

	// 1) Stop orders: trigger when the tick crosses the stop price, execute
	// at the tick price adjusted for slippage.
	for _, o := range t.snapshotOpenOrders() {
		if o.Symbol != symbol || o.Type != domain.OrderTypeStop {
			continue
		}
		crossed := (o.Side == domain.SideBuy && price >= o.StopPrice) ||
			(o.Side == domain.SideSell && price <= o.StopPrice)
		if !crossed {
			continue
		}

		o.Triggered = true
		o.Status = domain.OrderStatusTriggered

		_, err := t.executeFill(fill{
			symbol:  symbol,
			side:    o.Side,
			qty:     o.Qty,
			price:   t.applySlippage(price, o.Side),
			orderID: o.ID,
		}, now)
		if err != nil {
			t.log.Warn("stop order execution failed", "order", o.ID, "symbol", symbol, "err", err)
			o.Status = domain.OrderStatusFailed
			t.removeOrder(o.ID, "")
			continue
		}

		o.Status = domain.OrderStatusFilled
		t.cancelSiblings(o)
		t.removeOrder(o.ID, "")
	}

	// 2) Limit orders remaining after stops: fill at the limit price (not
	// the tick price), adjusted for slippage.
	for _, o := range t.snapshotOpenOrders() {
		if o.Symbol != symbol || o.Type != domain.OrderTypeLimit {
			continue
		}
		marketable := (o.Side == domain.SideBuy && price <= o.LimitPrice) ||
			(o.Side == domain.SideSell && price >= o.LimitPrice)
		if !marketable {
			continue
		}

		_, err := t.executeFill(fill{
			symbol:  symbol,
			side:    o.Side,
			qty:     o.Qty,
			price:   t.applySlippage(o.LimitPrice, o.Side),
			orderID: o.ID,
		}, now)
		if err != nil {
			t.log.Warn("limit order execution failed", "order", o.ID, "symbol", symbol, "err", err)
			o.Status = domain.OrderStatusFailed
			t.removeOrder(o.ID, "")
			continue
		}

		o.Status = domain.OrderStatusFilled
		t.cancelSiblings(o)
		t.removeOrder(o.ID, "")
	}

	// 3) Equity snapshot from the post-fill state at this tick's price.
	prices := t.mergedPrices(symbol, price)
	t.equityHistory = append(t.equityHistory, domain.EquityPoint{
		Time:   now,
		Equity: t.equityLocked(prices),
	})
}

// snapshotOpenOrders copies the open-order slice so fills can mutate it
// mid-iteration.
func (t *PaperTrader) snapshotOpenOrders() []*domain.Order {
	out := make([]*domain.Order, len(t.openOrders))
	copy(out, t.openOrders)
	return out
}

// cancelSiblings enforces one-cancels-other discipline: when a bracket exit
// leg fills, the other leg sharing its parent id is cancelled atomically
// with the fill. Orders without a parent (including position-attached exits)
// have no siblings.
func (t *PaperTrader) cancelSiblings(o *domain.Order) {
	if o.Role != domain.RoleStopLoss && o.Role != domain.RoleTakeProfit {
		return
	}
	if o.ParentID == 0 {
		return
	}
	var ids []int64
	for _, open := range t.openOrders {
		if open.ParentID == o.ParentID && open.ID != o.ID {
			ids = append(ids, open.ID)
		}
	}
	for _, id := range ids {
		t.removeOrder(id, domain.OrderStatusCancelled)
	}
}

// mergedPrices overlays price for symbol on the last-known price map.
func (t *PaperTrader) mergedPrices(symbol string, price float64) map[string]float64 {
	out := make(map[string]float64, len(t.lastPrices)+1)
	for sym, p := range t.lastPrices {
		out[sym] = p
	}
	out[symbol] = price
	return out
}
