package sim

import (
	"fmt"
	"math"
	"time"

	"tradekit/internal/domain"
)

// Bracket groups the three linked orders created by PlaceBracketOrder.
type Bracket struct {
	Entry      domain.Order
	StopLoss   domain.Order
	TakeProfit domain.Order
}

// PlaceMarketOrder resolves the current price from src, validates the order,
// checks the position-size guard, and executes immediately at the resolved
// price adjusted for slippage. The last-price cache for symbol is updated
// with the resolved price before validation. On any error no state other
// than the price cache changes.
func (t *PaperTrader) PlaceMarketOrder(symbol string, side domain.Side, qty int64, src PriceSource) (domain.Trade, error) {
	quote, err := resolvePrice(src)
	if err != nil {
		return domain.Trade{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastPrices[symbol] = quote.Price

	if err := t.validateOrder(symbol, side, qty, quote.Price); err != nil {
		return domain.Trade{}, fmt.Errorf("market order: %w", err)
	}
	if !t.withinPositionLimit(symbol, side, qty, quote.Price) {
		return domain.Trade{}, fmt.Errorf("market order %s %d %s: %w (max %.0f%% of equity)",
			side, qty, symbol, ErrPositionLimit, t.maxPositionSize*100)
	}

	return t.executeFill(fill{
		symbol: symbol,
		side:   side,
		qty:    qty,
		price:  t.applySlippage(quote.Price, side),
	}, quote.Time)
}

// PlaceLimitOrder appends a pending limit order to the open set. No fill can
// happen until a matching tick arrives via ProcessTick. A zero time means
// now.
func (t *PaperTrader) PlaceLimitOrder(symbol string, side domain.Side, qty int64, limitPrice float64, at time.Time) (domain.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, err := t.placeLimitLocked(symbol, side, qty, limitPrice, orTime(at), 0, domain.RoleNone, false)
	if err != nil {
		return domain.Order{}, err
	}
	return *o, nil
}

// PlaceStopOrder appends a pending stop order to the open set. When a tick
// crosses the stop price the order executes at the tick price (stop-to-market
// semantics), not at the stop price.
func (t *PaperTrader) PlaceStopOrder(symbol string, side domain.Side, qty int64, stopPrice float64, at time.Time) (domain.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, err := t.placeStopLocked(symbol, side, qty, stopPrice, orTime(at), 0, domain.RoleNone, false)
	if err != nil {
		return domain.Order{}, err
	}
	return *o, nil
}

// PlaceBracketOrder creates a limit entry plus a stop-loss and take-profit
// pair on the opposite side, linked so that a fill of either exit cancels
// its sibling. All three orders are live immediately: the exit legs are
// matchable before the entry has filled, mirroring the behaviour this engine
// was ported from. Callers that need entry-gated exits should place the
// entry alone and call AttachExits once it fills.
func (t *PaperTrader) PlaceBracketOrder(symbol string, side domain.Side, qty int64, entryPrice, stopLoss, target float64, at time.Time) (Bracket, error) {
	switch side {
	case domain.SideBuy:
		if stopLoss >= entryPrice {
			return Bracket{}, fmt.Errorf("%w: for BUY stop loss %.2f must be < entry %.2f", ErrInvalidBracket, stopLoss, entryPrice)
		}
		if target <= entryPrice {
			return Bracket{}, fmt.Errorf("%w: for BUY target %.2f must be > entry %.2f", ErrInvalidBracket, target, entryPrice)
		}
	case domain.SideSell:
		if stopLoss <= entryPrice {
			return Bracket{}, fmt.Errorf("%w: for SELL stop loss %.2f must be > entry %.2f", ErrInvalidBracket, stopLoss, entryPrice)
		}
		if target >= entryPrice {
			return Bracket{}, fmt.Errorf("%w: for SELL target %.2f must be < entry %.2f", ErrInvalidBracket, target, entryPrice)
		}
	default:
		return Bracket{}, fmt.Errorf("%w: side must be BUY or SELL", ErrInvalidOrder)
	}

	now := orTime(at)

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, err := t.placeLimitLocked(symbol, side, qty, entryPrice, now, 0, domain.RoleNone, false)
	if err != nil {
		return Bracket{}, err
	}

	exit := side.Opposite()
	sl, err := t.placeStopLocked(symbol, exit, qty, stopLoss, now, entry.ID, domain.RoleStopLoss, false)
	if err != nil {
		t.removeOrder(entry.ID, domain.OrderStatusCancelled)
		return Bracket{}, err
	}
	tp, err := t.placeLimitLocked(symbol, exit, qty, target, now, entry.ID, domain.RoleTakeProfit, false)
	if err != nil {
		t.removeOrder(entry.ID, domain.OrderStatusCancelled)
		t.removeOrder(sl.ID, domain.OrderStatusCancelled)
		return Bracket{}, err
	}

	return Bracket{Entry: *entry, StopLoss: *sl, TakeProfit: *tp}, nil
}

// AttachExits places a protective stop and/or profit target sized to the
// full open position in symbol. Pass a zero price to skip that leg. Prices
// must be on the correct side of the position's average price.
func (t *PaperTrader) AttachExits(symbol string, stopPrice, targetPrice float64) ([]domain.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[symbol]
	if !ok || pos.Qty == 0 {
		return nil, fmt.Errorf("attach exits %s: %w", symbol, ErrNoPosition)
	}

	long := pos.Qty > 0
	if stopPrice != 0 {
		if long && stopPrice >= pos.AvgPrice {
			return nil, fmt.Errorf("%w: for LONG stop loss %.2f must be < average price %.2f", ErrInvalidPrice, stopPrice, pos.AvgPrice)
		}
		if !long && stopPrice <= pos.AvgPrice {
			return nil, fmt.Errorf("%w: for SHORT stop loss %.2f must be > average price %.2f", ErrInvalidPrice, stopPrice, pos.AvgPrice)
		}
	}
	if targetPrice != 0 {
		if long && targetPrice <= pos.AvgPrice {
			return nil, fmt.Errorf("%w: for LONG take profit %.2f must be > average price %.2f", ErrInvalidPrice, targetPrice, pos.AvgPrice)
		}
		if !long && targetPrice >= pos.AvgPrice {
			return nil, fmt.Errorf("%w: for SHORT take profit %.2f must be < average price %.2f", ErrInvalidPrice, targetPrice, pos.AvgPrice)
		}
	}

	exit := domain.SideSell
	if !long {
		exit = domain.SideBuy
	}
	absQty := pos.Qty
	if absQty < 0 {
		absQty = -absQty
	}
	now := time.Now().UTC()

	var out []domain.Order
	if stopPrice != 0 {
		o, err := t.placeStopLocked(symbol, exit, absQty, stopPrice, now, 0, domain.RoleStopLoss, true)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if targetPrice != 0 {
		o, err := t.placeLimitLocked(symbol, exit, absQty, targetPrice, now, 0, domain.RoleTakeProfit, true)
		if err != nil {
			if len(out) > 0 {
				t.removeOrder(out[0].ID, domain.OrderStatusCancelled)
			}
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

// ClosePosition flattens partial (0 < partial <= 1) of the open position in
// symbol with a market order at the price resolved from src.
func (t *PaperTrader) ClosePosition(symbol string, src PriceSource, partial float64) (domain.Trade, error) {
	if partial <= 0 || partial > 1 {
		return domain.Trade{}, fmt.Errorf("%w: partial %v must be in (0, 1]", ErrInvalidInput, partial)
	}

	t.mu.Lock()
	pos, ok := t.positions[symbol]
	if !ok || pos.Qty == 0 {
		t.mu.Unlock()
		return domain.Trade{}, fmt.Errorf("close %s: %w", symbol, ErrNoPosition)
	}
	absQty := pos.Qty
	side := domain.SideSell
	if absQty < 0 {
		absQty = -absQty
		side = domain.SideBuy
	}
	t.mu.Unlock()

	closeQty := int64(math.Floor(float64(absQty) * partial))
	if closeQty == 0 {
		return domain.Trade{}, fmt.Errorf("close %s: %w: quantity rounds to zero", symbol, ErrInvalidOrder)
	}
	return t.PlaceMarketOrder(symbol, side, closeQty, src)
}

// CloseAllPositions flattens every open position using the supplied price
// map. Symbols without a price are skipped; individual close failures are
// logged and do not stop the sweep.
func (t *PaperTrader) CloseAllPositions(prices map[string]float64) []domain.Trade {
	t.mu.Lock()
	symbols := make([]string, 0, len(t.positions))
	for sym, pos := range t.positions {
		if pos.Qty != 0 {
			symbols = append(symbols, sym)
		}
	}
	t.mu.Unlock()

	var out []domain.Trade
	for _, sym := range symbols {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		tr, err := t.ClosePosition(sym, Price(price), 1.0)
		if err != nil {
			t.log.Warn("close position failed", "symbol", sym, "err", err)
			continue
		}
		out = append(out, tr)
	}
	return out
}

// CancelOrder removes the order from the open set and marks it CANCELLED.
// Cancelling an unknown id is a no-op returning ok=false.
func (t *PaperTrader) CancelOrder(id int64) (domain.Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.removeOrder(id, domain.OrderStatusCancelled)
	if o == nil {
		return domain.Order{}, false
	}
	return *o, true
}

// CancelAllOrders cancels every open order, or only those for symbol when it
// is non-empty. It returns the number of orders cancelled.
func (t *PaperTrader) CancelAllOrders(symbol string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []int64
	for _, o := range t.openOrders {
		if symbol == "" || o.Symbol == symbol {
			ids = append(ids, o.ID)
		}
	}
	for _, id := range ids {
		t.removeOrder(id, domain.OrderStatusCancelled)
	}
	return len(ids)
}

// ---------------------------------------------------------------------------
// Internal placement helpers (caller holds the lock)
// ---------------------------------------------------------------------------

func (t *PaperTrader) placeLimitLocked(symbol string, side domain.Side, qty int64, limitPrice float64, at time.Time, parentID int64, role domain.BracketRole, forPosition bool) (*domain.Order, error) {
	if limitPrice <= 0 {
		return nil, fmt.Errorf("limit order: %w", ErrInvalidPrice)
	}
	if err := validateBasic(symbol, side, qty); err != nil {
		return nil, fmt.Errorf("limit order: %w", err)
	}

	o := &domain.Order{
		ID:          t.nextOrderID,
		Symbol:      symbol,
		Type:        domain.OrderTypeLimit,
		Side:        side,
		Qty:         qty,
		LimitPrice:  round2(limitPrice),
		Status:      domain.OrderStatusPending,
		ParentID:    parentID,
		Role:        role,
		ForPosition: forPosition,
		CreatedAt:   at,
	}
	t.nextOrderID++
	t.openOrders = append(t.openOrders, o)
	t.orderIndex[o.ID] = o
	return o, nil
}

func (t *PaperTrader) placeStopLocked(symbol string, side domain.Side, qty int64, stopPrice float64, at time.Time, parentID int64, role domain.BracketRole, forPosition bool) (*domain.Order, error) {
	if stopPrice <= 0 {
		return nil, fmt.Errorf("stop order: %w", ErrInvalidPrice)
	}
	if err := validateBasic(symbol, side, qty); err != nil {
		return nil, fmt.Errorf("stop order: %w", err)
	}

	o := &domain.Order{
		ID:          t.nextOrderID,
		Symbol:      symbol,
		Type:        domain.OrderTypeStop,
		Side:        side,
		Qty:         qty,
		StopPrice:   round2(stopPrice),
		Status:      domain.OrderStatusPending,
		ParentID:    parentID,
		Role:        role,
		ForPosition: forPosition,
		CreatedAt:   at,
	}
	t.nextOrderID++
	t.openOrders = append(t.openOrders, o)
	t.orderIndex[o.ID] = o
	return o, nil
}

// removeOrder deletes id from the open set and index. A non-empty status is
// written to the removed order; fills pass their final status themselves and
// call with the status already set.
func (t *PaperTrader) removeOrder(id int64, status domain.OrderStatus) *domain.Order {
	o, ok := t.orderIndex[id]
	if !ok {
		return nil
	}
	delete(t.orderIndex, id)
	for i, open := range t.openOrders {
		if open.ID == id {
			t.openOrders = append(t.openOrders[:i], t.openOrders[i+1:]...)
			break
		}
	}
	if status != "" {
		o.Status = status
	}
	return o
}
