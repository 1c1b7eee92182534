package sim

import (
	"fmt"
	"time"

	"tradekit/internal/domain"
)

// fill describes one execution about to be applied to the ledger. Market
// orders execute directly with orderID zero; tick-driven fills carry the
// resting order's id.
type fill struct {
	symbol  string
	side    domain.Side
	qty     int64
	price   float64 // already slippage-adjusted
	orderID int64
}

// applySlippage shifts price against the taker: up for buys, down for sells.
func (t *PaperTrader) applySlippage(price float64, side domain.Side) float64 {
	if t.slippagePct == 0 {
		return price
	}
	factor := 1 + t.slippagePct
	if side == domain.SideSell {
		factor = 1 - t.slippagePct
	}
	return round2(price * factor)
}

// validateBasic checks the fields every order type shares.
func validateBasic(symbol string, side domain.Side, qty int64) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidOrder)
	}
	if !side.Valid() {
		return fmt.Errorf("%w: side must be BUY or SELL", ErrInvalidOrder)
	}
	return nil
}

// validateOrder applies the full pre-acceptance checks for immediate
// execution: basic fields, price, minimum notional, affordability for buys,
// and owned quantity for sells when shorting is off.
func (t *PaperTrader) validateOrder(symbol string, side domain.Side, qty int64, price float64) error {
	if err := validateBasic(symbol, side, qty); err != nil {
		return err
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be > 0", ErrInvalidOrder)
	}

	tradeValue := price * float64(qty)
	if tradeValue < t.minTradeValue {
		return fmt.Errorf("%w: trade value %.2f below minimum %.2f", ErrInvalidOrder, tradeValue, t.minTradeValue)
	}

	if side == domain.SideBuy {
		totalCost := round2(tradeValue * (1 + t.commissionPct + t.slippagePct))
		required := round2(totalCost / t.marginMultiplier)
		if t.cash < required {
			return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, required, round2(t.cash))
		}
	}

	if side == domain.SideSell && !t.allowShort {
		var held int64
		if pos, ok := t.positions[symbol]; ok {
			held = pos.Qty
		}
		if held < qty {
			return fmt.Errorf("%w: cannot sell %d, holding %d", ErrShortingDisabled, qty, held)
		}
	}

	return nil
}

// executeFill applies one fill to cash, positions, metrics, and the trade
// log. Commission and slippage cost are each a percentage of trade value;
// slippage is additionally already baked into fill.price, so it is charged
// both as a price adjustment and as a cost line (the behaviour downstream
// metrics are calibrated to). Caller holds the lock.
func (t *PaperTrader) executeFill(f fill, at time.Time) (domain.Trade, error) {
	if f.qty <= 0 {
		return domain.Trade{}, fmt.Errorf("%w: quantity must be > 0", ErrInvalidOrder)
	}
	price := round2(f.price)
	tradeValue := round2(price * float64(f.qty))
	commission := round2(abs(tradeValue) * t.commissionPct)
	slippageCost := round2(abs(tradeValue) * t.slippagePct)

	var (
		tr  domain.Trade
		err error
	)
	switch f.side {
	case domain.SideBuy:
		tr, err = t.executeBuy(f, price, commission, slippageCost, at)
	case domain.SideSell:
		tr, err = t.executeSell(f, price, commission, slippageCost, at)
	default:
		return domain.Trade{}, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, f.side)
	}
	if err != nil {
		return domain.Trade{}, err
	}

	t.metrics.TotalCommission = round2(t.metrics.TotalCommission + commission)
	t.metrics.TotalSlippage = round2(t.metrics.TotalSlippage + slippageCost)
	return tr, nil
}

// executeBuy opens or grows a long, or covers a short. Cash is debited with
// value plus costs, scaled down by the margin multiplier.
func (t *PaperTrader) executeBuy(f fill, price, commission, slippageCost float64, at time.Time) (domain.Trade, error) {
	tradeValue := round2(price * float64(f.qty))
	totalCost := round2(tradeValue + commission + slippageCost)
	required := round2(totalCost / t.marginMultiplier)

	if t.cash < required {
		return domain.Trade{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, required, round2(t.cash))
	}

	pos := t.positions[f.symbol]
	var pnl float64

	switch {
	case pos == nil || pos.Qty == 0:
		// New long leg; preserve any realized P&L carried on a flat record.
		var carried float64
		if pos != nil {
			carried = pos.Realized
		}
		t.positions[f.symbol] = &domain.Position{
			Symbol:   f.symbol,
			Qty:      f.qty,
			AvgPrice: price,
			Realized: carried,
			Side:     domain.PositionSideLong,
		}

	case pos.Qty > 0:
		// Growing a long: weighted-average entry price.
		newQty := pos.Qty + f.qty
		newAvg := (pos.AvgPrice*float64(pos.Qty) + price*float64(f.qty)) / float64(newQty)
		pos.Qty = newQty
		pos.AvgPrice = round2(newAvg)

	default:
		// Covering a short: realize against the existing average.
		coverQty := min64(f.qty, -pos.Qty)
		pnl = round2((pos.AvgPrice - price) * float64(coverQty))
		pos.Realized = round2(pos.Realized + pnl)
		pos.Qty += coverQty
		t.updateTradeMetrics(pnl)

		if pos.Qty == 0 {
			pos.Side = domain.PositionSideFlat
		}
		// Quantity beyond the cover opens a fresh long leg at the fill
		// price; realized P&L stays cumulative.
		if remaining := f.qty - coverQty; remaining > 0 {
			pos.Qty = remaining
			pos.AvgPrice = price
			pos.Side = domain.PositionSideLong
		}
	}

	t.cash = round2(t.cash - required)

	return t.recordTrade(f.symbol, domain.SideBuy, f.qty, price, commission, slippageCost, pnl, at, f.orderID), nil
}

// executeSell reduces or closes a long, or opens/grows a short. Proceeds are
// credited net of costs; short legs are scaled by the margin multiplier.
func (t *PaperTrader) executeSell(f fill, price, commission, slippageCost float64, at time.Time) (domain.Trade, error) {
	pos := t.positions[f.symbol]
	tradeValue := round2(price * float64(f.qty))
	var pnl float64

	switch {
	case pos == nil || pos.Qty == 0:
		if !t.allowShort {
			return domain.Trade{}, fmt.Errorf("%w: cannot short %s", ErrShortingDisabled, f.symbol)
		}
		var carried float64
		if pos != nil {
			carried = pos.Realized
		}
		t.positions[f.symbol] = &domain.Position{
			Symbol:   f.symbol,
			Qty:      -f.qty,
			AvgPrice: price,
			Realized: carried,
			Side:     domain.PositionSideShort,
		}
		proceeds := round2(tradeValue - commission - slippageCost)
		t.cash = round2(t.cash + round2(proceeds/t.marginMultiplier))

	case pos.Qty > 0:
		if pos.Qty < f.qty && !t.allowShort {
			return domain.Trade{}, fmt.Errorf("%w: have %d, selling %d", ErrShortingDisabled, pos.Qty, f.qty)
		}

		sellQty := min64(f.qty, pos.Qty)
		pnl = round2((price - pos.AvgPrice) * float64(sellQty))
		pos.Realized = round2(pos.Realized + pnl)
		pos.Qty -= sellQty
		t.updateTradeMetrics(pnl)

		proceeds := round2(price*float64(sellQty) - commission - slippageCost)
		t.cash = round2(t.cash + proceeds)

		if pos.Qty == 0 {
			pos.Side = domain.PositionSideFlat
		}
		// Selling past the long flips the excess into a short leg. Costs
		// were computed on the full quantity and are charged on both legs,
		// matching the engine this was ported from.
		if remaining := f.qty - sellQty; remaining > 0 && t.allowShort {
			pos.Qty = -remaining
			pos.AvgPrice = price
			pos.Side = domain.PositionSideShort

			shortValue := round2(price * float64(remaining))
			shortProceeds := round2((shortValue - commission - slippageCost) / t.marginMultiplier)
			t.cash = round2(t.cash + shortProceeds)
		}

	default:
		// Growing a short: weighted average on absolute quantity.
		newQty := pos.Qty - f.qty
		newAvg := (pos.AvgPrice*float64(-pos.Qty) + price*float64(f.qty)) / float64(-newQty)
		pos.Qty = newQty
		pos.AvgPrice = round2(newAvg)

		proceeds := round2(tradeValue - commission - slippageCost)
		t.cash = round2(t.cash + round2(proceeds/t.marginMultiplier))
	}

	// A flat position with no realized P&L carries no information; drop it.
	// Nonzero realized P&L keeps the record for the audit trail.
	if pos := t.positions[f.symbol]; pos != nil && pos.Qty == 0 && pos.Realized == 0 {
		delete(t.positions, f.symbol)
	}

	return t.recordTrade(f.symbol, domain.SideSell, f.qty, price, commission, slippageCost, pnl, at, f.orderID), nil
}

func (t *PaperTrader) recordTrade(symbol string, side domain.Side, qty int64, price, commission, slippageCost, pnl float64, at time.Time, orderID int64) domain.Trade {
	tr := domain.Trade{
		ID:         t.nextTradeID,
		OrderID:    orderID,
		Time:       orTime(at),
		Symbol:     symbol,
		Side:       side,
		Qty:        qty,
		Price:      round2(price),
		Value:      round2(price * float64(qty)),
		Commission: round2(commission),
		Slippage:   round2(slippageCost),
		PnL:        round2(pnl),
	}
	t.nextTradeID++
	t.trades = append(t.trades, tr)
	t.metrics.TotalTrades++
	return tr
}

func (t *PaperTrader) updateTradeMetrics(pnl float64) {
	switch {
	case pnl > 0:
		t.metrics.WinningTrades++
		if pnl > t.metrics.LargestWin {
			t.metrics.LargestWin = pnl
		}
		t.metrics.TotalWinAmount = round2(t.metrics.TotalWinAmount + pnl)
	case pnl < 0:
		t.metrics.LosingTrades++
		if pnl < t.metrics.LargestLoss {
			t.metrics.LargestLoss = pnl
		}
		t.metrics.TotalLossAmount = round2(t.metrics.TotalLossAmount - pnl)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
