package sim

import (
	"testing"
	"time"

	"tradekit/internal/domain"
)

func tick(t *testing.T, tr *PaperTrader, symbol string, price float64) {
	t.Helper()
	tr.ProcessTick(symbol, price, time.Time{})
}

func TestLimitOrderFillsAtLimitPrice(t *testing.T) {
	tr := newNoCostTrader(Options{})

	if _, err := tr.PlaceLimitOrder("AAA", domain.SideBuy, 10, 100, time.Time{}); err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}

	// Tick above the limit leaves the order resting.
	tick(t, tr, "AAA", 105)
	if got := len(tr.OpenOrders()); got != 1 {
		t.Fatalf("open orders after non-marketable tick = %d, want 1", got)
	}

	// Tick through the limit fills at the limit price, not the tick price.
	tick(t, tr, "AAA", 95)
	if got := len(tr.OpenOrders()); got != 0 {
		t.Fatalf("open orders after fill = %d, want 0", got)
	}

	trades := tr.TradeHistory()
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	if trades[0].Price != 100 {
		t.Errorf("fill price = %v, want 100 (the limit price)", trades[0].Price)
	}
	if got := tr.Cash(); got != 99000 {
		t.Errorf("cash = %v, want 99000", got)
	}
}

func TestStopOrderFillsAtTickPrice(t *testing.T) {
	tr := newNoCostTrader(Options{})
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := tr.PlaceStopOrder("AAA", domain.SideSell, 10, 95, time.Time{}); err != nil {
		t.Fatalf("PlaceStopOrder: %v", err)
	}

	// A gap through the stop executes at the tick price, not the stop price.
	tick(t, tr, "AAA", 90)

	trades := tr.TradeHistory()
	last := trades[len(trades)-1]
	if last.Price != 90 {
		t.Errorf("stop fill price = %v, want 90 (the tick price)", last.Price)
	}
	if last.PnL != -100 {
		t.Errorf("stop fill pnl = %v, want -100", last.PnL)
	}
	if got := len(tr.OpenOrders()); got != 0 {
		t.Errorf("open orders = %d, want 0", got)
	}
	// The flat record stays because it carries realized P&L.
	pos, ok := tr.Positions()["AAA"]
	if !ok {
		t.Fatal("flat position with realized P&L should be retained")
	}
	if pos.Qty != 0 || pos.Realized != -100 {
		t.Errorf("position = qty %d realized %v, want qty 0 realized -100", pos.Qty, pos.Realized)
	}
}

func TestStopsEvaluatedBeforeLimitsOnSameTick(t *testing.T) {
	tr := newNoCostTrader(Options{})
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 20, Price(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// Place the limit first so list order cannot explain the outcome.
	if _, err := tr.PlaceLimitOrder("AAA", domain.SideBuy, 10, 96, time.Time{}); err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if _, err := tr.PlaceStopOrder("AAA", domain.SideSell, 10, 95, time.Time{}); err != nil {
		t.Fatalf("PlaceStopOrder: %v", err)
	}

	// 94 crosses both; the protective stop must execute first.
	tick(t, tr, "AAA", 94)

	trades := tr.TradeHistory()
	if len(trades) != 3 {
		t.Fatalf("trades = %d, want 3", len(trades))
	}
	if trades[1].Side != domain.SideSell || trades[1].Price != 94 {
		t.Errorf("second trade = %+v, want the stop's SELL @94", trades[1])
	}
	if trades[2].Side != domain.SideBuy || trades[2].Price != 96 {
		t.Errorf("third trade = %+v, want the limit's BUY @96", trades[2])
	}
}

func TestBracketTakeProfitCancelsStop(t *testing.T) {
	tr := newNoCostTrader(Options{})

	if _, err := tr.PlaceBracketOrder("AAA", domain.SideBuy, 10, 100, 90, 120, time.Time{}); err != nil {
		t.Fatalf("PlaceBracketOrder: %v", err)
	}

	tick(t, tr, "AAA", 100) // entry fills
	if got := len(tr.OpenOrders()); got != 2 {
		t.Fatalf("open orders after entry fill = %d, want 2", got)
	}

	tick(t, tr, "AAA", 120) // take profit fills, stop cancelled
	if got := len(tr.OpenOrders()); got != 0 {
		t.Fatalf("open orders after take profit = %d, want 0 (sibling cancelled)", got)
	}

	trades := tr.TradeHistory()
	last := trades[len(trades)-1]
	if last.PnL != 200 {
		t.Errorf("take profit pnl = %v, want 200", last.PnL)
	}
	if _, ok := tr.Positions()["AAA"]; !ok {
		t.Error("flat position with realized pnl should be kept")
	}
}

func TestBracketStopCancelsTakeProfit(t *testing.T) {
	tr := newNoCostTrader(Options{})

	if _, err := tr.PlaceBracketOrder("AAA", domain.SideBuy, 10, 100, 90, 120, time.Time{}); err != nil {
		t.Fatalf("PlaceBracketOrder: %v", err)
	}

	tick(t, tr, "AAA", 100) // entry fills
	tick(t, tr, "AAA", 85)  // stop fills at the tick price, target cancelled

	if got := len(tr.OpenOrders()); got != 0 {
		t.Fatalf("open orders = %d, want 0", got)
	}
	trades := tr.TradeHistory()
	last := trades[len(trades)-1]
	if last.Price != 85 {
		t.Errorf("stop fill price = %v, want 85", last.Price)
	}
	if last.PnL != -150 {
		t.Errorf("stop fill pnl = %v, want -150", last.PnL)
	}
}

func TestPositionExitsAreNotLinked(t *testing.T) {
	tr := newNoCostTrader(Options{})
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := tr.AttachExits("AAA", 90, 120); err != nil {
		t.Fatalf("AttachExits: %v", err)
	}

	tick(t, tr, "AAA", 120) // target fills

	// Unlike a bracket, the attached stop has no parent and survives.
	remaining := tr.OpenOrders()
	if len(remaining) != 1 || remaining[0].Type != domain.OrderTypeStop {
		t.Fatalf("remaining orders = %+v, want the dangling stop", remaining)
	}

	// With the position flat the dangling stop cannot execute; it fails at
	// trigger time and is removed.
	tick(t, tr, "AAA", 90)
	if got := len(tr.OpenOrders()); got != 0 {
		t.Errorf("open orders after failed stop = %d, want 0", got)
	}
}

func TestFailedTriggeredOrderRemoved(t *testing.T) {
	tr := newNoCostTrader(Options{InitialCash: 1000})

	if _, err := tr.PlaceStopOrder("AAA", domain.SideBuy, 100, 105, time.Time{}); err != nil {
		t.Fatalf("PlaceStopOrder: %v", err)
	}

	tick(t, tr, "AAA", 106) // triggers, but 10600 > 1000 cash

	if got := len(tr.OpenOrders()); got != 0 {
		t.Errorf("open orders = %d, want 0 (failed order removed)", got)
	}
	if got := len(tr.TradeHistory()); got != 0 {
		t.Errorf("trades = %d, want 0", got)
	}
	if got := tr.Cash(); got != 1000 {
		t.Errorf("cash = %v, want 1000 (unchanged)", got)
	}
	if got := len(tr.EquityHistory()); got != 1 {
		t.Errorf("equity history = %d points, want 1 (tick still recorded)", got)
	}
}

func TestInvalidTickIgnored(t *testing.T) {
	tr := newNoCostTrader(Options{})
	if _, err := tr.PlaceLimitOrder("AAA", domain.SideBuy, 10, 100, time.Time{}); err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}

	tick(t, tr, "AAA", 0)
	tick(t, tr, "AAA", -5)

	if got := len(tr.LastPrices()); got != 0 {
		t.Errorf("last prices recorded for invalid ticks: %v", tr.LastPrices())
	}
	if got := len(tr.EquityHistory()); got != 0 {
		t.Errorf("equity history = %d points, want 0", got)
	}
	if got := len(tr.OpenOrders()); got != 1 {
		t.Errorf("open orders = %d, want 1", got)
	}
}

func TestTickOnlyTouchesItsSymbol(t *testing.T) {
	tr := newNoCostTrader(Options{})
	if _, err := tr.PlaceLimitOrder("BBB", domain.SideBuy, 10, 100, time.Time{}); err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}

	tick(t, tr, "AAA", 50) // would be marketable if it were BBB

	if got := len(tr.OpenOrders()); got != 1 {
		t.Errorf("open orders = %d, want 1 (BBB order untouched)", got)
	}
	if got := len(tr.TradeHistory()); got != 0 {
		t.Errorf("trades = %d, want 0", got)
	}
}

func TestEquityHistoryTracksTicks(t *testing.T) {
	tr := newNoCostTrader(Options{})
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	tick(t, tr, "AAA", 100)
	tick(t, tr, "AAA", 110)

	hist := tr.EquityHistory()
	if len(hist) != 2 {
		t.Fatalf("equity history = %d points, want 2", len(hist))
	}
	// Cash is 99000 after the buy; equity adds the mark-to-average delta.
	if hist[0].Equity != 99000 {
		t.Errorf("equity at 100 = %v, want 99000", hist[0].Equity)
	}
	if hist[1].Equity != 99100 {
		t.Errorf("equity at 110 = %v, want 99100", hist[1].Equity)
	}
}
