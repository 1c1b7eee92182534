package sim

import (
	"errors"
	"testing"

	"tradekit/internal/domain"
)

func TestWeightedAverageEntry(t *testing.T) {
	tr := newNoCostTrader(Options{})

	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100)); err != nil {
		t.Fatalf("buy 10 @100: %v", err)
	}
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(200)); err != nil {
		t.Fatalf("buy 10 @200: %v", err)
	}

	pos := tr.Positions()["AAA"]
	if pos.Qty != 20 {
		t.Errorf("qty = %d, want 20", pos.Qty)
	}
	if pos.AvgPrice != 150 {
		t.Errorf("avg price = %v, want 150", pos.AvgPrice)
	}

	tradeSell, err := tr.PlaceMarketOrder("AAA", domain.SideSell, 15, Price(180))
	if err != nil {
		t.Fatalf("sell 15 @180: %v", err)
	}
	if tradeSell.PnL != 450 {
		t.Errorf("sell pnl = %v, want 450", tradeSell.PnL)
	}

	pos = tr.Positions()["AAA"]
	if pos.Qty != 5 {
		t.Errorf("qty after partial sell = %d, want 5", pos.Qty)
	}
	if pos.AvgPrice != 150 {
		t.Errorf("avg price after partial sell = %v, want 150 (unchanged)", pos.AvgPrice)
	}
	if pos.Realized != 450 {
		t.Errorf("realized = %v, want 450", pos.Realized)
	}

	// 100000 - 1000 - 2000 + 2700
	if got := tr.Cash(); got != 99700 {
		t.Errorf("cash = %v, want 99700", got)
	}
	if got := tr.Equity(map[string]float64{"AAA": 180}); got != 99850 {
		t.Errorf("equity at 180 = %v, want 99850", got)
	}
}

func TestShortCoverAndFlip(t *testing.T) {
	tr := newNoCostTrader(Options{AllowShort: true})

	if _, err := tr.PlaceMarketOrder("AAA", domain.SideSell, 10, Price(100)); err != nil {
		t.Fatalf("sell short 10 @100: %v", err)
	}
	pos := tr.Positions()["AAA"]
	if pos.Qty != -10 || pos.AvgPrice != 100 || pos.Side != domain.PositionSideShort {
		t.Fatalf("short position = %+v, want qty -10 avg 100 SHORT", pos)
	}
	if got := tr.Cash(); got != 101000 {
		t.Errorf("cash after short = %v, want 101000", got)
	}

	// Cover the 10 and flip 5 long.
	cover, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 15, Price(90))
	if err != nil {
		t.Fatalf("buy 15 @90: %v", err)
	}
	if cover.PnL != 100 {
		t.Errorf("cover pnl = %v, want 100", cover.PnL)
	}

	pos = tr.Positions()["AAA"]
	if pos.Qty != 5 {
		t.Errorf("qty after flip = %d, want 5", pos.Qty)
	}
	if pos.AvgPrice != 90 {
		t.Errorf("avg price of new long leg = %v, want 90", pos.AvgPrice)
	}
	if pos.Side != domain.PositionSideLong {
		t.Errorf("side = %v, want LONG", pos.Side)
	}
	if pos.Realized != 100 {
		t.Errorf("realized = %v, want 100", pos.Realized)
	}

	// 100000 + 1000 - 1350
	if got := tr.Cash(); got != 99650 {
		t.Errorf("cash = %v, want 99650", got)
	}
	// Cash plus the new leg marked at cost reflects initial plus realized pnl
	// once the open leg's notional is added back.
	if got := tr.Equity(map[string]float64{"AAA": 90}); got != 99650 {
		t.Errorf("equity at 90 = %v, want 99650", got)
	}
}

func TestGrowShortAveragesOnAbsQty(t *testing.T) {
	tr := newNoCostTrader(Options{AllowShort: true})

	if _, err := tr.PlaceMarketOrder("AAA", domain.SideSell, 10, Price(100)); err != nil {
		t.Fatalf("sell 10 @100: %v", err)
	}
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideSell, 10, Price(120)); err != nil {
		t.Fatalf("sell 10 @120: %v", err)
	}

	pos := tr.Positions()["AAA"]
	if pos.Qty != -20 {
		t.Errorf("qty = %d, want -20", pos.Qty)
	}
	if pos.AvgPrice != 110 {
		t.Errorf("avg price = %v, want 110", pos.AvgPrice)
	}
}

func TestCommissionAndSlippageCharged(t *testing.T) {
	// Default frictions: 0.05% commission, 0.02% slippage.
	tr := New(Options{Logger: quietLogger()})

	trade, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100))
	if err != nil {
		t.Fatalf("buy 10 @100: %v", err)
	}

	// Slippage lifts the buy price to 100.02 before costs are computed on
	// the adjusted notional of 1000.20.
	if trade.Price != 100.02 {
		t.Errorf("fill price = %v, want 100.02", trade.Price)
	}
	if trade.Value != 1000.2 {
		t.Errorf("trade value = %v, want 1000.2", trade.Value)
	}
	if trade.Commission != 0.5 {
		t.Errorf("commission = %v, want 0.5", trade.Commission)
	}
	if trade.Slippage != 0.2 {
		t.Errorf("slippage cost = %v, want 0.2", trade.Slippage)
	}

	if got := tr.Cash(); got != 98999.1 {
		t.Errorf("cash = %v, want 98999.1", got)
	}

	m := tr.Metrics()
	if m.TotalCommission != 0.5 {
		t.Errorf("total commission = %v, want 0.5", m.TotalCommission)
	}
	if m.TotalSlippage != 0.2 {
		t.Errorf("total slippage = %v, want 0.2", m.TotalSlippage)
	}
}

func TestFailedFillLeavesCostMetricsUntouched(t *testing.T) {
	tr := New(Options{InitialCash: 500, MinTradeValue: -1, Logger: quietLogger()})

	_, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 100, Price(100))
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("error = %v, want ErrInsufficientCash", err)
	}

	m := tr.Metrics()
	if m.TotalCommission != 0 || m.TotalSlippage != 0 {
		t.Errorf("cost metrics after failed fill = %v/%v, want 0/0", m.TotalCommission, m.TotalSlippage)
	}
	if m.TotalTrades != 0 {
		t.Errorf("total trades after failed fill = %d, want 0", m.TotalTrades)
	}
	if got := tr.Cash(); got != 500 {
		t.Errorf("cash = %v, want 500", got)
	}
}

func TestMarginMultiplierScalesCash(t *testing.T) {
	tr := newNoCostTrader(Options{MarginMultiplier: 2})

	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100)); err != nil {
		t.Fatalf("buy 10 @100: %v", err)
	}
	if got := tr.Cash(); got != 99500 {
		t.Errorf("cash with 2x margin = %v, want 99500", got)
	}
}

func TestFlatPositionKeepsRealized(t *testing.T) {
	tr := newNoCostTrader(Options{})

	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideSell, 10, Price(110)); err != nil {
		t.Fatalf("sell: %v", err)
	}

	pos, ok := tr.Positions()["AAA"]
	if !ok {
		t.Fatal("flat position with realized pnl was dropped")
	}
	if pos.Qty != 0 || pos.Realized != 100 {
		t.Errorf("flat position = %+v, want qty 0 realized 100", pos)
	}

	// Re-entering carries the realized history forward.
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 5, Price(100)); err != nil {
		t.Fatalf("re-enter: %v", err)
	}
	pos = tr.Positions()["AAA"]
	if pos.Qty != 5 || pos.Realized != 100 {
		t.Errorf("re-entered position = %+v, want qty 5 realized 100", pos)
	}
}

func TestFlatPositionWithoutRealizedDropped(t *testing.T) {
	tr := newNoCostTrader(Options{})

	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideSell, 10, Price(100)); err != nil {
		t.Fatalf("sell at cost: %v", err)
	}

	if _, ok := tr.Positions()["AAA"]; ok {
		t.Error("flat position with zero realized pnl should be dropped")
	}
}

func TestSellFlipChargesCostsOnBothLegs(t *testing.T) {
	tr := New(Options{
		AllowShort:    true,
		CommissionPct: 0.001,
		SlippagePct:   -1,
		MinTradeValue: -1,
		Logger:        quietLogger(),
	})

	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100)); err != nil {
		t.Fatalf("buy 10 @100: %v", err)
	}
	// 100000 - 1000 - 1
	if got := tr.Cash(); got != 98999 {
		t.Fatalf("cash after buy = %v, want 98999", got)
	}

	// Sell 15: closes the 10-lot and flips 5 short. The 1.50 commission on
	// the full notional is deducted from the proceeds of both legs.
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideSell, 15, Price(100)); err != nil {
		t.Fatalf("sell 15 @100: %v", err)
	}

	// 98999 + (1000 - 1.5) + (500 - 1.5)
	if got := tr.Cash(); got != 100496 {
		t.Errorf("cash after flip = %v, want 100496", got)
	}

	pos := tr.Positions()["AAA"]
	if pos.Qty != -5 || pos.AvgPrice != 100 || pos.Side != domain.PositionSideShort {
		t.Errorf("position after flip = %+v, want qty -5 avg 100 SHORT", pos)
	}

	m := tr.Metrics()
	if m.TotalCommission != 2.5 {
		t.Errorf("total commission = %v, want 2.5 (counted once per fill)", m.TotalCommission)
	}
}

func TestMetricsAggregation(t *testing.T) {
	tr := newNoCostTrader(Options{})

	steps := []struct {
		side  domain.Side
		qty   int64
		price float64
	}{
		{domain.SideBuy, 10, 100},
		{domain.SideSell, 10, 110}, // +100
		{domain.SideBuy, 10, 100},
		{domain.SideSell, 10, 95}, // -50
	}
	for i, s := range steps {
		if _, err := tr.PlaceMarketOrder("AAA", s.side, s.qty, Price(s.price)); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	m := tr.Metrics()
	if m.TotalTrades != 4 {
		t.Errorf("total trades = %d, want 4", m.TotalTrades)
	}
	if m.WinningTrades != 1 || m.LosingTrades != 1 {
		t.Errorf("win/loss counts = %d/%d, want 1/1", m.WinningTrades, m.LosingTrades)
	}
	if m.LargestWin != 100 {
		t.Errorf("largest win = %v, want 100", m.LargestWin)
	}
	if m.LargestLoss != -50 {
		t.Errorf("largest loss = %v, want -50", m.LargestLoss)
	}
	if m.WinRate != 25 {
		t.Errorf("win rate = %v, want 25", m.WinRate)
	}
	if m.AvgWin != 100 {
		t.Errorf("avg win = %v, want 100", m.AvgWin)
	}
	if m.AvgLoss != 50 {
		t.Errorf("avg loss = %v, want 50", m.AvgLoss)
	}
	if m.ProfitFactor != 2 {
		t.Errorf("profit factor = %v, want 2", m.ProfitFactor)
	}
	if m.Expectancy != 12.5 {
		t.Errorf("expectancy = %v, want 12.5", m.Expectancy)
	}
}

func TestSellWithoutHoldingsBlockedWhenShortingOff(t *testing.T) {
	tr := newNoCostTrader(Options{})

	_, err := tr.PlaceMarketOrder("AAA", domain.SideSell, 10, Price(100))
	if !errors.Is(err, ErrShortingDisabled) {
		t.Fatalf("error = %v, want ErrShortingDisabled", err)
	}

	// Selling more than held is blocked too.
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 5, Price(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	_, err = tr.PlaceMarketOrder("AAA", domain.SideSell, 10, Price(100))
	if !errors.Is(err, ErrShortingDisabled) {
		t.Fatalf("oversell error = %v, want ErrShortingDisabled", err)
	}
}
