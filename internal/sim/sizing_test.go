package sim

import (
	"errors"
	"testing"

	"tradekit/internal/domain"
)

func TestSizeByPercentOfEquity(t *testing.T) {
	tr := newNoCostTrader(Options{})

	qty, err := tr.SizeByPercentOfEquity(10, "AAA", Price(50))
	if err != nil {
		t.Fatalf("SizeByPercentOfEquity: %v", err)
	}
	if qty != 200 {
		t.Errorf("qty = %d, want 200 (10%% of 100000 at 50)", qty)
	}

	if _, err := tr.SizeByPercentOfEquity(10, "AAA", Price(0)); !errors.Is(err, ErrInvalidPriceSource) {
		t.Errorf("zero price error = %v, want ErrInvalidPriceSource", err)
	}
}

func TestSizeByRisk(t *testing.T) {
	tr := newNoCostTrader(Options{})

	tests := []struct {
		name        string
		entry, stop float64
		risk        float64
		src         PriceSource
		want        int64
		wantErr     error
	}{
		{name: "long risk", entry: 100, stop: 95, risk: 1000, want: 200},
		{name: "short risk", entry: 95, stop: 100, risk: 1000, want: 200},
		{name: "floors fractional", entry: 100, stop: 97, risk: 1000, want: 333},
		{name: "minimum one share", entry: 100, stop: 95, risk: 2, want: 1},
		{name: "live price overrides entry", entry: 100, stop: 95, risk: 1000, src: Price(105), want: 100},
		{name: "no risk", entry: 100, stop: 100, risk: 1000, wantErr: ErrNoRiskDefined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty, err := tr.SizeByRisk("AAA", tt.entry, tt.stop, tt.risk, tt.src)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SizeByRisk: %v", err)
			}
			if qty != tt.want {
				t.Errorf("qty = %d, want %d", qty, tt.want)
			}
		})
	}
}

func TestKellySize(t *testing.T) {
	tests := []struct {
		name            string
		winRate         float64
		avgWin, avgLoss float64
		equity, price   float64
		want            int64
		wantErr         error
	}{
		// b=2, kelly=(1.2-0.4)/2=0.4, half=0.2 under the cap.
		{name: "positive edge", winRate: 0.6, avgWin: 100, avgLoss: 50, equity: 100000, price: 100, want: 200},
		// kelly=(0.6-0.7)/2 < 0: no trade.
		{name: "negative edge", winRate: 0.3, avgWin: 100, avgLoss: 50, equity: 100000, price: 100, want: 0},
		// b=6, kelly=(5.4-0.1)/6≈0.883, half 0.44 capped at 0.25.
		{name: "capped at quarter equity", winRate: 0.9, avgWin: 300, avgLoss: 50, equity: 100000, price: 100, want: 250},
		{name: "zero avg loss", winRate: 0.6, avgWin: 100, avgLoss: 0, equity: 100000, price: 100, wantErr: ErrInvalidInput},
		{name: "win rate above one", winRate: 1.5, avgWin: 100, avgLoss: 50, equity: 100000, price: 100, wantErr: ErrInvalidInput},
		{name: "negative win rate", winRate: -0.1, avgWin: 100, avgLoss: 50, equity: 100000, price: 100, wantErr: ErrInvalidInput},
		{name: "zero price", winRate: 0.6, avgWin: 100, avgLoss: 50, equity: 100000, price: 0, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty, err := KellySize(tt.winRate, tt.avgWin, tt.avgLoss, tt.equity, tt.price)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("KellySize: %v", err)
			}
			if qty != tt.want {
				t.Errorf("qty = %d, want %d", qty, tt.want)
			}
		})
	}
}

func TestPositionLimitRejectsOversizedOrder(t *testing.T) {
	tr := newNoCostTrader(Options{MaxPositionSize: 0.5})

	_, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 600, Price(100))
	if !errors.Is(err, ErrPositionLimit) {
		t.Fatalf("error = %v, want ErrPositionLimit", err)
	}
	if got := tr.Cash(); got != 100000 {
		t.Errorf("cash after rejection = %v, want 100000", got)
	}
	if got := len(tr.Positions()); got != 0 {
		t.Errorf("positions after rejection = %d, want 0", got)
	}
	if got := len(tr.TradeHistory()); got != 0 {
		t.Errorf("trades after rejection = %d, want 0", got)
	}
}

func TestPositionLimitProjectsExistingExposure(t *testing.T) {
	tr := newNoCostTrader(Options{MaxPositionSize: 0.5})

	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 400, Price(100)); err != nil {
		t.Fatalf("buy within limit: %v", err)
	}

	// Equity is now 60000 (cash only, position marked at cost), so growing
	// to 500 shares would be 50000/60000 of equity.
	_, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 100, Price(100))
	if !errors.Is(err, ErrPositionLimit) {
		t.Fatalf("error = %v, want ErrPositionLimit", err)
	}
	if got := tr.Positions()["AAA"].Qty; got != 400 {
		t.Errorf("qty after rejection = %d, want 400", got)
	}
}

func TestEquityMarksMissingSymbolsAtCost(t *testing.T) {
	tr := newNoCostTrader(Options{})
	if _, err := tr.PlaceMarketOrder("AAA", domain.SideBuy, 10, Price(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	// No price supplied for AAA: unrealized is zero against the average.
	if got := tr.Equity(map[string]float64{}); got != 99000 {
		t.Errorf("equity with empty map = %v, want 99000", got)
	}
	if got := tr.Equity(map[string]float64{"AAA": 120}); got != 99200 {
		t.Errorf("equity at 120 = %v, want 99200", got)
	}
	// nil falls back to last-known prices (100 from the market order).
	if got := tr.Equity(nil); got != 99000 {
		t.Errorf("equity with nil map = %v, want 99000", got)
	}
}
