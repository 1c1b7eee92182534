package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tradekit/internal/domain"
)

// traderState is the on-disk snapshot. Field names are stable; LoadState
// fills defaults for fields absent from older snapshots.
type traderState struct {
	Cash             float64                     `json:"cash"`
	InitialCash      float64                     `json:"initialCash"`
	CommissionPct    float64                     `json:"commissionPct"`
	SlippagePct      float64                     `json:"slippagePct"`
	AllowShort       bool                        `json:"allowShort"`
	MarginMultiplier float64                     `json:"marginMultiplier"`
	MaxPositionSize  float64                     `json:"maxPositionSize"`
	Positions        map[string]*domain.Position `json:"positions"`
	OpenOrders       []*domain.Order             `json:"openOrders"`
	Trades           []domain.Trade              `json:"trades"`
	EquityHistory    []domain.EquityPoint        `json:"equityHistory"`
	Metrics          *Metrics                    `json:"metrics"`
	LastPrices       map[string]float64          `json:"lastPrices"`
	NextOrderID      int64                       `json:"nextOrderId"`
	NextTradeID      int64                       `json:"nextTradeId"`
}

// SaveState writes the full engine state to path as JSON. The write is
// atomic: a temp file in the same directory is renamed over the target.
func (t *PaperTrader) SaveState(path string) error {
	t.mu.Lock()
	state := traderState{
		Cash:             t.cash,
		InitialCash:      t.initialCash,
		CommissionPct:    t.commissionPct,
		SlippagePct:      t.slippagePct,
		AllowShort:       t.allowShort,
		MarginMultiplier: t.marginMultiplier,
		MaxPositionSize:  t.maxPositionSize,
		Positions:        t.positions,
		OpenOrders:       t.openOrders,
		Trades:           t.trades,
		EquityHistory:    t.equityHistory,
		Metrics:          &t.metrics,
		LastPrices:       t.lastPrices,
		NextOrderID:      t.nextOrderID,
		NextTradeID:      t.nextTradeID,
	}
	data, err := json.MarshalIndent(&state, "", "  ")
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename state file: %w", err)
	}

	t.log.Info("state saved", "path", path, "bytes", len(data))
	return nil
}

// LoadState replaces the engine state with the snapshot at path. Snapshots
// written before a field existed load with that field's default: margin
// multiplier 1, max position size 1.0, zeroed metrics, counters starting
// at 1. The order index is rebuilt from the open order list.
func (t *PaperTrader) LoadState(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}
	var state traderState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.cash = state.Cash
	t.initialCash = state.InitialCash
	t.commissionPct = state.CommissionPct
	t.slippagePct = state.SlippagePct
	t.allowShort = state.AllowShort

	t.marginMultiplier = state.MarginMultiplier
	if t.marginMultiplier == 0 {
		t.marginMultiplier = 1
	}
	t.maxPositionSize = state.MaxPositionSize
	if t.maxPositionSize == 0 {
		t.maxPositionSize = 1.0
	}

	t.positions = state.Positions
	if t.positions == nil {
		t.positions = make(map[string]*domain.Position)
	}
	t.openOrders = state.OpenOrders
	t.trades = state.Trades
	t.equityHistory = state.EquityHistory
	t.lastPrices = state.LastPrices
	if t.lastPrices == nil {
		t.lastPrices = make(map[string]float64)
	}

	t.nextOrderID = state.NextOrderID
	if t.nextOrderID == 0 {
		t.nextOrderID = 1
	}
	t.nextTradeID = state.NextTradeID
	if t.nextTradeID == 0 {
		t.nextTradeID = 1
	}

	t.metrics = Metrics{}
	if state.Metrics != nil {
		t.metrics = *state.Metrics
	}

	t.orderIndex = make(map[int64]*domain.Order, len(t.openOrders))
	for _, o := range t.openOrders {
		t.orderIndex[o.ID] = o
	}

	t.log.Info("state loaded", "path", path,
		"positions", len(t.positions), "openOrders", len(t.openOrders), "trades", len(t.trades))
	return nil
}
