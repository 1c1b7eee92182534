// Package builtins provides the built-in strategy implementations that ship
// with the toolkit.
package builtins

import (
	"context"
	"fmt"

	"tradekit/internal/domain"
	"tradekit/internal/indicator"
	"tradekit/internal/replay"
)

// Compile-time interface check.
var _ replay.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It emits a
// buy signal when the short-period SMA crosses above the long-period SMA and
// a sell signal when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	closes      map[string][]float64
}

// NewSMACross creates an SMACross strategy with the given short and long
// moving average periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		closes:      make(map[string][]float64),
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init validates the configured periods.
func (s *SMACross) Init(_ context.Context) error {
	if s.shortPeriod <= 0 || s.longPeriod <= s.shortPeriod {
		return fmt.Errorf("sma-cross: need 0 < short < long, got %d/%d", s.shortPeriod, s.longPeriod)
	}
	return nil
}

// OnBar appends the close to the symbol's history and checks for a crossover
// between the previous and current bar.
func (s *SMACross) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	closes := append(s.closes[bar.Symbol], bar.Close)
	s.closes[bar.Symbol] = closes

	// One bar past the long window is needed to compare two SMA points.
	if len(closes) < s.longPeriod+1 {
		return nil, nil
	}

	shortSMA, err := indicator.SMA(closes, s.shortPeriod)
	if err != nil {
		return nil, err
	}
	longSMA, err := indicator.SMA(closes, s.longPeriod)
	if err != nil {
		return nil, err
	}

	i := len(closes) - 1
	prevDiff := shortSMA[i-1] - longSMA[i-1]
	currDiff := shortSMA[i] - longSMA[i]

	var sigType domain.SignalType
	switch {
	case prevDiff <= 0 && currDiff > 0:
		sigType = domain.SignalTypeBuy
	case prevDiff >= 0 && currDiff < 0:
		sigType = domain.SignalTypeSell
	default:
		return nil, nil
	}

	strength := currDiff / bar.Close
	if strength < 0 {
		strength = -strength
	}
	return []domain.Signal{{
		Strategy: s.Name(),
		Symbol:   bar.Symbol,
		Type:     sigType,
		Strength: strength,
		Time:     bar.Timestamp,
	}}, nil
}

// OnTick is a no-op; the crossover operates on bars.
func (s *SMACross) OnTick(_ context.Context, _ domain.Tick) ([]domain.Signal, error) {
	return nil, nil
}
