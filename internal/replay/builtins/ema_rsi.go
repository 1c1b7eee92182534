package builtins

import (
	"context"
	"fmt"

	"tradekit/internal/domain"
	"tradekit/internal/indicator"
	"tradekit/internal/replay"
)

// Compile-time interface check.
var _ replay.Strategy = (*EMARSI)(nil)

// EMARSI combines an EMA trend filter with RSI reversal levels. A buy signal
// fires when RSI crosses up out of the oversold zone while price holds above
// the EMA; a sell signal fires when RSI crosses down out of the overbought
// zone.
type EMARSI struct {
	emaPeriod  int
	rsiPeriod  int
	oversold   float64
	overbought float64
	closes     map[string][]float64
}

// NewEMARSI creates an EMARSI strategy. Typical parameters are an EMA period
// of 20, an RSI period of 14, and 30/70 reversal levels.
func NewEMARSI(emaPeriod, rsiPeriod int, oversold, overbought float64) *EMARSI {
	return &EMARSI{
		emaPeriod:  emaPeriod,
		rsiPeriod:  rsiPeriod,
		oversold:   oversold,
		overbought: overbought,
		closes:     make(map[string][]float64),
	}
}

// Name returns "ema-rsi".
func (s *EMARSI) Name() string {
	return "ema-rsi"
}

// Init validates the configured periods and levels.
func (s *EMARSI) Init(_ context.Context) error {
	if s.emaPeriod <= 0 || s.rsiPeriod <= 0 {
		return fmt.Errorf("ema-rsi: periods must be positive, got %d/%d", s.emaPeriod, s.rsiPeriod)
	}
	if s.oversold <= 0 || s.overbought >= 100 || s.oversold >= s.overbought {
		return fmt.Errorf("ema-rsi: need 0 < oversold < overbought < 100, got %v/%v", s.oversold, s.overbought)
	}
	return nil
}

// OnBar appends the close to the symbol's history and checks for an RSI
// level crossing between the previous and current bar.
func (s *EMARSI) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	closes := append(s.closes[bar.Symbol], bar.Close)
	s.closes[bar.Symbol] = closes

	need := s.rsiPeriod + 2
	if s.emaPeriod+1 > need {
		need = s.emaPeriod + 1
	}
	if len(closes) < need {
		return nil, nil
	}

	rsi, err := indicator.RSI(closes, s.rsiPeriod)
	if err != nil {
		return nil, err
	}
	ema, err := indicator.EMA(closes, s.emaPeriod)
	if err != nil {
		return nil, err
	}

	i := len(closes) - 1
	prev, curr := rsi[i-1], rsi[i]

	var sigType domain.SignalType
	switch {
	case prev < s.oversold && curr >= s.oversold && bar.Close > ema[i]:
		sigType = domain.SignalTypeBuy
	case prev > s.overbought && curr <= s.overbought:
		sigType = domain.SignalTypeSell
	default:
		return nil, nil
	}

	// Distance from the midline scales signal strength into [0, 1].
	strength := (curr - 50) / 50
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

// OnTick is a no-op; the strategy operates on bars.
func (s *EMARSI) OnTick(_ context.Context, _ domain.Tick) ([]domain.Signal, error) {
	return nil, nil
}
