// Package indicator implements the technical indicators used by the replay
// strategies: simple and exponential moving averages, RSI, MACD, and the
// midprice transform. Every function returns a series aligned to the input
// length; leading positions that cannot be computed are padded with the
// first computable value so callers can index by bar without offset math.
package indicator

import (
	"errors"
	"fmt"

	"tradekit/internal/domain"
)

// ErrInsufficientData is returned when the input series is shorter than the
// indicator's minimum lookback.
var ErrInsufficientData = errors.New("insufficient data")

// SMA returns the simple moving average of prices over period. Positions
// before the first full window hold the first window's mean.
func SMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sma: period must be > 0, got %d", period)
	}
	if len(prices) < period {
		return nil, fmt.Errorf("sma: %w: need %d prices, have %d", ErrInsufficientData, period, len(prices))
	}

	out := make([]float64, len(prices))

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	first := sum / float64(period)
	for i := 0; i < period; i++ {
		out[i] = first
	}
	for i := period; i < len(prices); i++ {
		sum += prices[i] - prices[i-period]
		out[i] = sum / float64(period)
	}
	return out, nil
}

// EMA returns the exponential moving average of prices over period, seeded
// with the SMA of the first window.
func EMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ema: period must be > 0, got %d", period)
	}
	if len(prices) < period {
		return nil, fmt.Errorf("ema: %w: need %d prices, have %d", ErrInsufficientData, period, len(prices))
	}

	multiplier := 2 / float64(period+1)
	out := make([]float64, len(prices))

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	prev := sum / float64(period)
	for i := 0; i < period; i++ {
		out[i] = prev
	}
	for i := period; i < len(prices); i++ {
		prev = (prices[i]-prev)*multiplier + prev
		out[i] = prev
	}
	return out, nil
}

// RSI returns the Wilder-smoothed relative strength index of prices over
// period (default lookback 14 is the caller's choice). Values before the
// first computable index repeat that first value.
func RSI(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rsi: period must be > 0, got %d", period)
	}
	if len(prices) < period+1 {
		return nil, fmt.Errorf("rsi: %w: need %d prices, have %d", ErrInsufficientData, period+1, len(prices))
	}

	out := make([]float64, len(prices))

	var gains, losses float64
	for i := 1; i <= period; i++ {
		diff := prices[i] - prices[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	gains /= float64(period)
	losses /= float64(period)

	out[period] = rsiValue(gains, losses)

	for i := period + 1; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		if diff >= 0 {
			gains = (gains*float64(period-1) + diff) / float64(period)
			losses = losses * float64(period-1) / float64(period)
		} else {
			gains = gains * float64(period-1) / float64(period)
			losses = (losses*float64(period-1) - diff) / float64(period)
		}
		out[i] = rsiValue(gains, losses)
	}

	for i := 0; i < period; i++ {
		out[i] = out[period]
	}
	return out, nil
}

func rsiValue(gains, losses float64) float64 {
	if losses == 0 {
		losses = 1e-10
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

// MACDResult holds the three MACD series, each aligned to the input prices.
type MACDResult struct {
	Line      []float64 // EMA(12) - EMA(26)
	Signal    []float64 // EMA(9) of Line
	Histogram []float64 // Line - Signal
}

// MACD computes the 12/26/9 moving average convergence divergence.
func MACD(prices []float64) (MACDResult, error) {
	const (
		fastPeriod   = 12
		slowPeriod   = 26
		signalPeriod = 9
	)
	if len(prices) < slowPeriod {
		return MACDResult{}, fmt.Errorf("macd: %w: need %d prices, have %d", ErrInsufficientData, slowPeriod, len(prices))
	}

	fast, err := EMA(prices, fastPeriod)
	if err != nil {
		return MACDResult{}, err
	}
	slow, err := EMA(prices, slowPeriod)
	if err != nil {
		return MACDResult{}, err
	}

	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fast[i] - slow[i]
	}

	signal, err := EMA(line, signalPeriod)
	if err != nil {
		return MACDResult{}, err
	}

	hist := make([]float64, len(prices))
	for i := range prices {
		hist[i] = line[i] - signal[i]
	}
	return MACDResult{Line: line, Signal: signal, Histogram: hist}, nil
}

// MidPrices extracts the (high+low)/2 midpoint of each bar.
func MidPrices(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.MidPrice()
	}
	return out
}

// Closes extracts the close of each bar.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
