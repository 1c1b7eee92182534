// Package marketdata retrieves candles and live trade prints from the Alpaca
// market-data API and adapts them to the toolkit's domain types.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	mdapi "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradekit/internal/domain"
	"tradekit/internal/util"
)

// barGetter is the slice of the Alpaca market-data client the candle client
// needs. Kept narrow so tests can fake it.
type barGetter interface {
	GetBars(symbol string, req mdapi.GetBarsRequest) ([]mdapi.Bar, error)
}

var _ barGetter = (*mdapi.Client)(nil)

// CandleClient fetches the most recent n bars for a symbol. Requests walk
// backward over trading days, widening the window until enough bars are
// collected, so gaps from weekends and holidays don't shorten the result.
type CandleClient struct {
	client  barGetter
	cal     *util.TradingCalendar
	limiter *util.RateLimiter
	feed    string
	log     *slog.Logger
}

// NewCandleClient creates a CandleClient with the given Alpaca credentials.
// An empty dataURL uses the SDK default; rateLimitPerMin <= 0 disables
// client-side throttling.
func NewCandleClient(apiKey, apiSecret, dataURL, feed string, rateLimitPerMin int) *CandleClient {
	opts := mdapi.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return newCandleClient(mdapi.NewClient(opts), feed, rateLimitPerMin)
}

func newCandleClient(client barGetter, feed string, rateLimitPerMin int) *CandleClient {
	return &CandleClient{
		client:  client,
		cal:     util.NewTradingCalendar(),
		limiter: util.NewRateLimiter(rateLimitPerMin),
		feed:    feed,
		log:     slog.Default().With("component", "candles"),
	}
}

// dailyWindowDays is the calendar span of each daily-bar request window.
const dailyWindowDays = 30

// maxWalkback bounds how many windows a request may step back before giving
// up with however many bars were found.
const maxWalkback = 60

// LastDailyBars returns the most recent n daily bars for symbol, oldest
// first. Fewer than n bars are returned when the symbol's history is shorter
// than the walkback covers.
func (c *CandleClient) LastDailyBars(ctx context.Context, symbol string, n int) ([]domain.Bar, error) {
	if n <= 0 {
		return nil, fmt.Errorf("last daily bars: n must be positive, got %d", n)
	}

	var collected []domain.Bar
	to := time.Now().UTC()
	for safety := 0; len(collected) < n && safety < maxWalkback; safety++ {
		from := to.AddDate(0, 0, -dailyWindowDays)

		bars, err := c.fetchBars(ctx, symbol, mdapi.OneDay, from, to)
		if err != nil {
			return nil, err
		}
		collected = append(bars, collected...)

		to = c.cal.PrevTradingDay(from)
	}

	return lastN(collected, n), nil
}

// LastIntradayBars returns the most recent n five-minute bars for symbol,
// oldest first. Each step covers one trading session; the current session is
// truncated at now.
func (c *CandleClient) LastIntradayBars(ctx context.Context, symbol string, n int) ([]domain.Bar, error) {
	if n <= 0 {
		return nil, fmt.Errorf("last intraday bars: n must be positive, got %d", n)
	}

	fiveMin := mdapi.NewTimeFrame(5, mdapi.Min)
	now := time.Now().UTC()

	day := now
	if !c.cal.IsTradingDay(day) || now.Before(c.cal.SessionOpen(day)) {
		day = c.cal.PrevTradingDay(day)
	}

	var collected []domain.Bar
	for safety := 0; len(collected) < n && safety < maxWalkback; safety++ {
		start := c.cal.SessionOpen(day)
		end := c.cal.SessionClose(day)
		if now.Before(end) {
			end = now
		}

		bars, err := c.fetchBars(ctx, symbol, fiveMin, start, end)
		if err != nil {
			return nil, err
		}
		collected = append(bars, collected...)

		day = c.cal.PrevTradingDay(day)
	}

	return lastN(collected, n), nil
}

// fetchBars performs one rate-limited, retried request for a bar window.
func (c *CandleClient) fetchBars(ctx context.Context, symbol string, tf mdapi.TimeFrame, start, end time.Time) ([]domain.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw []mdapi.Bar
	err := util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		var err error
		raw, err = c.client.GetBars(symbol, mdapi.GetBarsRequest{
			TimeFrame: tf,
			Start:     start,
			End:       end,
			Feed:      mdapi.Feed(c.feed),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  b.Timestamp,
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     int64(b.Volume),
			TradeCount: int64(b.TradeCount),
			VWAP:       b.VWAP,
		})
	}
	return bars, nil
}

// lastN sorts bars by timestamp, drops duplicates from overlapping windows,
// and keeps the newest n.
func lastN(bars []domain.Bar, n int) []domain.Bar {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	deduped := bars[:0]
	for _, b := range bars {
		if len(deduped) > 0 && deduped[len(deduped)-1].Timestamp.Equal(b.Timestamp) {
			continue
		}
		deduped = append(deduped, b)
	}

	if len(deduped) > n {
		deduped = deduped[len(deduped)-n:]
	}
	return deduped
}
