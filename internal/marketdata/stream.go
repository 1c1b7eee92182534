package marketdata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"

	"tradekit/internal/domain"
)

// TickStream subscribes to live trade prints over the Alpaca WebSocket feed
// and delivers them as domain.Tick values. The handler is invoked from the
// stream client's goroutines; callers that need serialized processing should
// forward ticks into a single dispatcher channel.
type TickStream struct {
	apiKey    string
	apiSecret string
	feed      string
	log       *slog.Logger
}

// NewTickStream creates a TickStream with the given Alpaca credentials and
// feed ("iex" or "sip").
func NewTickStream(apiKey, apiSecret, feed string) *TickStream {
	return &TickStream{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		feed:      feed,
		log:       slog.Default().With("component", "stream"),
	}
}

// Run connects, subscribes to trades for the given symbols, and blocks until
// ctx is cancelled or the connection terminates.
func (s *TickStream) Run(ctx context.Context, symbols []string, handler func(domain.Tick)) error {
	if len(symbols) == 0 {
		return fmt.Errorf("tick stream: no symbols to subscribe")
	}

	client := stream.NewStocksClient(s.feed,
		stream.WithCredentials(s.apiKey, s.apiSecret),
	)

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting tick stream: %w", err)
	}
	s.log.Info("tick stream connected", "feed", s.feed, "symbols", len(symbols))

	err := client.SubscribeToTrades(func(t stream.Trade) {
		handler(domain.Tick{
			Symbol:    t.Symbol,
			Timestamp: t.Timestamp,
			Price:     t.Price,
			Size:      int64(t.Size),
			Exchange:  t.Exchange,
			ID:        t.ID,
		})
	}, symbols...)
	if err != nil {
		return fmt.Errorf("subscribing to trades: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-client.Terminated():
		if err != nil {
			return fmt.Errorf("tick stream terminated: %w", err)
		}
		return nil
	}
}
