package broker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"tradekit/internal/domain"
	"tradekit/internal/sim"
)

// Compile-time interface check.
var _ Broker = (*PaperBroker)(nil)

// PaperBroker implements the Broker interface on top of the simulation
// engine. Market orders fill immediately at the engine's last seen price;
// limit and stop orders rest in the engine until a tick triggers them.
type PaperBroker struct {
	trader *sim.PaperTrader
}

// NewPaperBroker creates a PaperBroker backed by the given engine.
func NewPaperBroker(trader *sim.PaperTrader) *PaperBroker {
	return &PaperBroker{trader: trader}
}

// Name returns "paper".
func (b *PaperBroker) Name() string {
	return "paper"
}

// SubmitOrder routes the order into the engine. For market orders the
// returned ID identifies the resulting trade; for limit and stop orders it
// identifies the resting order and can be passed to CancelOrder.
func (b *PaperBroker) SubmitOrder(ctx context.Context, order *domain.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch order.Type {
	case domain.OrderTypeMarket:
		last, ok := b.trader.LastPrices()[order.Symbol]
		if !ok {
			return "", fmt.Errorf("submitting market order: no price seen for %s", order.Symbol)
		}
		trade, err := b.trader.PlaceMarketOrder(order.Symbol, order.Side, order.Qty, sim.Price(last))
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(trade.ID, 10), nil

	case domain.OrderTypeLimit:
		placed, err := b.trader.PlaceLimitOrder(order.Symbol, order.Side, order.Qty, order.LimitPrice, time.Now().UTC())
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(placed.ID, 10), nil

	case domain.OrderTypeStop:
		placed, err := b.trader.PlaceStopOrder(order.Symbol, order.Side, order.Qty, order.StopPrice, time.Now().UTC())
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(placed.ID, 10), nil

	default:
		return "", fmt.Errorf("submitting order: unsupported type %q", order.Type)
	}
}

// CancelOrder cancels a resting order in the engine.
func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("cancelling order %q: %w", orderID, ErrUnknownOrder)
	}
	if _, ok := b.trader.CancelOrder(id); !ok {
		return fmt.Errorf("cancelling order %s: %w", orderID, ErrUnknownOrder)
	}
	return nil
}

// GetPositions returns the engine's open positions sorted by symbol.
func (b *PaperBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bySymbol := b.trader.Positions()
	positions := make([]domain.Position, 0, len(bySymbol))
	for _, p := range bySymbol {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

// GetAccount returns the engine's cash and marked-to-market equity.
func (b *PaperBroker) GetAccount(ctx context.Context) (*domain.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cash := b.trader.Cash()
	return &domain.AccountInfo{
		Cash:        cash,
		Equity:      b.trader.Equity(nil),
		BuyingPower: cash,
	}, nil
}
