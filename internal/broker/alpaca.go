package broker

import (
	"context"
	"fmt"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"tradekit/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// AlpacaBroker implements the Broker interface using the Alpaca brokerage API.
type AlpacaBroker struct {
	client *alpacaapi.Client
}

// NewAlpacaBroker creates a new AlpacaBroker configured with the given
// credentials and API endpoint. An empty baseURL uses the SDK default.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string) *AlpacaBroker {
	opts := alpacaapi.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	return &AlpacaBroker{client: alpacaapi.NewClient(opts)}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// SubmitOrder sends an order to the Alpaca API for execution and returns the
// Alpaca order ID.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, order *domain.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	qty := decimal.NewFromInt(order.Qty)
	req := alpacaapi.PlaceOrderRequest{
		Symbol:      order.Symbol,
		Qty:         &qty,
		TimeInForce: alpacaapi.Day,
	}

	switch order.Side {
	case domain.SideBuy:
		req.Side = alpacaapi.Buy
	case domain.SideSell:
		req.Side = alpacaapi.Sell
	default:
		return "", fmt.Errorf("submitting order: unsupported side %q", order.Side)
	}

	switch order.Type {
	case domain.OrderTypeMarket:
		req.Type = alpacaapi.Market
	case domain.OrderTypeLimit:
		req.Type = alpacaapi.Limit
		lp := decimal.NewFromFloat(order.LimitPrice)
		req.LimitPrice = &lp
	case domain.OrderTypeStop:
		req.Type = alpacaapi.Stop
		sp := decimal.NewFromFloat(order.StopPrice)
		req.StopPrice = &sp
	default:
		return "", fmt.Errorf("submitting order: unsupported type %q", order.Type)
	}

	placed, err := b.client.PlaceOrder(req)
	if err != nil {
		return "", fmt.Errorf("submitting order for %s: %w", order.Symbol, err)
	}
	return placed.ID, nil
}

// CancelOrder requests cancellation of an open order via the Alpaca API.
func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.client.CancelOrder(orderID); err != nil {
		return fmt.Errorf("cancelling order %s: %w", orderID, err)
	}
	return nil
}

// GetPositions returns all current positions from the Alpaca account.
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	alpacaPositions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(alpacaPositions))
	for _, p := range alpacaPositions {
		qty := p.Qty.IntPart()
		side := domain.PositionSideLong
		if qty < 0 {
			side = domain.PositionSideShort
		}
		positions = append(positions, domain.Position{
			Symbol:   p.Symbol,
			Qty:      qty,
			AvgPrice: p.AvgEntryPrice.InexactFloat64(),
			Side:     side,
		})
	}
	return positions, nil
}

// GetAccount returns the current account information from the Alpaca API.
func (b *AlpacaBroker) GetAccount(ctx context.Context) (*domain.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acct, err := b.client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return &domain.AccountInfo{
		Cash:        acct.Cash.InexactFloat64(),
		Equity:      acct.Equity.InexactFloat64(),
		BuyingPower: acct.BuyingPower.InexactFloat64(),
	}, nil
}

// FetchAssets downloads the active US equity asset list from Alpaca for the
// reference cache.
func (b *AlpacaBroker) FetchAssets(ctx context.Context) ([]domain.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	alpacaAssets, err := b.client.GetAssets(alpacaapi.GetAssetsRequest{
		Status:     "active",
		AssetClass: "us_equity",
	})
	if err != nil {
		return nil, fmt.Errorf("fetching assets: %w", err)
	}

	assets := make([]domain.Asset, 0, len(alpacaAssets))
	for _, a := range alpacaAssets {
		assets = append(assets, domain.Asset{
			Symbol:       a.Symbol,
			Name:         a.Name,
			Exchange:     a.Exchange,
			Class:        string(a.Class),
			Status:       string(a.Status),
			Tradable:     a.Tradable,
			Shortable:    a.Shortable,
			Fractionable: a.Fractionable,
		})
	}
	return assets, nil
}
