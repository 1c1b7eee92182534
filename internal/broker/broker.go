// Package broker defines the Broker interface and provides implementations
// for executing orders and managing accounts: Alpaca for live access, and a
// paper broker backed by the simulation engine.
package broker

import (
	"context"
	"errors"

	"tradekit/internal/domain"
)

// ErrUnknownOrder is returned when a cancel request names an order the
// broker does not know about.
var ErrUnknownOrder = errors.New("broker: unknown order")

// Broker abstracts brokerage operations for order execution and account management.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "paper").
	Name() string

	// SubmitOrder sends an order for execution and returns the
	// broker-assigned order ID.
	SubmitOrder(ctx context.Context, order *domain.Order) (string, error)

	// CancelOrder requests cancellation of an open order by its broker ID.
	CancelOrder(ctx context.Context, orderID string) error

	// GetPositions returns all current positions held at the brokerage.
	GetPositions(ctx context.Context) ([]domain.Position, error)

	// GetAccount returns a snapshot of the account's financial metrics.
	GetAccount(ctx context.Context) (*domain.AccountInfo, error)
}
