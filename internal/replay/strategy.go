// Package replay drives trading strategies over historical bar data through
// the simulation engine and reports backtest results. It also defines the
// Strategy interface shared with the live trader.
package replay

import (
	"context"
	"sort"

	"tradekit/internal/domain"
)

// Strategy is the interface all trading strategies implement. A strategy
// instance holds per-symbol state and is driven from a single goroutine.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs any one-time setup before the strategy begins
	// processing market data.
	Init(ctx context.Context) error

	// OnBar is called when a new OHLCV bar is available. It returns zero or
	// more trading signals.
	OnBar(ctx context.Context, bar domain.Bar) ([]domain.Signal, error)

	// OnTick is called when a new trade print is available. It returns zero
	// or more trading signals. Strategies that only operate on bars return
	// nothing here.
	OnTick(ctx context.Context, tick domain.Tick) ([]domain.Signal, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
