// Package store persists market data and instrument reference data: bar and
// tick history in Parquet files on disk, and the asset reference cache in a
// SQLite database.
package store

import (
	"context"
	"errors"
	"time"

	"tradekit/internal/domain"
)

// ErrNotFound is returned when a lookup matches no stored record.
var ErrNotFound = errors.New("store: not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars at the given interval, merging
	// with any bars already stored for the same symbol and period.
	WriteBars(ctx context.Context, interval domain.Interval, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and interval within
	// [start, end], sorted by timestamp.
	ReadBars(ctx context.Context, interval domain.Interval, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars at the
	// given interval.
	ListSymbols(ctx context.Context, interval domain.Interval) ([]string, error)
}

// TickStore persists and retrieves trade prints.
type TickStore interface {
	// WriteTicks persists a batch of ticks, merging with any ticks
	// already stored for the same symbol and date.
	WriteTicks(ctx context.Context, ticks []domain.Tick) error

	// ReadTicks returns ticks for the given symbol within [start, end],
	// sorted by timestamp.
	ReadTicks(ctx context.Context, symbol string, start, end time.Time) ([]domain.Tick, error)
}
