// Package domain defines the shared types used across the tradekit toolkit:
// market data (bars, ticks), trading signals, and the order/position/trade
// records maintained by the paper-trading engine.
package domain

import "time"

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// Side is the direction of an order or execution.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a recognised side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType identifies how an order is matched against incoming prices.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// OrderStatus tracks the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusTriggered OrderStatus = "TRIGGERED"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// BracketRole marks an exit order's function within a bracket or
// position-attached pair.
type BracketRole string

const (
	RoleNone       BracketRole = ""
	RoleStopLoss   BracketRole = "SL"
	RoleTakeProfit BracketRole = "TP"
)

// PositionSide labels the direction of a position, derived from the sign of
// its quantity.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
	PositionSideFlat  PositionSide = "FLAT"
)

// Interval identifies a bar aggregation period.
type Interval string

const (
	IntervalDaily  Interval = "1d"
	IntervalMinute Interval = "1m"
)

// SignalType is the action a strategy recommends.
type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
)

// ---------------------------------------------------------------------------
// Trading records
// ---------------------------------------------------------------------------

// Order is a resting or executed instruction in the paper-trading engine.
// IDs are engine-scoped monotonically increasing integers.
type Order struct {
	ID         int64       `json:"id"`
	Symbol     string      `json:"symbol"`
	Type       OrderType   `json:"type"`
	Side       Side        `json:"side"`
	Qty        int64       `json:"qty"`
	LimitPrice float64     `json:"limitPrice,omitempty"`
	StopPrice  float64     `json:"stopPrice,omitempty"`
	Triggered  bool        `json:"triggered,omitempty"`
	Status     OrderStatus `json:"status"`

	// ParentID links an SL/TP exit leg to its bracket entry order for
	// one-cancels-other handling. Zero means no parent.
	ParentID int64       `json:"parentId,omitempty"`
	Role     BracketRole `json:"role,omitempty"`
	// ForPosition marks an exit attached to an existing position rather
	// than to a bracket entry.
	ForPosition bool `json:"forPosition,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Position is the per-symbol exposure held by the engine. Qty is signed:
// positive long, negative short, zero flat. AvgPrice is the volume-weighted
// entry price and Realized the cumulative realized P&L for the symbol.
type Position struct {
	Symbol   string       `json:"symbol"`
	Qty      int64        `json:"qty"`
	AvgPrice float64      `json:"avgPrice"`
	Realized float64      `json:"realized"`
	Side     PositionSide `json:"side"`
}

// Trade is an immutable execution record created once per fill.
type Trade struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"orderId,omitempty"` // zero for direct market fills
	Time       time.Time `json:"time"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Qty        int64     `json:"qty"`
	Price      float64   `json:"price"`
	Value      float64   `json:"value"`
	Commission float64   `json:"commission"`
	Slippage   float64   `json:"slippage"`
	PnL        float64   `json:"pnl"`
}

// AccountInfo is a snapshot of a broker account's financial state.
type AccountInfo struct {
	Cash        float64 `json:"cash"`
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buyingPower"`
}

// EquityPoint is one sample of the engine's equity time series.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is a single OHLCV candle.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// MidPrice returns the bar's (high+low)/2 midpoint.
func (b Bar) MidPrice() float64 {
	return (b.High + b.Low) / 2
}

// Tick is a single trade print from a market-data feed.
type Tick struct {
	Symbol    string
	Timestamp time.Time
	Price     float64
	Size      int64
	Exchange  string
	ID        int64
}

// Asset is a tradable instrument from the broker's reference data.
type Asset struct {
	Symbol       string
	Name         string
	Exchange     string
	Class        string
	Status       string
	Tradable     bool
	Shortable    bool
	Fractionable bool
}

// Signal is a trading recommendation produced by a strategy.
type Signal struct {
	Strategy string
	Symbol   string
	Type     SignalType
	Strength float64
	Time     time.Time
}
