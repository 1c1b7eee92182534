package sim

import "errors"

// Sentinel errors returned by engine operations. Callers classify failures
// with errors.Is; every failed operation leaves engine state untouched.
var (
	// ErrInvalidOrder covers malformed symbol, side, or quantity, and
	// market-order notional below the configured minimum.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidPrice is returned for non-positive limit or stop prices.
	ErrInvalidPrice = errors.New("price must be > 0")

	// ErrInsufficientCash is returned when a buy cannot be funded.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrShortingDisabled is returned when a sell would create or exceed
	// short exposure with shorting turned off.
	ErrShortingDisabled = errors.New("shorting disabled")

	// ErrPositionLimit is returned when the projected exposure would exceed
	// the configured fraction of equity.
	ErrPositionLimit = errors.New("position size limit exceeded")

	// ErrInvalidBracket is returned when bracket prices are not ordered
	// stop < entry < target (reversed for SELL).
	ErrInvalidBracket = errors.New("invalid bracket prices")

	// ErrInvalidPriceSource is returned when a price source cannot be
	// resolved to a positive price.
	ErrInvalidPriceSource = errors.New("invalid price source")

	// ErrNoRiskDefined is returned by risk-based sizing when entry and stop
	// prices coincide.
	ErrNoRiskDefined = errors.New("stop price equals entry price, no risk defined")

	// ErrInvalidInput is returned by Kelly sizing for out-of-range inputs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoPosition is returned when closing or attaching exits to a symbol
	// with no open exposure.
	ErrNoPosition = errors.New("no open position")
)
