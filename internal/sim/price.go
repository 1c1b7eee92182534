package sim

import (
	"fmt"
	"time"
)

// PriceSource is the tagged union of ways a caller can supply a current
// price: a literal number, a price/time snapshot, or a provider function
// producing either. Providers may themselves return providers; resolution
// recurses until it reaches a Price or Quote.
type PriceSource interface {
	priceSource()
}

// Price is a literal price with an implicit timestamp of now.
type Price float64

func (Price) priceSource() {}

// Quote is a price observation with an explicit timestamp.
type Quote struct {
	Price float64
	Time  time.Time
}

func (Quote) priceSource() {}

// ProviderFunc defers price resolution to a callback, e.g. a live feed
// lookup. The callback may block.
type ProviderFunc func() (PriceSource, error)

func (ProviderFunc) priceSource() {}

// resolvePrice reduces a PriceSource to a concrete quote. A nil source, a
// provider returning nil, or a non-positive price fails with
// ErrInvalidPriceSource.
func resolvePrice(src PriceSource) (Quote, error) {
	const maxDepth = 8 // guards against provider chains that never terminate

	for depth := 0; depth < maxDepth; depth++ {
		switch s := src.(type) {
		case Price:
			if float64(s) <= 0 {
				return Quote{}, fmt.Errorf("%w: non-positive price %v", ErrInvalidPriceSource, float64(s))
			}
			return Quote{Price: float64(s), Time: time.Now().UTC()}, nil
		case Quote:
			if s.Price <= 0 {
				return Quote{}, fmt.Errorf("%w: non-positive price %v", ErrInvalidPriceSource, s.Price)
			}
			if s.Time.IsZero() {
				s.Time = time.Now().UTC()
			}
			return s, nil
		case ProviderFunc:
			if s == nil {
				return Quote{}, fmt.Errorf("%w: nil provider", ErrInvalidPriceSource)
			}
			next, err := s()
			if err != nil {
				return Quote{}, fmt.Errorf("%w: provider: %v", ErrInvalidPriceSource, err)
			}
			src = next
		case nil:
			return Quote{}, fmt.Errorf("%w: nil source", ErrInvalidPriceSource)
		default:
			return Quote{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidPriceSource, src)
		}
	}
	return Quote{}, fmt.Errorf("%w: provider chain too deep", ErrInvalidPriceSource)
}
