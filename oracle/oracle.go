// Package oracle defines the narrow boundary the exchange core consumes from
// the out-of-band price-feed producers (Pyth/Chainlink adapters and the
// set_prices_from_price_feed entry point). Those adapters live outside this
// module; only the Source interface and the Prices/Price shapes are
// contractual here.
package oracle

import (
	"context"
	"fmt"
	"math/big"
)

// Price carries the cleared min/max unit price for one token, plus the
// timestamp and slot at which the oracle account was last populated.
type Price struct {
	Min       *big.Int
	Max       *big.Int
	Timestamp int64
	Slot      uint64
}

// Mid returns (Min+Max)/2, the value used whenever a single reference price
// is required (e.g. trigger-price comparisons).
func (p Price) Mid() *big.Int {
	if p.Min == nil || p.Max == nil {
		return big.NewInt(0)
	}
	sum := new(big.Int).Add(p.Min, p.Max)
	return sum.Rsh(sum, 1)
}

// Pick returns Max when maximize is true, Min otherwise, the convention
// used for picking the conservative side of a price band.
func (p Price) Pick(maximize bool) *big.Int {
	if maximize {
		if p.Max != nil {
			return new(big.Int).Set(p.Max)
		}
		return big.NewInt(0)
	}
	if p.Min != nil {
		return new(big.Int).Set(p.Min)
	}
	return big.NewInt(0)
}

// Valid reports whether both bounds are present, non-negative, and ordered.
func (p Price) Valid() bool {
	if p.Min == nil || p.Max == nil {
		return false
	}
	if p.Min.Sign() < 0 || p.Max.Sign() < 0 {
		return false
	}
	return p.Min.Cmp(p.Max) <= 0
}

// Prices is a cleared snapshot keyed by token identifier (mint address or
// symbol, depending on the host ledger's addressing scheme).
type Prices struct {
	byToken map[string]Price
}

// NewPrices builds a snapshot from a token->Price map.
func NewPrices(byToken map[string]Price) Prices {
	out := Prices{byToken: make(map[string]Price, len(byToken))}
	for k, v := range byToken {
		out.byToken[k] = v
	}
	return out
}

// ErrMissingPrice is returned when a required token has no cleared price.
var ErrMissingPrice = fmt.Errorf("oracle: missing price")

// For returns the cleared price for the given token.
func (p Prices) For(token string) (Price, error) {
	price, ok := p.byToken[token]
	if !ok {
		return Price{}, fmt.Errorf("%w: %s", ErrMissingPrice, token)
	}
	return price, nil
}

// OldestTimestamp returns the smallest Timestamp across all cleared prices
// used for the oracle-timestamp bounds checks in E /
func (p Prices) OldestTimestamp() int64 {
	var oldest int64
	first := true
	for _, price := range p.byToken {
		if first || price.Timestamp < oldest {
			oldest = price.Timestamp
			first = false
		}
	}
	return oldest
}

// Slot returns the slot shared by the oracle snapshot. All prices in a
// cleared snapshot are expected to share the same slot; the first one found
// is returned.
func (p Prices) Slot() uint64 {
	for _, price := range p.byToken {
		return price.Slot
	}
	return 0
}

// Source is the external collaborator contract: a cleared oracle account
// populated out-of-band. The concrete Pyth/Chainlink adapters are outside
// this module's scope; callers depend only on this interface.
type Source interface {
	Prices(ctx context.Context, tokens []string) (Prices, error)
}
