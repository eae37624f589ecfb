package oracle

import (
	"context"
	"sync"
)

// MemorySource is the in-process "cleared Oracle account"
// describes: a snapshot populated atomically by an out-of-band
// set_prices_from_price_feed call and read atomically by every Execute
// call. The Pyth/Chainlink adapters that produce the prices pushed into it
// are explicitly out of scope; this type is the account
// itself, not an adapter.
type MemorySource struct {
	mu     sync.RWMutex
	latest Prices
}

// NewMemorySource returns an empty account; every token lookup fails until
// the first SetPrices call.
func NewMemorySource() *MemorySource {
	return &MemorySource{latest: NewPrices(nil)}
}

// SetPrices atomically replaces the cleared snapshot, the effect of an
// ORACLE_CONTROLLER-signed set_prices_from_price_feed call.
func (s *MemorySource) SetPrices(byToken map[string]Price) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = NewPrices(byToken)
}

// Prices implements Source by returning the snapshot currently cleared,
// projected down to the requested tokens so a caller's staleness check
// (OldestTimestamp) only sees the tokens it actually asked for.
func (s *MemorySource) Prices(_ context.Context, tokens []string) (Prices, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Price, len(tokens))
	for _, t := range tokens {
		p, err := s.latest.For(t)
		if err != nil {
			return Prices{}, err
		}
		out[t] = p
	}
	return NewPrices(out), nil
}
