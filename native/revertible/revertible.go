// Package revertible implements the Revertible Market Overlay:
// a staged, cloneable view over one or more markets. All mutations inside a
// single execution occur on the staged copies; Commit writes them all back
// atomically, and simply dropping the overlay (never calling Commit)
// discards every staged change. This mirrors the storage/trie.Trie's own
// Copy/Commit staged-copy idiom rather than nested rollback closures, which
// would re-introduce the bug class this overlay avoids.
package revertible

import (
	"gmsolcore/core/state"
	"gmsolcore/core/types"
)

// Overlay holds the staged copies of every market touched by one execution:
// the order/action's own market plus any neighboring swap-path markets.
type Overlay struct {
	manager *state.Manager
	staged  map[string]*types.Market
}

// Load fetches and clones every requested market, staging them for
// mutation. marketIDs should include the primary market and every market
// named in a swap path.
func Load(manager *state.Manager, storeID string, marketIDs []string) (*Overlay, error) {
	staged := make(map[string]*types.Market, len(marketIDs))
	for _, id := range marketIDs {
		if _, ok := staged[id]; ok {
			continue
		}
		market, err := manager.MarketRequire(storeID, id)
		if err != nil {
			return nil, err
		}
		staged[id] = market.Clone()
	}
	return &Overlay{manager: manager, staged: staged}, nil
}

// Market returns the staged copy of the requested market, for mutation by
// the swap path executor / position accounting.
func (o *Overlay) Market(marketTokenID string) (*types.Market, bool) {
	m, ok := o.staged[marketTokenID]
	return m, ok
}

// Markets exposes the full staged set, e.g. for the swap path executor
// which needs a map keyed by market id.
func (o *Overlay) Markets() map[string]*types.Market {
	return o.staged
}

// Commit persists every staged market. This is the sole point at which the
// overlay's mutations become visible; a caller that instead simply drops
// the Overlay (returns an error without calling Commit) leaves the
// underlying state untouched, satisfying the revert-atomicity invariant
//.
func (o *Overlay) Commit() error {
	for _, market := range o.staged {
		if err := o.manager.MarketPut(market); err != nil {
			return err
		}
	}
	return nil
}
