package revertible

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gmsolcore/core/state"
	"gmsolcore/core/types"
	"gmsolcore/storage"
	"gmsolcore/storage/trie"
)

func newTestManager(t *testing.T) *state.Manager {
	t.Helper()
	db := storage.NewMemDB()
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	return state.NewManager(tr)
}

func TestOverlayCommitPersistsStagedMutation(t *testing.T) {
	m := newTestManager(t)
	market := &types.Market{
		StoreID:       "store-1",
		MarketTokenID: "mkt-1",
		LongToken:     "WETH",
		ShortToken:    "USDC",
		Enabled:       true,
		Long:          types.PoolAmounts{PrimaryPool: uint256.NewInt(1_000)},
		Short:         types.PoolAmounts{PrimaryPool: uint256.NewInt(1_000)},
	}
	require.NoError(t, m.MarketPut(market))

	overlay, err := Load(m, "store-1", []string{"mkt-1"})
	require.NoError(t, err)

	staged, ok := overlay.Market("mkt-1")
	require.True(t, ok)
	staged.Long.PrimaryPool.AddUint64(staged.Long.PrimaryPool, 500)

	require.NoError(t, overlay.Commit())

	reloaded, ok, err := m.MarketGet("store-1", "mkt-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, reloaded.Long.PrimaryPool.Eq(uint256.NewInt(1_500)))
}

func TestOverlayDroppedWithoutCommitLeavesStateUntouched(t *testing.T) {
	m := newTestManager(t)
	market := &types.Market{
		StoreID:       "store-1",
		MarketTokenID: "mkt-1",
		LongToken:     "WETH",
		ShortToken:    "USDC",
		Enabled:       true,
		Long:          types.PoolAmounts{PrimaryPool: uint256.NewInt(1_000)},
		Short:         types.PoolAmounts{PrimaryPool: uint256.NewInt(1_000)},
	}
	require.NoError(t, m.MarketPut(market))

	overlay, err := Load(m, "store-1", []string{"mkt-1"})
	require.NoError(t, err)
	staged, _ := overlay.Market("mkt-1")
	staged.Long.PrimaryPool.AddUint64(staged.Long.PrimaryPool, 500)
	// overlay intentionally never committed

	reloaded, ok, err := m.MarketGet("store-1", "mkt-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, reloaded.Long.PrimaryPool.Eq(uint256.NewInt(1_000)))
}
