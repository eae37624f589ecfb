package claimablesched

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"gmsolcore/core/state"
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

func TestSplitPayoutRoutesExcessToDeferred(t *testing.T) {
	split := SplitPayout(0, 600_000_000, big.NewInt(1_000_000_000))
	require.Equal(t, big.NewInt(600_000_000), split.Immediate)
	require.Equal(t, big.NewInt(400_000_000), split.Deferred)
}

func TestSplitPayoutUncappedClearsInFull(t *testing.T) {
	split := SplitPayout(0, 0, big.NewInt(1_000_000_000))
	require.Equal(t, big.NewInt(1_000_000_000), split.Immediate)
	require.Equal(t, big.NewInt(0), split.Deferred)
}

func TestDeferThenUseClaimableAccountLifecycle(t *testing.T) {
	m := newTestManager(t)
	now := int64(1_700_000_000)

	claimable, err := DeferToClaimable(m, "store-1", "USDC", "user-1", now, 3600, big.NewInt(400_000_000), "user")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(400_000_000), claimable.Amount)

	closed, err := CloseEmptyClaimableAccount(m, "store-1", "USDC", "user-1", now, 3600)
	require.NoError(t, err)
	require.False(t, closed)

	claimable, err = UseClaimableAccount(m, "store-1", "USDC", "user-1", now, 3600, big.NewInt(400_000_000))
	require.NoError(t, err)
	require.True(t, claimable.Closed)

	closed, err = CloseEmptyClaimableAccount(m, "store-1", "USDC", "user-1", now, 3600)
	require.NoError(t, err)
	require.True(t, closed)
}

func TestWindowKeyBucketsByWindowSeconds(t *testing.T) {
	require.Equal(t, WindowKey(3700, 3600), WindowKey(3650, 3600))
	require.NotEqual(t, WindowKey(3700, 3600), WindowKey(7300, 3600))
}
