package state

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gmsolcore/core/types"
	"gmsolcore/storage"
	"gmsolcore/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	return NewManager(tr)
}

func TestMarketPutGetRoundTrip(t *testing.T) {
	m := newTestManager(t)
	market := &types.Market{
		StoreID:       "store-1",
		MarketTokenID: "mkt-eth-usdc",
		LongToken:     "WETH",
		ShortToken:    "USDC",
		IndexToken:    "ETH",
		Enabled:       true,
		Long: types.PoolAmounts{
			PrimaryPool: uint256.NewInt(1_000_000),
		},
		Short: types.PoolAmounts{
			PrimaryPool: uint256.NewInt(2_000_000),
		},
		ClaimableFeePool: uint256.NewInt(0),
		ClockUpdatedAt:   map[types.ClockKind]int64{types.ClockBorrowing: 42},
		Config: types.MarketConfig{
			SwapFeeFactorBps: 5,
			ReserveFactorBps: 9000,
		},
	}

	require.NoError(t, m.MarketPut(market))
	require.Equal(t, uint64(1), market.Revision)

	loaded, ok, err := m.MarketGet(market.StoreID, market.MarketTokenID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, market.LongToken, loaded.LongToken)
	require.True(t, market.Long.PrimaryPool.Eq(loaded.Long.PrimaryPool))
	require.Equal(t, int64(42), loaded.ClockUpdatedAt[types.ClockBorrowing])
	require.Equal(t, uint64(1), loaded.Revision)

	_, missing, err := m.MarketGet(market.StoreID, "does-not-exist")
	require.NoError(t, err)
	require.False(t, missing)
}

func TestMarketRequireMissing(t *testing.T) {
	m := newTestManager(t)
	_, err := m.MarketRequire("store-1", "missing")
	require.Error(t, err)
}

func TestNextOrderIDMonotone(t *testing.T) {
	m := newTestManager(t)
	first, err := m.NextOrderID("store-1", "mkt-1")
	require.NoError(t, err)
	second, err := m.NextOrderID("store-1", "mkt-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)
	require.Equal(t, uint64(2), second)
}

func TestPositionGetOrEmptyThenPut(t *testing.T) {
	m := newTestManager(t)
	empty, err := m.PositionGetOrEmpty("store-1", "alice", "mkt-1", "USDC", types.SideLong)
	require.NoError(t, err)
	require.True(t, empty.IsEmpty())

	empty.SizeInUsd = big.NewInt(1_000)
	empty.SizeInTokens = big.NewInt(1)
	empty.CollateralAmount = big.NewInt(500)
	require.NoError(t, m.PositionPut(empty))

	loaded, ok, err := m.PositionGet("store-1", "alice", "mkt-1", "USDC", types.SideLong)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, loaded.IsEmpty())
	require.Equal(t, big.NewInt(1_000), loaded.SizeInUsd)
}

func TestOrderNonceAndRoundTrip(t *testing.T) {
	m := newTestManager(t)
	nonce, err := m.NextOrderNonce("store-1", "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	order := &types.Order{
		StoreID:                      "store-1",
		Owner:                        "alice",
		Nonce:                        nonce,
		Kind:                         types.OrderKindMarketIncrease,
		Side:                         types.SideLong,
		MarketID:                     "mkt-1",
		InitialCollateralDeltaAmount: big.NewInt(100),
		SizeDeltaValue:               big.NewInt(10_000),
		ExecutionFeeAmount:           big.NewInt(1),
	}
	require.NoError(t, m.OrderPut(order))

	loaded, err := m.OrderRequire("store-1", "alice", nonce)
	require.NoError(t, err)
	require.Equal(t, types.OrderKindMarketIncrease, loaded.Kind)
	require.Nil(t, loaded.TriggerPrice)
	require.Equal(t, big.NewInt(100), loaded.InitialCollateralDeltaAmount)

	require.NoError(t, m.OrderDelete(order.StoreID, order.Owner, order.Nonce))
	_, err = m.OrderRequire("store-1", "alice", nonce)
	require.Error(t, err)
}

func TestOrderOptionalPriceFieldsRoundTrip(t *testing.T) {
	m := newTestManager(t)
	order := &types.Order{
		StoreID:         "store-1",
		Owner:           "bob",
		Nonce:           1,
		Kind:            types.OrderKindLimitIncrease,
		Side:            types.SideShort,
		MarketID:        "mkt-1",
		TriggerPrice:    big.NewInt(30_000),
		AcceptablePrice: big.NewInt(29_500),
	}
	require.NoError(t, m.OrderPut(order))

	loaded, ok, err := m.OrderGet("store-1", "bob", 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, loaded.TriggerPrice)
	require.Equal(t, big.NewInt(30_000), loaded.TriggerPrice)
	require.Nil(t, loaded.MinOutput)
}

func TestClaimableCreditDebitLifecycle(t *testing.T) {
	m := newTestManager(t)
	claimable, err := m.ClaimableCredit("store-1", "USDC", "alice", 100, big.NewInt(50), 1_000)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50), claimable.Amount)
	require.False(t, claimable.Closed)

	claimable, err = m.ClaimableCredit("store-1", "USDC", "alice", 100, big.NewInt(25), 1_001)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(75), claimable.Amount)

	claimable, err = m.ClaimableDebit("store-1", "USDC", "alice", 100, big.NewInt(75), 1_002)
	require.NoError(t, err)
	require.True(t, claimable.Closed)
	require.True(t, claimable.IsEmpty())

	_, err = m.ClaimableDebit("store-1", "USDC", "alice", 100, big.NewInt(1), 1_003)
	require.Error(t, err)
}

func TestVaultTransferInOutUpdatesPoolAndBalance(t *testing.T) {
	m := newTestManager(t)
	market := &types.Market{
		StoreID:       "store-1",
		MarketTokenID: "mkt-1",
		LongToken:     "WETH",
		ShortToken:    "USDC",
		Enabled:       true,
		Long:          types.PoolAmounts{PrimaryPool: uint256.NewInt(0)},
		Short:         types.PoolAmounts{PrimaryPool: uint256.NewInt(0)},
	}

	require.NoError(t, m.MarketTransferIn(market, true, big.NewInt(1_000)))
	balance, err := m.VaultBalanceGet("store-1", "WETH")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000), balance)
	require.True(t, market.Long.PrimaryPool.Eq(uint256.NewInt(1_000)))

	require.NoError(t, m.MarketTransferOut(market, true, big.NewInt(400)))
	balance, err = m.VaultBalanceGet("store-1", "WETH")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(600), balance)
	require.True(t, market.Long.PrimaryPool.Eq(uint256.NewInt(600)))

	err = m.MarketTransferOut(market, true, big.NewInt(10_000))
	require.Error(t, err)
	balance, err = m.VaultBalanceGet("store-1", "WETH")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(600), balance, "failed transfer must not mutate the vault balance")
}

func TestStateVersionEnsure(t *testing.T) {
	db := storage.NewMemDB()
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)

	require.Error(t, EnsureStateVersion(tr, false))

	m := NewManager(tr)
	require.NoError(t, m.SetStateVersion(StateVersion))
	require.NoError(t, EnsureStateVersion(tr, false))
}
