package action

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gmsolcore/core/state"
	"gmsolcore/core/types"
	"gmsolcore/oracle"
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

func newTestMarket(id string) *types.Market {
	return &types.Market{
		StoreID:       "store-1",
		MarketTokenID: id,
		LongToken:     "WSOL",
		ShortToken:    "USDC",
		IndexToken:    "WSOL",
		Enabled:       true,
		Long: types.PoolAmounts{
			PrimaryPool:          uint256.NewInt(0),
			OpenInterest:         uint256.NewInt(0),
			OpenInterestInTokens: uint256.NewInt(0),
			CollateralSum:        uint256.NewInt(0),
			ImpactPool:           uint256.NewInt(0),
			BorrowingFactorPool:  uint256.NewInt(0),
			FundingPerSizePool:   uint256.NewInt(0),
		},
		Short: types.PoolAmounts{
			PrimaryPool:          uint256.NewInt(0),
			OpenInterest:         uint256.NewInt(0),
			OpenInterestInTokens: uint256.NewInt(0),
			CollateralSum:        uint256.NewInt(0),
			ImpactPool:           uint256.NewInt(0),
			BorrowingFactorPool:  uint256.NewInt(0),
			FundingPerSizePool:   uint256.NewInt(0),
		},
		ClaimableFeePool:  uint256.NewInt(0),
		MarketTokenSupply: uint256.NewInt(0),
		ClockUpdatedAt:    map[types.ClockKind]int64{},
	}
}

func testPrices() oracle.Prices {
	return oracle.NewPrices(map[string]oracle.Price{
		"WSOL": {Min: big.NewInt(150), Max: big.NewInt(150)},
		"USDC": {Min: big.NewInt(1), Max: big.NewInt(1)},
	})
}

func TestDepositMintsMarketTokensAgainstEmptyPool(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.MarketPut(newTestMarket("mkt-wsol")))
	_, err := manager.VaultBalanceGet("store-1", "WSOL")
	require.NoError(t, err)

	a, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:        types.ActionDeposit,
		MarketID:    "mkt-wsol",
		LongAmount:  big.NewInt(100),
		ShortAmount: big.NewInt(0),
		Now:         100,
		Slot:        1,
	})
	require.NoError(t, err)

	report, err := Execute(manager, a, ExecuteParams{Prices: testPrices(), Now: 101, Slot: 2})
	require.NoError(t, err)
	require.True(t, report.MarketTokensOut.Sign() > 0)
	require.Equal(t, types.OrderStateCompleted, report.Action.State)

	m, ok, err := manager.MarketGet("store-1", "mkt-wsol")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, m.MarketTokenSupply.Cmp(uint256.MustFromBig(report.MarketTokensOut)) == 0)
}

func TestWithdrawalRejectsExceedingSupply(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.MarketPut(newTestMarket("mkt-wsol")))

	a, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:              types.ActionWithdrawal,
		MarketID:          "mkt-wsol",
		MarketTokenAmount: big.NewInt(1_000),
		Now:               100,
		Slot:              1,
	})
	require.NoError(t, err)

	_, err = Execute(manager, a, ExecuteParams{Prices: testPrices(), Now: 101, Slot: 2})
	require.Error(t, err)
}

func TestShiftRejectsIncompatibleMarkets(t *testing.T) {
	manager := newTestManager(t)
	from := newTestMarket("mkt-a")
	to := newTestMarket("mkt-b")
	to.ShortToken = "USDT"
	require.NoError(t, manager.MarketPut(from))
	require.NoError(t, manager.MarketPut(to))

	_, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:              types.ActionShift,
		FromMarketID:      "mkt-a",
		ToMarketID:        "mkt-b",
		MarketTokenAmount: big.NewInt(100),
		Now:               100,
		Slot:              1,
	})
	require.Error(t, err)
}

func TestCreateDepositRejectsZeroAmounts(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.MarketPut(newTestMarket("mkt-wsol")))

	_, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:     types.ActionDeposit,
		MarketID: "mkt-wsol",
		Now:      100,
		Slot:     1,
	})
	require.Error(t, err)
}
