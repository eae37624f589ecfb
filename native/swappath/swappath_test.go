package swappath

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gmsolcore/core/types"
	"gmsolcore/oracle"
)

func newSwapMarket(id string) *types.Market {
	return &types.Market{
		StoreID:       "store-1",
		MarketTokenID: id,
		LongToken:     "WETH",
		ShortToken:    "USDC",
		Enabled:       true,
		Long: types.PoolAmounts{
			PrimaryPool: uint256.NewInt(1_000_000_000),
		},
		Short: types.PoolAmounts{
			PrimaryPool: uint256.NewInt(1_000_000_000),
		},
		ClaimableFeePool: uint256.NewInt(0),
		Config: types.MarketConfig{
			SwapFeeFactorBps:       5,
			PositionImpactExponent: 1,
		},
	}
}

func TestExecuteSingleHopSwap(t *testing.T) {
	m := newSwapMarket("mkt-1")
	markets := map[string]*types.Market{"mkt-1": m}
	prices := oracle.NewPrices(map[string]oracle.Price{
		"WETH": {Min: big.NewInt(3_000), Max: big.NewInt(3_000)},
		"USDC": {Min: big.NewInt(1), Max: big.NewInt(1)},
	})

	result, err := Execute(markets, prices, []string{"mkt-1"}, &Stream{
		TokenIn:  "WETH",
		AmountIn: big.NewInt(1_000),
	}, nil)
	require.NoError(t, err)
	require.True(t, result.AmountOutPrimary.Sign() > 0)
	require.Len(t, result.Steps, 1)
	require.Equal(t, "USDC", result.Steps[0].TokenOut)
}

func TestExecuteRejectsDisabledMarket(t *testing.T) {
	m := newSwapMarket("mkt-1")
	m.Enabled = false
	markets := map[string]*types.Market{"mkt-1": m}
	prices := oracle.NewPrices(map[string]oracle.Price{
		"WETH": {Min: big.NewInt(3_000), Max: big.NewInt(3_000)},
		"USDC": {Min: big.NewInt(1), Max: big.NewInt(1)},
	})

	_, err := Execute(markets, prices, []string{"mkt-1"}, &Stream{TokenIn: "WETH", AmountIn: big.NewInt(100)}, nil)
	require.Error(t, err)
}

func TestExecuteRejectsBelowExpectedOutput(t *testing.T) {
	m := newSwapMarket("mkt-1")
	markets := map[string]*types.Market{"mkt-1": m}
	prices := oracle.NewPrices(map[string]oracle.Price{
		"WETH": {Min: big.NewInt(3_000), Max: big.NewInt(3_000)},
		"USDC": {Min: big.NewInt(1), Max: big.NewInt(1)},
	})

	_, err := Execute(markets, prices, []string{"mkt-1"}, &Stream{
		TokenIn:     "WETH",
		AmountIn:    big.NewInt(1_000),
		ExpectedOut: big.NewInt(10_000_000),
	}, nil)
	require.Error(t, err)
}

func TestExecuteDualStream(t *testing.T) {
	m := newSwapMarket("mkt-1")
	markets := map[string]*types.Market{"mkt-1": m}
	prices := oracle.NewPrices(map[string]oracle.Price{
		"WETH": {Min: big.NewInt(3_000), Max: big.NewInt(3_000)},
		"USDC": {Min: big.NewInt(1), Max: big.NewInt(1)},
	})

	result, err := Execute(markets, prices, []string{"mkt-1"},
		&Stream{TokenIn: "WETH", AmountIn: big.NewInt(500)},
		&Stream{TokenIn: "USDC", AmountIn: big.NewInt(1_000_000)},
	)
	require.NoError(t, err)
	require.True(t, result.AmountOutPrimary.Sign() > 0)
	require.True(t, result.AmountOutSecondary.Sign() > 0)
	require.Len(t, result.Steps, 2)
}
