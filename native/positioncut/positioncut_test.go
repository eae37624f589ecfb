package positioncut

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gmsolcore/core/types"
	"gmsolcore/oracle"
)

func newTestMarket() *types.Market {
	return &types.Market{
		StoreID:       "store-1",
		MarketTokenID: "mkt-wsol",
		LongToken:     "WSOL",
		ShortToken:    "USDC",
		IndexToken:    "WSOL",
		Enabled:       true,
		Long: types.PoolAmounts{
			PrimaryPool:          uint256.NewInt(1_000_000_000_000),
			OpenInterest:         uint256.NewInt(50_000),
			OpenInterestInTokens: uint256.NewInt(333),
			CollateralSum:        uint256.NewInt(0),
			ImpactPool:           uint256.NewInt(0),
			BorrowingFactorPool:  uint256.NewInt(0),
			FundingPerSizePool:   uint256.NewInt(0),
		},
		Short: types.PoolAmounts{
			PrimaryPool:          uint256.NewInt(1_000_000_000_000),
			OpenInterest:         uint256.NewInt(0),
			OpenInterestInTokens: uint256.NewInt(0),
			CollateralSum:        uint256.NewInt(0),
			ImpactPool:           uint256.NewInt(0),
			BorrowingFactorPool:  uint256.NewInt(0),
			FundingPerSizePool:   uint256.NewInt(0),
		},
		ClaimableFeePool: uint256.NewInt(0),
		ClockUpdatedAt:   map[types.ClockKind]int64{},
		Config: types.MarketConfig{
			PositionFeeFactorBps:   10,
			ReserveFactorBps:       9000,
			MaxPnlFactorForAdl:     3500,
			MinPnlFactorAfterAdl:   0,
			MinCollateralFactorBps: 100,
		},
	}
}

func testPrices(price int64) oracle.Prices {
	return oracle.NewPrices(map[string]oracle.Price{
		"WSOL": {Min: big.NewInt(price), Max: big.NewInt(price)},
		"USDC": {Min: big.NewInt(1), Max: big.NewInt(1)},
	})
}

func newPosition(sizeUsd, sizeTokens, collateral int64) *types.Position {
	return &types.Position{
		StoreID:                      "store-1",
		Owner:                        "owner-1",
		MarketToken:                  "mkt-wsol",
		CollateralToken:              "USDC",
		Side:                         types.SideLong,
		SizeInUsd:                    big.NewInt(sizeUsd),
		SizeInTokens:                 big.NewInt(sizeTokens),
		CollateralAmount:             big.NewInt(collateral),
		BorrowingFactorSnapshot:      big.NewInt(0),
		FundingFeeAmountPerSizeLong:  big.NewInt(0),
		FundingFeeAmountPerSizeShort: big.NewInt(0),
	}
}

func TestLiquidateInsolventPositionFullyCloses(t *testing.T) {
	m := newTestMarket()
	// avg entry price = 50000/333 ~= 150; crashing the index to 50 makes the
	// position deeply insolvent against its small collateral.
	p := newPosition(50_000, 333, 5)

	report, err := Liquidate(p, m, testPrices(50), 100, 1)
	require.NoError(t, err)
	require.Equal(t, "InsolventCollateral", report.Reason)
	require.True(t, report.Decrease.ShouldRemove)
	require.True(t, p.IsEmpty())
}

func TestLiquidateRejectsHealthyPosition(t *testing.T) {
	m := newTestMarket()
	p := newPosition(50_000, 333, 1_000_000)

	_, err := Liquidate(p, m, testPrices(150), 100, 1)
	require.Error(t, err)
}

func TestAutoDeleverageRejectsWhenNotRequired(t *testing.T) {
	m := newTestMarket()
	m.Long.OpenInterestInTokens = uint256.NewInt(0)
	m.Long.OpenInterest = uint256.NewInt(0)
	p := newPosition(50_000, 333, 1_000_000)

	_, err := AutoDeleverage(p, m, testPrices(150), big.NewInt(1_000), 100, 1)
	require.Error(t, err)
}
