package position

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
			OpenInterest:         uint256.NewInt(0),
			OpenInterestInTokens: uint256.NewInt(0),
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
			PositionImpactExponent: 0,
			ReserveFactorBps:       9000,
		},
	}
}

func newEmptyPosition() *types.Position {
	return &types.Position{
		StoreID:                      "store-1",
		Owner:                        "owner-1",
		MarketToken:                  "mkt-wsol",
		CollateralToken:              "USDC",
		Side:                         types.SideLong,
		SizeInUsd:                    big.NewInt(0),
		SizeInTokens:                 big.NewInt(0),
		CollateralAmount:             big.NewInt(0),
		BorrowingFactorSnapshot:      big.NewInt(0),
		FundingFeeAmountPerSizeLong:  big.NewInt(0),
		FundingFeeAmountPerSizeShort: big.NewInt(0),
	}
}

func testPrices() oracle.Prices {
	return oracle.NewPrices(map[string]oracle.Price{
		"WSOL": {Min: big.NewInt(150), Max: big.NewInt(150)},
		"USDC": {Min: big.NewInt(1), Max: big.NewInt(1)},
	})
}

func TestIncreaseOpensPositionAndUpdatesPool(t *testing.T) {
	m := newTestMarket()
	p := newEmptyPosition()

	report, err := Increase(p, m, IncreaseParams{
		Prices:          testPrices(),
		CollateralDelta: big.NewInt(1_000_000_000),
		SizeDeltaUsd:    big.NewInt(10_000),
		Now:             100,
		Slot:            1,
	})
	require.NoError(t, err)
	require.Equal(t, big.NewInt(150), report.ExecutionPrice)
	require.True(t, p.SizeInUsd.Cmp(big.NewInt(10_000)) == 0)
	require.True(t, p.SizeInTokens.Sign() > 0)
	require.True(t, p.CollateralAmount.Sign() > 0)
	require.Equal(t, uint64(1), p.TradeID)
	require.True(t, m.Long.OpenInterest.Eq(uint256.NewInt(10_000)))
}

func TestIncreaseRejectsAcceptablePriceViolation(t *testing.T) {
	m := newTestMarket()
	p := newEmptyPosition()

	_, err := Increase(p, m, IncreaseParams{
		Prices:          testPrices(),
		CollateralDelta: big.NewInt(1_000_000_000),
		SizeDeltaUsd:    big.NewInt(10_000),
		AcceptablePrice: big.NewInt(100), // long wants execPrice <= 100, got 150
		Now:             100,
		Slot:            1,
	})
	require.Error(t, err)
}

func TestDecreaseClosesPositionAndReleasesCollateral(t *testing.T) {
	m := newTestMarket()
	p := newEmptyPosition()

	_, err := Increase(p, m, IncreaseParams{
		Prices:          testPrices(),
		CollateralDelta: big.NewInt(1_000_000_000),
		SizeDeltaUsd:    big.NewInt(10_000),
		Now:             100,
		Slot:            1,
	})
	require.NoError(t, err)

	report, err := Decrease(p, m, DecreaseParams{
		Prices:       testPrices(),
		SizeDeltaUsd: big.NewInt(10_000),
		Now:          200,
		Slot:         2,
	})
	require.NoError(t, err)
	require.True(t, report.ShouldRemove)
	require.True(t, p.IsEmpty())
	require.True(t, m.Long.OpenInterest.IsZero())
}

func TestDecreaseCapsOversizedDeltaWhenAllowed(t *testing.T) {
	m := newTestMarket()
	p := newEmptyPosition()
	_, err := Increase(p, m, IncreaseParams{
		Prices:          testPrices(),
		CollateralDelta: big.NewInt(1_000_000_000),
		SizeDeltaUsd:    big.NewInt(10_000),
		Now:             100,
		Slot:            1,
	})
	require.NoError(t, err)

	report, err := Decrease(p, m, DecreaseParams{
		Prices:                   testPrices(),
		SizeDeltaUsd:             big.NewInt(999_999),
		IsCapSizeDeltaUsdAllowed: true,
		Now:                      200,
		Slot:                     2,
	})
	require.NoError(t, err)
	require.True(t, report.ShouldRemove)
}

func TestDecreaseRejectsOversizedDeltaWhenNotAllowed(t *testing.T) {
	m := newTestMarket()
	p := newEmptyPosition()
	_, err := Increase(p, m, IncreaseParams{
		Prices:          testPrices(),
		CollateralDelta: big.NewInt(1_000_000_000),
		SizeDeltaUsd:    big.NewInt(10_000),
		Now:             100,
		Slot:            1,
	})
	require.NoError(t, err)

	_, err = Decrease(p, m, DecreaseParams{
		Prices:       testPrices(),
		SizeDeltaUsd: big.NewInt(999_999),
		Now:          200,
		Slot:         2,
	})
	require.Error(t, err)
}

func TestDecreaseRejectsEmptyPosition(t *testing.T) {
	m := newTestMarket()
	p := newEmptyPosition()
	_, err := Decrease(p, m, DecreaseParams{Prices: testPrices(), SizeDeltaUsd: big.NewInt(100), Now: 1, Slot: 1})
	require.Error(t, err)
}
