package market

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gmsolcore/core/events"
	"gmsolcore/core/types"
)

func newTestMarket() *types.Market {
	return &types.Market{
		StoreID:       "store-1",
		MarketTokenID: "mkt-1",
		LongToken:     "WETH",
		ShortToken:    "USDC",
		IndexToken:    "ETH",
		Enabled:       true,
		Long: types.PoolAmounts{
			PrimaryPool:          uint256.NewInt(1_000_000),
			OpenInterest:         uint256.NewInt(500_000),
			OpenInterestInTokens: uint256.NewInt(500),
			CollateralSum:        uint256.NewInt(0),
			ImpactPool:           uint256.NewInt(100_000),
			BorrowingFactorPool:  uint256.NewInt(0),
			FundingPerSizePool:   uint256.NewInt(0),
		},
		Short: types.PoolAmounts{
			PrimaryPool:          uint256.NewInt(1_000_000),
			OpenInterest:         uint256.NewInt(200_000),
			OpenInterestInTokens: uint256.NewInt(200),
			CollateralSum:        uint256.NewInt(0),
			ImpactPool:           uint256.NewInt(0),
			BorrowingFactorPool:  uint256.NewInt(0),
			FundingPerSizePool:   uint256.NewInt(0),
		},
		ClockUpdatedAt: map[types.ClockKind]int64{
			types.ClockBorrowing:    1_000,
			types.ClockFundingLong:  1_000,
			types.ClockFundingShort: 1_000,
			types.ClockADL:          1_000,
		},
		Config: types.MarketConfig{ReserveFactorBps: 9000},
	}
}

func TestPreExecuteRitualOrderAndMonotonicity(t *testing.T) {
	m := newTestMarket()

	report := PreExecuteRitual(m, 1_100, events.NoopEmitter{})
	require.True(t, report.ImpactDistributed.Sign() > 0)
	require.True(t, report.BorrowingDeltaLong.Sign() > 0)
	require.True(t, report.FundingDeltaLong.Sign() > 0 || report.FundingDeltaShort.Sign() > 0)

	fundingAfterFirst := new(uint256.Int).Set(m.Long.FundingPerSizePool)

	PreExecuteRitual(m, 1_200, events.NoopEmitter{})
	require.True(t, m.Long.FundingPerSizePool.Cmp(fundingAfterFirst) >= 0, "funding must be monotone non-decreasing")
}

func TestValidateMarketBalancesRejectsShortfall(t *testing.T) {
	m := newTestMarket()
	err := ValidateMarketBalances(m, m.Long.PrimaryPool.ToBig(), m.Short.PrimaryPool.ToBig(), big.NewInt(0), big.NewInt(0))
	require.NoError(t, err)

	err = ValidateMarketBalances(m, m.Long.PrimaryPool.ToBig(), m.Short.PrimaryPool.ToBig(), big.NewInt(0), big.NewInt(100_000))
	require.Error(t, err)
}
