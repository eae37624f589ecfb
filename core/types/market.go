package types

import "github.com/holiman/uint256"

// ClockKind identifies one of the per-market clocks that gate how stale a
// borrowing/funding update may be before the pre-execute ritual refreshes it.
type ClockKind uint8

const (
	ClockBorrowing ClockKind = iota
	ClockFundingLong
	ClockFundingShort
	ClockADL
)

// PoolAmounts holds the per-pool token accumulators for one side (long or
// short) of a market.
type PoolAmounts struct {
	PrimaryPool          *uint256.Int
	OpenInterest         *uint256.Int
	OpenInterestInTokens *uint256.Int
	CollateralSum        *uint256.Int
	ImpactPool           *uint256.Int
	BorrowingFactorPool  *uint256.Int
	FundingPerSizePool   *uint256.Int
}

// ClonePoolAmounts returns an independent copy, used when staging a market
// onto the Revertible Market Overlay.
func ClonePoolAmounts(p PoolAmounts) PoolAmounts {
	clone := func(v *uint256.Int) *uint256.Int {
		if v == nil {
			return uint256.NewInt(0)
		}
		return new(uint256.Int).Set(v)
	}
	return PoolAmounts{
		PrimaryPool:          clone(p.PrimaryPool),
		OpenInterest:         clone(p.OpenInterest),
		OpenInterestInTokens: clone(p.OpenInterestInTokens),
		CollateralSum:        clone(p.CollateralSum),
		ImpactPool:           clone(p.ImpactPool),
		BorrowingFactorPool:  clone(p.BorrowingFactorPool),
		FundingPerSizePool:   clone(p.FundingPerSizePool),
	}
}

// MarketConfig bundles the configuration factors an enabled market must
// carry (fees, impact exponent, reserve factor, ADL thresholds, PnL caps).
type MarketConfig struct {
	SwapFeeFactorBps       uint32
	PositionFeeFactorBps   uint32
	PositionImpactExponent uint32
	ReserveFactorBps       uint32
	MaxPnlFactorForTraders uint32
	MaxPnlFactorForAdl     uint32
	MinPnlFactorAfterAdl   uint32
	MaxPnlFactorForDeposit uint32
	ClaimablePayoutCapBps  uint32
	MinCollateralFactorBps uint32
}

// Market is identified by (StoreID, MarketTokenID).
type Market struct {
	StoreID       string
	MarketTokenID string

	LongToken  string
	ShortToken string
	IndexToken string

	Enabled bool

	Long  PoolAmounts
	Short PoolAmounts

	ClaimableFeePool *uint256.Int

	// MarketTokenSupply is the outstanding supply of this market's GM
	// token, minted by Deposit and burned by Withdrawal/Shift.
	MarketTokenSupply *uint256.Int

	ClockUpdatedAt map[ClockKind]int64

	Config MarketConfig

	// Revision increments on every mutation.
	Revision uint64

	UpdatedAtSlot uint64
}

// IsPure reports whether this is a single-token ("pure") market, where the
// long and short tokens coincide.
func (m *Market) IsPure() bool {
	return m.LongToken == m.ShortToken
}

// Pool returns the pool amounts for the requested side.
func (m *Market) Pool(isLong bool) *PoolAmounts {
	if isLong {
		return &m.Long
	}
	return &m.Short
}

// SettlementToken returns the token a side settles PnL in: long settles in
// LongToken, short in ShortToken.
func (m *Market) SettlementToken(isLong bool) string {
	if isLong {
		return m.LongToken
	}
	return m.ShortToken
}

// Clone deep-copies the market, used to build the staged copy a Revertible
// Market Overlay mutates.
func (m *Market) Clone() *Market {
	clockCopy := make(map[ClockKind]int64, len(m.ClockUpdatedAt))
	for k, v := range m.ClockUpdatedAt {
		clockCopy[k] = v
	}
	claimableFeePool := uint256.NewInt(0)
	if m.ClaimableFeePool != nil {
		claimableFeePool = new(uint256.Int).Set(m.ClaimableFeePool)
	}
	tokenSupply := uint256.NewInt(0)
	if m.MarketTokenSupply != nil {
		tokenSupply = new(uint256.Int).Set(m.MarketTokenSupply)
	}
	out := *m
	out.Long = ClonePoolAmounts(m.Long)
	out.Short = ClonePoolAmounts(m.Short)
	out.ClaimableFeePool = claimableFeePool
	out.MarketTokenSupply = tokenSupply
	out.ClockUpdatedAt = clockCopy
	return &out
}
