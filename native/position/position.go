// Package position implements Position Accounting: the
// increase/decrease math that applies a trade delta against a market's pool
// state under borrowing, funding, price-impact, and PnL rules, honoring the
// invariants that keep size, collateral, and pool amounts consistent.
package position

import (
	"math/big"

	"github.com/holiman/uint256"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
	"gmsolcore/oracle"
)

// fundingScale is the fixed-point scale of Market.{Long,Short}.FundingPerSizePool;
// funding owed = (pool_value - position_snapshot) * size_in_usd / fundingScale.
var fundingScale = big.NewInt(1_000_000_000_000_000_000) // 1e18

// IncreaseParams bundles the inputs to Increase.
type IncreaseParams struct {
	Prices          oracle.Prices
	CollateralDelta *big.Int
	SizeDeltaUsd    *big.Int
	AcceptablePrice *big.Int // nil when not set
	FeeDiscountBps  uint32
	Now             int64
	Slot            uint64
}

// IncreaseReport is what Increase hands back for the order/trade-event to
// record.
type IncreaseReport struct {
	ClaimableFundingLong  *big.Int
	ClaimableFundingShort *big.Int
	PaidOrderFeeValue     *big.Int
	ExecutionPrice        *big.Int
	SizeDeltaUsd          *big.Int
	SizeDeltaTokens       *big.Int
}

// applyPendingFees settles the funding owed/earned since the position's
// last snapshot against its collateral, returning the claimable portions
// for both sides (a position only ever owes on its own side and may claim
// on the other, mirroring a single open-interest ledger split by side).
func applyPendingFees(p *types.Position, m *types.Market) (claimableLong, claimableShort *big.Int) {
	claimableLong, claimableShort = big.NewInt(0), big.NewInt(0)
	if p.SizeInUsd == nil || p.SizeInUsd.Sign() == 0 {
		return
	}
	fundingPool := m.Long.FundingPerSizePool
	snapshot := p.FundingFeeAmountPerSizeLong
	claimable := claimableLong
	if !p.Side.IsLong() {
		fundingPool = m.Short.FundingPerSizePool
		snapshot = p.FundingFeeAmountPerSizeShort
		claimable = claimableShort
	}
	delta := new(big.Int).Sub(fundingPool.ToBig(), snapshot)
	if delta.Sign() <= 0 {
		return
	}
	owed := new(big.Int).Mul(delta, p.SizeInUsd)
	owed.Div(owed, fundingScale)
	if owed.Sign() == 0 {
		return
	}
	claimable.Add(claimable, owed)
	p.CollateralAmount.Add(p.CollateralAmount, owed)
	return
}

func refreshSnapshots(p *types.Position, m *types.Market) {
	p.BorrowingFactorSnapshot = m.Pool(p.Side.IsLong()).BorrowingFactorPool.ToBig()
	p.FundingFeeAmountPerSizeLong = m.Long.FundingPerSizePool.ToBig()
	p.FundingFeeAmountPerSizeShort = m.Short.FundingPerSizePool.ToBig()
}

func executionPrice(indexPrice oracle.Price, impactBps int64, isLong bool) *big.Int {
	mid := indexPrice.Mid()
	impact := new(big.Int).Mul(mid, big.NewInt(impactBps))
	impact.Div(impact, big.NewInt(10_000))
	if isLong {
		return new(big.Int).Add(mid, impact)
	}
	return new(big.Int).Sub(mid, impact)
}

// Increase applies an increase trade delta to the position and its market
// pool.
func Increase(p *types.Position, m *types.Market, params IncreaseParams) (*IncreaseReport, error) {
	claimableLong, claimableShort := applyPendingFees(p, m)

	indexPrice, err := params.Prices.For(m.IndexToken)
	if err != nil {
		return nil, err
	}
	impactBps := impactBpsForSize(m, params.SizeDeltaUsd)
	execPrice := executionPrice(indexPrice, impactBps, p.Side.IsLong())

	if params.AcceptablePrice != nil {
		worse := (p.Side.IsLong() && execPrice.Cmp(params.AcceptablePrice) > 0) ||
			(!p.Side.IsLong() && execPrice.Cmp(params.AcceptablePrice) < 0)
		if worse {
			return nil, coreerrors.New(coreerrors.CodeAcceptablePriceViolated, "increase execution price worse than acceptable price")
		}
	}

	feeBps := big.NewInt(int64(m.Config.PositionFeeFactorBps))
	fee := new(big.Int).Mul(params.SizeDeltaUsd, feeBps)
	fee.Div(fee, big.NewInt(10_000))
	if params.FeeDiscountBps > 0 {
		discount := new(big.Int).Mul(fee, big.NewInt(int64(params.FeeDiscountBps)))
		discount.Div(discount, big.NewInt(10_000))
		fee.Sub(fee, discount)
	}
	feeAmount := valueToTokenAmount(fee, execPrice)

	if p.CollateralAmount == nil {
		p.CollateralAmount = big.NewInt(0)
	}
	p.CollateralAmount.Add(p.CollateralAmount, params.CollateralDelta)
	if p.CollateralAmount.Cmp(feeAmount) < 0 {
		return nil, coreerrors.New(coreerrors.CodeInsufficientCollateral, "order fee exceeds deposited collateral")
	}
	p.CollateralAmount.Sub(p.CollateralAmount, feeAmount)

	sizeDeltaTokens := valueToTokenAmount(params.SizeDeltaUsd, execPrice)

	if p.SizeInUsd == nil {
		p.SizeInUsd = big.NewInt(0)
	}
	if p.SizeInTokens == nil {
		p.SizeInTokens = big.NewInt(0)
	}
	p.SizeInUsd.Add(p.SizeInUsd, params.SizeDeltaUsd)
	p.SizeInTokens.Add(p.SizeInTokens, sizeDeltaTokens)

	refreshSnapshots(p, m)

	pool := m.Pool(p.Side.IsLong())
	sizeDelta256, overflow := uint256.FromBig(params.SizeDeltaUsd)
	if overflow {
		return nil, coreerrors.New(coreerrors.CodeValueOverflow, "size delta exceeds uint256 range")
	}
	pool.OpenInterest.Add(pool.OpenInterest, sizeDelta256)
	tokensDelta256, overflow := uint256.FromBig(sizeDeltaTokens)
	if !overflow {
		pool.OpenInterestInTokens.Add(pool.OpenInterestInTokens, tokensDelta256)
	}
	collateralDelta256, overflow := uint256.FromBig(params.CollateralDelta)
	if !overflow {
		pool.CollateralSum.Add(pool.CollateralSum, collateralDelta256)
	}
	fee256, overflow := uint256.FromBig(feeAmount)
	if !overflow {
		m.ClaimableFeePool.Add(m.ClaimableFeePool, fee256)
	}

	p.TradeID++
	p.IncreasedAt = params.Now
	p.UpdatedAtSlot = params.Slot

	return &IncreaseReport{
		ClaimableFundingLong:  claimableLong,
		ClaimableFundingShort: claimableShort,
		PaidOrderFeeValue:     fee,
		ExecutionPrice:        execPrice,
		SizeDeltaUsd:          new(big.Int).Set(params.SizeDeltaUsd),
		SizeDeltaTokens:       sizeDeltaTokens,
	}, nil
}

// UnrealizedPnl reports the position's current unrealized PnL at
// indexPrice, using the same size_in_usd/size_in_tokens average-entry-price
// convention Increase/Decrease use.
func UnrealizedPnl(p *types.Position, indexPrice *big.Int) *big.Int {
	if p.IsEmpty() || p.SizeInTokens.Sign() == 0 {
		return big.NewInt(0)
	}
	avgEntryPrice := new(big.Int).Div(p.SizeInUsd, p.SizeInTokens)
	delta := new(big.Int).Sub(indexPrice, avgEntryPrice)
	if !p.Side.IsLong() {
		delta.Neg(delta)
	}
	return new(big.Int).Mul(p.SizeInTokens, delta)
}

// CheckLiquidatable reports whether the position's net value (collateral
// plus unrealized PnL) is negative, or below the market's configured
// maintenance margin against its size, returning a non-empty reason string
// in either case.
func CheckLiquidatable(p *types.Position, m *types.Market, prices oracle.Prices) (bool, string) {
	if p.IsEmpty() {
		return false, ""
	}
	indexPrice, err := prices.For(m.IndexToken)
	if err != nil {
		return false, ""
	}
	pnl := UnrealizedPnl(p, indexPrice.Mid())
	netValue := new(big.Int).Add(p.CollateralAmount, pnl)
	if netValue.Sign() < 0 {
		return true, "InsolventCollateral"
	}
	minCollateral := new(big.Int).Mul(p.SizeInUsd, big.NewInt(int64(m.Config.MinCollateralFactorBps)))
	minCollateral.Div(minCollateral, big.NewInt(10_000))
	if netValue.Cmp(minCollateral) < 0 {
		return true, "MinCollateralBreached"
	}
	return false, ""
}

func valueToTokenAmount(value, price *big.Int) *big.Int {
	if price == nil || price.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(value, price)
}

// impactBpsForSize derives a simple impact curve in basis points: the size
// delta in units of 1e21 times the market's PositionImpactExponent. The
// side's open interest is not consulted.
func impactBpsForSize(m *types.Market, sizeDeltaUsd *big.Int) int64 {
	exponent := m.Config.PositionImpactExponent
	if exponent == 0 {
		return 0
	}
	notional := new(big.Int).Div(sizeDeltaUsd, big.NewInt(1_000_000_000_000_000_000_000))
	bps := new(big.Int).Mul(notional, big.NewInt(int64(exponent)))
	return bps.Int64()
}

// DecreaseParams bundles the inputs to Decrease.
type DecreaseParams struct {
	Prices          oracle.Prices
	SizeDeltaUsd    *big.Int
	CollateralDelta *big.Int // requested withdrawal, before fees/PnL
	AcceptablePrice *big.Int // nil when not set

	IsInsolventCloseAllowed  bool
	IsLiquidationOrder       bool
	IsCapSizeDeltaUsdAllowed bool
	SwapType                 types.DecreasePositionSwapType

	Now  int64
	Slot uint64
}

// DecreaseReport is what Decrease hands back for the order/trade-event to
// record.
type DecreaseReport struct {
	ClaimableFundingLong  *big.Int
	ClaimableFundingShort *big.Int
	PaidOrderFeeValue     *big.Int
	ExecutionPrice        *big.Int
	SizeDeltaUsd          *big.Int
	SizeDeltaTokens       *big.Int
	RealizedPnl           *big.Int // positive is a gain to the position owner
	OutputAmount          *big.Int // collateral token amount released to the owner
	ShouldRemove          bool
}

// Decrease applies a decrease trade delta to the position and its market
// pool. The caller is responsible for routing
// OutputAmount/RealizedPnl through the swap path when SwapType requests a
// collateral/PnL token conversion; Decrease itself only settles the
// position's own bookkeeping.
func Decrease(p *types.Position, m *types.Market, params DecreaseParams) (*DecreaseReport, error) {
	if p.IsEmpty() {
		return nil, coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "cannot decrease an empty position")
	}

	claimableLong, claimableShort := applyPendingFees(p, m)

	sizeDeltaUsd := new(big.Int).Set(params.SizeDeltaUsd)
	if sizeDeltaUsd.Cmp(p.SizeInUsd) > 0 {
		if !params.IsCapSizeDeltaUsdAllowed {
			return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "size delta exceeds position size")
		}
		sizeDeltaUsd = new(big.Int).Set(p.SizeInUsd)
	}

	indexPrice, err := params.Prices.For(m.IndexToken)
	if err != nil {
		return nil, err
	}
	impactBps := impactBpsForSize(m, sizeDeltaUsd)
	// Decreasing moves the execution price against the position, the
	// mirror image of Increase's impact direction.
	execPrice := executionPrice(indexPrice, impactBps, !p.Side.IsLong())

	if params.AcceptablePrice != nil {
		worse := (p.Side.IsLong() && execPrice.Cmp(params.AcceptablePrice) < 0) ||
			(!p.Side.IsLong() && execPrice.Cmp(params.AcceptablePrice) > 0)
		if worse {
			return nil, coreerrors.New(coreerrors.CodeAcceptablePriceViolated, "decrease execution price worse than acceptable price")
		}
	}

	avgEntryPrice := new(big.Int).Div(p.SizeInUsd, p.SizeInTokens)
	tokensClosed := new(big.Int).Mul(p.SizeInTokens, sizeDeltaUsd)
	tokensClosed.Div(tokensClosed, p.SizeInUsd)

	priceDelta := new(big.Int).Sub(execPrice, avgEntryPrice)
	if !p.Side.IsLong() {
		priceDelta.Neg(priceDelta)
	}
	realizedPnl := new(big.Int).Mul(tokensClosed, priceDelta)

	feeBps := big.NewInt(int64(m.Config.PositionFeeFactorBps))
	fee := new(big.Int).Mul(sizeDeltaUsd, feeBps)
	fee.Div(fee, big.NewInt(10_000))
	feeAmount := valueToTokenAmount(fee, execPrice)

	remaining := new(big.Int).Set(p.CollateralAmount)
	remaining.Sub(remaining, feeAmount)
	if realizedPnl.Sign() < 0 {
		remaining.Add(remaining, realizedPnl) // loss reduces remaining collateral
	}
	if remaining.Sign() < 0 && !params.IsInsolventCloseAllowed {
		return nil, coreerrors.New(coreerrors.CodeInsufficientCollateral, "decrease would leave position insolvent")
	}

	collateralDelta := params.CollateralDelta
	if collateralDelta == nil {
		collateralDelta = big.NewInt(0)
	}
	if collateralDelta.Cmp(remaining) > 0 {
		collateralDelta = remaining
	}
	if sizeDeltaUsd.Cmp(p.SizeInUsd) == 0 && remaining.Sign() > 0 {
		// A full close releases all collateral left after fees and losses.
		collateralDelta = remaining
	}

	outputAmount := new(big.Int).Set(collateralDelta)
	if realizedPnl.Sign() > 0 {
		outputAmount.Add(outputAmount, realizedPnl)
	}
	if outputAmount.Sign() < 0 {
		outputAmount = big.NewInt(0)
	}

	collateralBefore := new(big.Int).Set(p.CollateralAmount)
	p.CollateralAmount.Sub(p.CollateralAmount, feeAmount)
	p.CollateralAmount.Sub(p.CollateralAmount, collateralDelta)
	if realizedPnl.Sign() < 0 {
		p.CollateralAmount.Add(p.CollateralAmount, realizedPnl)
	}
	if p.CollateralAmount.Sign() < 0 {
		p.CollateralAmount = big.NewInt(0)
	}
	collateralWithdrawn := new(big.Int).Sub(collateralBefore, p.CollateralAmount)

	p.SizeInUsd.Sub(p.SizeInUsd, sizeDeltaUsd)
	p.SizeInTokens.Sub(p.SizeInTokens, tokensClosed)

	refreshSnapshots(p, m)

	pool := m.Pool(p.Side.IsLong())
	sizeDelta256, overflow := uint256.FromBig(sizeDeltaUsd)
	if overflow {
		return nil, coreerrors.New(coreerrors.CodeValueOverflow, "size delta exceeds uint256 range")
	}
	if pool.OpenInterest.Cmp(sizeDelta256) >= 0 {
		pool.OpenInterest.Sub(pool.OpenInterest, sizeDelta256)
	} else {
		pool.OpenInterest.Clear()
	}
	tokensDelta256, overflow := uint256.FromBig(tokensClosed)
	if !overflow && pool.OpenInterestInTokens.Cmp(tokensDelta256) >= 0 {
		pool.OpenInterestInTokens.Sub(pool.OpenInterestInTokens, tokensDelta256)
	}
	if collateralWithdrawn.Sign() > 0 {
		withdrawn256, overflow := uint256.FromBig(collateralWithdrawn)
		if !overflow {
			if pool.CollateralSum.Cmp(withdrawn256) >= 0 {
				pool.CollateralSum.Sub(pool.CollateralSum, withdrawn256)
			} else {
				pool.CollateralSum.Clear()
			}
		}
	}
	fee256, overflow := uint256.FromBig(feeAmount)
	if !overflow {
		m.ClaimableFeePool.Add(m.ClaimableFeePool, fee256)
	}

	p.TradeID++
	p.DecreasedAt = params.Now
	p.UpdatedAtSlot = params.Slot

	return &DecreaseReport{
		ClaimableFundingLong:  claimableLong,
		ClaimableFundingShort: claimableShort,
		PaidOrderFeeValue:     fee,
		ExecutionPrice:        execPrice,
		SizeDeltaUsd:          sizeDeltaUsd,
		SizeDeltaTokens:       tokensClosed,
		RealizedPnl:           realizedPnl,
		OutputAmount:          outputAmount,
		ShouldRemove:          p.IsEmpty(),
	}, nil
}
