// Package market implements the Market Pool State component:
// the pre-execute ritual (position-impact distribution, borrowing update,
// funding update) and the pool-level getters/validators every other native
// package reads before touching a position.
package market

import (
	"math/big"

	"github.com/holiman/uint256"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/events"
	"gmsolcore/core/types"
	"gmsolcore/oracle"
)

// Report summarizes the three pre-execute steps, following the common
// pattern of returning a small summary struct callers fold into a single
// emitted event rather than three.
type Report struct {
	ImpactDistributed   *big.Int
	BorrowingDeltaLong  *big.Int
	BorrowingDeltaShort *big.Int
	FundingDeltaLong    *big.Int
	FundingDeltaShort   *big.Int
}

func bigFromUint256(v *uint256.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v.ToBig()
}

// Prices resolves the long/short/index token prices a market needs from the
// cleared oracle snapshot.
func Prices(m *types.Market, prices oracle.Prices) (long, short, index oracle.Price, err error) {
	if long, err = prices.For(m.LongToken); err != nil {
		return oracle.Price{}, oracle.Price{}, oracle.Price{}, err
	}
	if short, err = prices.For(m.ShortToken); err != nil {
		return oracle.Price{}, oracle.Price{}, oracle.Price{}, err
	}
	if index, err = prices.For(m.IndexToken); err != nil {
		return oracle.Price{}, oracle.Price{}, oracle.Price{}, err
	}
	return long, short, index, nil
}

// DistributePositionImpact drains a fraction of the impact pool back toward
// neutral over elapsed time, the first step of the pre-execute ritual.
func DistributePositionImpact(m *types.Market, now int64) *big.Int {
	elapsed := elapsedSince(m, types.ClockADL, now)
	if elapsed <= 0 {
		return big.NewInt(0)
	}
	pool := m.Long.ImpactPool
	if pool == nil || pool.IsZero() {
		m.ClockUpdatedAt[types.ClockADL] = now
		return big.NewInt(0)
	}
	// drain 1/10000 of the pool per elapsed second, floor at zero.
	drain := new(uint256.Int).Div(pool, uint256.NewInt(10_000))
	drain.Mul(drain, uint256.NewInt(uint64(elapsed)))
	if drain.Gt(pool) {
		drain.Set(pool)
	}
	if drain.IsZero() {
		m.ClockUpdatedAt[types.ClockADL] = now
		return big.NewInt(0)
	}
	pool.Sub(pool, drain)
	m.ClockUpdatedAt[types.ClockADL] = now
	return drain.ToBig()
}

func elapsedSince(m *types.Market, clock types.ClockKind, now int64) int64 {
	if m.ClockUpdatedAt == nil {
		m.ClockUpdatedAt = make(map[types.ClockKind]int64)
	}
	last, ok := m.ClockUpdatedAt[clock]
	if !ok || last == 0 {
		return 0
	}
	if now <= last {
		return 0
	}
	return now - last
}

// UpdateBorrowing accrues the borrowing-factor pool for each side
// proportional to that side's reserved utilization (open interest over
// primary pool) and elapsed time.
func UpdateBorrowing(m *types.Market, now int64) (long, short *big.Int) {
	elapsed := elapsedSince(m, types.ClockBorrowing, now)
	m.ClockUpdatedAt[types.ClockBorrowing] = now
	if elapsed <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	accrueSide := func(pool *types.PoolAmounts) *big.Int {
		if pool.PrimaryPool == nil || pool.PrimaryPool.IsZero() {
			return big.NewInt(0)
		}
		reserveFactor := uint256.NewInt(uint64(m.Config.ReserveFactorBps))
		utilization := new(uint256.Int).Mul(pool.OpenInterest, reserveFactor)
		utilization.Div(utilization, uint256.NewInt(10_000))
		utilization.Mul(utilization, uint256.NewInt(uint64(elapsed)))
		delta := new(uint256.Int).Div(utilization, pool.PrimaryPool)
		pool.BorrowingFactorPool.Add(pool.BorrowingFactorPool, delta)
		return delta.ToBig()
	}
	return accrueSide(&m.Long), accrueSide(&m.Short)
}

// UpdateFunding accrues the funding amount-per-size pool of the heavier
// open-interest side in proportion to the long/short imbalance and elapsed
// time; the lighter side's pool is left unchanged. It is monotone
// non-decreasing per the funding-monotonicity property: both accumulators
// only ever grow.
func UpdateFunding(m *types.Market, now int64) (long, short *big.Int) {
	elapsedL := elapsedSince(m, types.ClockFundingLong, now)
	elapsedS := elapsedSince(m, types.ClockFundingShort, now)
	m.ClockUpdatedAt[types.ClockFundingLong] = now
	m.ClockUpdatedAt[types.ClockFundingShort] = now
	if elapsedL <= 0 && elapsedS <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	imbalance := new(uint256.Int).Sub(m.Long.OpenInterest, m.Short.OpenInterest)
	negative := false
	if m.Long.OpenInterest.Cmp(m.Short.OpenInterest) < 0 {
		imbalance = new(uint256.Int).Sub(m.Short.OpenInterest, m.Long.OpenInterest)
		negative = true
	}
	elapsed := elapsedL
	if elapsedS > elapsed {
		elapsed = elapsedS
	}
	rate := new(uint256.Int).Mul(imbalance, uint256.NewInt(uint64(elapsed)))
	rate.Div(rate, uint256.NewInt(1_000_000))
	if negative {
		m.Short.FundingPerSizePool.Add(m.Short.FundingPerSizePool, rate)
		return big.NewInt(0), rate.ToBig()
	}
	m.Long.FundingPerSizePool.Add(m.Long.FundingPerSizePool, rate)
	return rate.ToBig(), big.NewInt(0)
}

// PreExecuteRitual runs the three steps in the mandated order (distribute
// impact, update borrowing, update funding) exactly once per execution and
// emits the summarizing MarketFeesUpdated record.
func PreExecuteRitual(m *types.Market, now int64, emitter events.Emitter) Report {
	if m.ClockUpdatedAt == nil {
		m.ClockUpdatedAt = make(map[types.ClockKind]int64)
	}
	impact := DistributePositionImpact(m, now)
	borrowL, borrowS := UpdateBorrowing(m, now)
	fundL, fundS := UpdateFunding(m, now)
	report := Report{
		ImpactDistributed:   impact,
		BorrowingDeltaLong:  borrowL,
		BorrowingDeltaShort: borrowS,
		FundingDeltaLong:    fundL,
		FundingDeltaShort:   fundS,
	}
	if emitter != nil {
		emitter.Emit(events.MarketFeesUpdated{
			StoreID:                       m.StoreID,
			MarketTokenID:                 m.MarketTokenID,
			Revision:                      m.Revision,
			PositionImpactDistributedLong: impact.String(),
			BorrowingFactorLong:           borrowL.String(),
			BorrowingFactorShort:          borrowS.String(),
			FundingPerSizeLong:            fundL.String(),
			FundingPerSizeShort:           fundS.String(),
		})
	}
	return report
}

// PnlFactor returns the aggregate open PnL of a side's positions as a
// fraction of that side's pool value, in basis points. maximize selects
// whether to use the bid or ask leg of the index price.
func PnlFactor(m *types.Market, indexPrice oracle.Price, isLong bool, maximize bool) *big.Int {
	pool := m.Pool(isLong)
	if pool.PrimaryPool == nil || pool.PrimaryPool.IsZero() {
		return big.NewInt(0)
	}
	price := indexPrice.Pick(maximize)
	if price == nil || price.Sign() == 0 {
		return big.NewInt(0)
	}
	openInterestValue := new(big.Int).Mul(pool.OpenInterestInTokens.ToBig(), price)
	poolValue := pool.PrimaryPool.ToBig()
	pnl := new(big.Int).Sub(openInterestValue, pool.OpenInterest.ToBig())
	factor := new(big.Int).Mul(pnl, big.NewInt(10_000))
	if poolValue.Sign() == 0 {
		return big.NewInt(0)
	}
	return factor.Div(factor, poolValue)
}

// PnlFactorExceeded reports whether the side's PnL factor is at or beyond
// the configured threshold for the given ADL/trader cap kind.
func PnlFactorExceeded(m *types.Market, indexPrice oracle.Price, isLong bool, thresholdBps uint32) (bool, *big.Int) {
	factor := PnlFactor(m, indexPrice, isLong, true)
	threshold := big.NewInt(int64(thresholdBps))
	abs := new(big.Int).Abs(factor)
	return abs.Cmp(threshold) >= 0, factor
}

// PoolUsdValue returns a side's pool value (primary pool token balance
// valued at its token price, net of outstanding trader PnL) used to price
// the market token for Deposit/Withdrawal/Shift.
func PoolUsdValue(m *types.Market, isLong bool, tokenPrice *big.Int) *big.Int {
	pool := m.Pool(isLong)
	value := new(big.Int).Mul(pool.PrimaryPool.ToBig(), tokenPrice)
	openInterestValue := new(big.Int).Mul(pool.OpenInterestInTokens.ToBig(), tokenPrice)
	pnl := new(big.Int).Sub(openInterestValue, pool.OpenInterest.ToBig())
	value.Sub(value, pnl)
	if value.Sign() < 0 {
		return big.NewInt(0)
	}
	return value
}

// ValidateMarketBalances enforces the vault-pool consistency invariant:
// the vault balance of each side must cover the pool's credited amount
// (LP pool plus escrowed position collateral) plus any extra amount about
// to be transferred out.
func ValidateMarketBalances(m *types.Market, vaultLong, vaultShort, extraLongOut, extraShortOut *big.Int) error {
	check := func(vault, extraOut *big.Int, pool *types.PoolAmounts, side string) error {
		credited := new(big.Int).Add(pool.PrimaryPool.ToBig(), pool.CollateralSum.ToBig())
		required := new(big.Int).Add(credited, extraOut)
		if vault.Cmp(required) < 0 {
			return coreerrors.New(coreerrors.CodeNotEnoughTokenAmount, "vault balance below pool-credited amount: "+side)
		}
		return nil
	}
	if err := check(vaultLong, extraLongOut, &m.Long, "long"); err != nil {
		return err
	}
	return check(vaultShort, extraShortOut, &m.Short, "short")
}
