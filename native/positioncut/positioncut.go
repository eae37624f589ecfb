// Package positioncut implements the Position-Cut Driver:
// Liquidation and Auto-Deleveraging, both of which synthesize an internal
// decrease against native/position and enforce the pre/post-execution
// guards each cut requires before and after it runs.
package positioncut

import (
	"math/big"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
	"gmsolcore/native/market"
	"gmsolcore/native/position"
	"gmsolcore/observability"
	"gmsolcore/oracle"
)

// LiquidationReport bundles the synthesized decrease's outcome with the
// liquidation-specific reason that authorized it.
type LiquidationReport struct {
	Decrease *position.DecreaseReport
	Reason   string
}

// Liquidate synthesizes and executes a full-size decrease against an
// insolvent or under-margined position.
func Liquidate(p *types.Position, m *types.Market, prices oracle.Prices, now int64, slot uint64) (*LiquidationReport, error) {
	liquidatable, reason := position.CheckLiquidatable(p, m, prices)
	if !liquidatable {
		observability.Engine().RecordPositionCut("liquidation", "error")
		return nil, coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "position is not liquidatable at current prices")
	}
	if p.IsEmpty() {
		observability.Engine().RecordPositionCut("liquidation", "error")
		return nil, coreerrors.New(coreerrors.CodeEmptyOrder, "cannot liquidate an empty position")
	}

	report, err := position.Decrease(p, m, position.DecreaseParams{
		Prices:                  prices,
		SizeDeltaUsd:            new(big.Int).Set(p.SizeInUsd),
		IsLiquidationOrder:      true,
		IsInsolventCloseAllowed: true,
		SwapType:                types.DecreaseSwapPnlToCollateral,
		Now:                     now,
		Slot:                    slot,
	})
	if err != nil {
		observability.Engine().RecordPositionCut("liquidation", "error")
		return nil, err
	}
	observability.Engine().RecordPositionCut("liquidation", "completed")
	return &LiquidationReport{Decrease: report, Reason: reason}, nil
}

// AdlReport bundles the synthesized decrease's outcome with the
// before/after PnL-factor readings the ADL guard requires.
type AdlReport struct {
	Decrease        *position.DecreaseReport
	PnlFactorBefore *big.Int
	PnlFactorAfter  *big.Int
}

// AutoDeleverage synthesizes and executes a partial decrease against a
// profitable position once the market's pnl_factor_for_adl threshold is
// exceeded on the position's side.
func AutoDeleverage(p *types.Position, m *types.Market, prices oracle.Prices, sizeDelta *big.Int, now int64, slot uint64) (*AdlReport, error) {
	indexPrice, err := prices.For(m.IndexToken)
	if err != nil {
		return nil, err
	}

	exceeded, before := market.PnlFactorExceeded(m, indexPrice, p.Side.IsLong(), m.Config.MaxPnlFactorForAdl)
	if !exceeded {
		observability.Engine().RecordPositionCut("adl", "error")
		return nil, coreerrors.New(coreerrors.CodeAdlNotRequired, "pnl factor for adl not exceeded")
	}

	report, err := position.Decrease(p, m, position.DecreaseParams{
		Prices:       prices,
		SizeDeltaUsd: new(big.Int).Set(sizeDelta),
		SwapType:     types.DecreaseSwapPnlToCollateral,
		Now:          now,
		Slot:         slot,
	})
	if err != nil {
		observability.Engine().RecordPositionCut("adl", "error")
		return nil, err
	}

	_, after := market.PnlFactorExceeded(m, indexPrice, p.Side.IsLong(), m.Config.MaxPnlFactorForAdl)
	if new(big.Int).Abs(after).Cmp(new(big.Int).Abs(before)) >= 0 {
		observability.Engine().RecordPositionCut("adl", "error")
		return nil, coreerrors.New(coreerrors.CodeInvalidAdl, "pnl factor did not strictly decrease")
	}
	minAfter := big.NewInt(int64(m.Config.MinPnlFactorAfterAdl))
	if after.Cmp(minAfter) < 0 {
		observability.Engine().RecordPositionCut("adl", "error")
		return nil, coreerrors.New(coreerrors.CodeInvalidAdl, "pnl factor after adl below configured minimum")
	}

	observability.Engine().RecordPositionCut("adl", "completed")
	return &AdlReport{Decrease: report, PnlFactorBefore: before, PnlFactorAfter: after}, nil
}

// RentReceiver returns the order's rent receiver:
// the executor when the position survives the cut, the position owner
// when it is fully closed.
func RentReceiver(executor string, owner string, shouldRemove bool) string {
	if shouldRemove {
		return owner
	}
	return executor
}
