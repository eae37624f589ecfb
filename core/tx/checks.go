// Package tx holds precondition checks shared by the order/action creation
// paths, kept as narrow functions over the caller's already
// loaded types.Market/types.Position rather than a concrete state manager,
// so they can be unit tested without standing up a trie.
package tx

import (
	"math/big"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
)

// CheckMarketEnabled returns DisabledMarket when the market is disabled, or
// FeatureDisabled when the feature flag for this specific order kind is off.
func CheckMarketEnabled(market *types.Market, kindEnabled bool) error {
	if market == nil {
		return coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "market account is not provided")
	}
	if !market.Enabled {
		return coreerrors.New(coreerrors.CodeDisabledMarket, "market is disabled").WithAccount(market.MarketTokenID)
	}
	if !kindEnabled {
		return coreerrors.New(coreerrors.CodeFeatureDisabled, "order kind feature flag disabled")
	}
	return nil
}

// CheckCreateAmounts validates the E Create preconditions around
// collateral/size amounts:
//
// - increase/swap kinds require initial_collateral_delta_amount > 0 and
// sourceBalance to cover it.
// - decrease kinds require size_delta_value > 0 OR
// initial_collateral_delta_amount > 0, UNLESS the kind is MarketDecrease
// (which may be empty, to claim funding rebates only).
func CheckCreateAmounts(kind types.OrderKind, initialCollateralDeltaAmount, sizeDeltaValue, sourceBalance *big.Int) error {
	switch {
	case kind.IsIncrease() || kind.IsSwap():
		if initialCollateralDeltaAmount == nil || initialCollateralDeltaAmount.Sign() <= 0 {
			return coreerrors.New(coreerrors.CodeInvalidArgument, "initial_collateral_delta_amount must be positive")
		}
		if sourceBalance == nil || sourceBalance.Cmp(initialCollateralDeltaAmount) < 0 {
			return coreerrors.New(coreerrors.CodeNotEnoughTokenAmount, "source account balance insufficient")
		}
		return nil
	case kind.IsDecrease():
		hasSize := sizeDeltaValue != nil && sizeDeltaValue.Sign() > 0
		hasCollateral := initialCollateralDeltaAmount != nil && initialCollateralDeltaAmount.Sign() > 0
		if kind == types.OrderKindMarketDecrease {
			return nil
		}
		if !hasSize && !hasCollateral {
			return coreerrors.New(coreerrors.CodeEmptyOrder, "decrease order has no size or collateral delta")
		}
		return nil
	default:
		return nil
	}
}

// CheckSwapPath validates that every step of a swap path is an enabled
// market of the same store, and that the path does not cycle back to the
// originating token without a conversion. It returns the final output token.
func CheckSwapPath(markets map[string]*types.Market, storeID, fromToken string, path []string) (string, error) {
	currentToken := fromToken
	visited := make(map[string]bool, len(path))
	for _, marketID := range path {
		market, ok := markets[marketID]
		if !ok || market == nil {
			return "", coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "swap path market not provided").WithAccount(marketID)
		}
		if market.StoreID != storeID {
			return "", coreerrors.New(coreerrors.CodeStoreMismatched, "swap path market belongs to a different store").WithAccount(marketID)
		}
		if !market.Enabled {
			return "", coreerrors.New(coreerrors.CodeDisabledMarket, "swap path market is disabled").WithAccount(marketID)
		}
		var nextToken string
		switch currentToken {
		case market.LongToken:
			nextToken = market.ShortToken
		case market.ShortToken:
			nextToken = market.LongToken
		default:
			return "", coreerrors.New(coreerrors.CodeInvalidSwapPath, "token routed at step does not match producing pool").WithAccount(marketID)
		}
		if visited[currentToken+"->"+nextToken] {
			return "", coreerrors.New(coreerrors.CodeInvalidSwapPath, "swap path revisits a token pair without conversion")
		}
		visited[currentToken+"->"+nextToken] = true
		currentToken = nextToken
	}
	if len(path) == 0 {
		return fromToken, nil
	}
	return currentToken, nil
}

// CheckExecutionFee requires the prepaid execution fee to meet the per-kind
// minimum.
func CheckExecutionFee(paid, minimum *big.Int) error {
	if minimum == nil || minimum.Sign() == 0 {
		return nil
	}
	if paid == nil || paid.Cmp(minimum) < 0 {
		return coreerrors.New(coreerrors.CodeNotEnoughTokenAmount, "execution fee below per-kind minimum")
	}
	return nil
}

// CheckPositionForOrder validates the increase/decrease position binding
// rule: an increase/decrease order requires a Position PDA that either does
// not yet exist (the create call initializes it) or already exists for this
// exact (owner, market, collateral_token, side).
func CheckPositionForOrder(existing *types.Position, owner, marketID, collateralToken string, side types.Side) error {
	if existing == nil {
		return nil
	}
	if existing.Owner != owner || existing.MarketToken != marketID ||
		existing.CollateralToken != collateralToken || existing.Side != side {
		return coreerrors.New(coreerrors.CodePositionMismatched, "existing position does not match order owner/market/collateral/side")
	}
	return nil
}
