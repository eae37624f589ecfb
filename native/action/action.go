// Package action implements the Deposit/Withdrawal/Shift lifecycle (design
// I): three degenerate order types that mint or burn a market's GM token
// against its pools instead of opening a position. It mirrors
// native/order's Create/Execute/Close scaffold over core/state's Action
// CRUD, but dispatches per-kind directly rather than through a shared
// trigger-price/oracle-expiry policy, since none of the three actions are
// limit orders.
package action

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/state"
	"gmsolcore/core/types"
	"gmsolcore/native/common"
	"gmsolcore/native/market"
	"gmsolcore/native/revertible"
	"gmsolcore/native/swappath"
	"gmsolcore/observability"
	"gmsolcore/oracle"
)

// CreateParams bundles every field an action of any kind may set; fields
// irrelevant to the chosen Kind are ignored by Create's validation.
type CreateParams struct {
	Kind types.ActionKind

	MarketID     string
	FromMarketID string
	ToMarketID   string

	LongAmount  *big.Int
	ShortAmount *big.Int

	LongSwapPath  []string
	ShortSwapPath []string

	MarketTokenAmount *big.Int
	MinLongOutput     *big.Int
	MinShortOutput    *big.Int
	MinMarketTokens   *big.Int

	ShouldUnwrapNative bool
	ExecutionFeeAmount *big.Int
	RentReceiver       string

	// PauseView backs the store/feature pause check Create runs against the
	// action kind before anything else; nil leaves every kind unpaused.
	PauseView common.PauseView

	Now  int64
	Slot uint64
}

func requireEnabledMarket(manager *state.Manager, storeID, marketID string) (*types.Market, error) {
	m, err := manager.MarketRequire(storeID, marketID)
	if err != nil {
		return nil, err
	}
	if !m.Enabled {
		return nil, coreerrors.New(coreerrors.CodeDisabledMarket, "market is disabled").WithAccount(marketID)
	}
	return m, nil
}

// Create validates and persists a new Pending Deposit/Withdrawal/Shift
// action. The action kind's feature flag must not be paused before any
// other precondition runs.
func Create(manager *state.Manager, storeID, owner string, params CreateParams) (*types.Action, error) {
	if err := common.Guard(params.PauseView, "action:"+params.Kind.String()); err != nil {
		return nil, err
	}

	switch params.Kind {
	case types.ActionDeposit:
		if _, err := requireEnabledMarket(manager, storeID, params.MarketID); err != nil {
			return nil, err
		}
		hasLong := params.LongAmount != nil && params.LongAmount.Sign() > 0
		hasShort := params.ShortAmount != nil && params.ShortAmount.Sign() > 0
		if !hasLong && !hasShort {
			return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "deposit requires a positive long or short amount")
		}
	case types.ActionWithdrawal:
		if _, err := requireEnabledMarket(manager, storeID, params.MarketID); err != nil {
			return nil, err
		}
		if params.MarketTokenAmount == nil || params.MarketTokenAmount.Sign() <= 0 {
			return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "withdrawal requires a positive market token amount")
		}
	case types.ActionShift:
		from, err := requireEnabledMarket(manager, storeID, params.FromMarketID)
		if err != nil {
			return nil, err
		}
		to, err := requireEnabledMarket(manager, storeID, params.ToMarketID)
		if err != nil {
			return nil, err
		}
		if !types.ShiftCompatible(from, to) {
			return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "markets are not shiftable peers")
		}
		if params.MarketTokenAmount == nil || params.MarketTokenAmount.Sign() <= 0 {
			return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "shift requires a positive market token amount")
		}
	default:
		return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "unknown action kind")
	}

	nonce, err := manager.NextActionNonce(storeID, owner)
	if err != nil {
		return nil, err
	}

	idMarket := params.MarketID
	if params.Kind == types.ActionShift {
		idMarket = params.FromMarketID
	}
	id, err := manager.NextOrderID(storeID, idMarket)
	if err != nil {
		return nil, err
	}

	a := &types.Action{
		StoreID:            storeID,
		Owner:              owner,
		Nonce:              nonce,
		ID:                 id,
		Kind:               params.Kind,
		MarketID:           params.MarketID,
		FromMarketID:       params.FromMarketID,
		ToMarketID:         params.ToMarketID,
		LongAmount:         params.LongAmount,
		ShortAmount:        params.ShortAmount,
		LongSwapPath:       params.LongSwapPath,
		ShortSwapPath:      params.ShortSwapPath,
		MarketTokenAmount:  params.MarketTokenAmount,
		MinLongOutput:      params.MinLongOutput,
		MinShortOutput:     params.MinShortOutput,
		MinMarketTokens:    params.MinMarketTokens,
		ShouldUnwrapNative: params.ShouldUnwrapNative,
		ExecutionFeeAmount: params.ExecutionFeeAmount,
		RentReceiver:       params.RentReceiver,
		State:              types.OrderStatePending,
		UpdatedAt:          params.Now,
		UpdatedAtSlot:      params.Slot,
	}
	if err := manager.ActionPut(a); err != nil {
		return nil, err
	}
	return a, nil
}

// ExecuteParams bundles Execute's per-call inputs.
type ExecuteParams struct {
	Prices oracle.Prices
	Now    int64
	Slot   uint64
}

// ExecuteReport is Execute's outcome.
type ExecuteReport struct {
	Action           *types.Action
	MarketTokensOut  *big.Int // Deposit
	LongOut          *big.Int // Withdrawal/Shift
	ShortOut         *big.Int // Withdrawal/Shift
	DestMarketTokens *big.Int // Shift
}

func tokenValue(supply *uint256.Int, poolValue *big.Int) *big.Int {
	if supply == nil || supply.IsZero() {
		return nil // no existing price; caller mints 1:1 against USD value
	}
	value := new(big.Int).Div(poolValue, supply.ToBig())
	return value
}

func supplyOrZero(m *types.Market) *uint256.Int {
	if m.MarketTokenSupply == nil {
		m.MarketTokenSupply = uint256.NewInt(0)
	}
	return m.MarketTokenSupply
}

// Execute runs a Pending action to completion: Deposit mints market tokens
// against swapped-in collateral, Withdrawal burns market tokens for a
// proportional share of both pools, and Shift burns market tokens of one
// market and mints the peer market's tokens for an equivalent USD value.
func Execute(manager *state.Manager, a *types.Action, params ExecuteParams) (report *ExecuteReport, err error) {
	start := time.Now()
	defer func() {
		outcome := "completed"
		if err != nil {
			outcome = "error"
		}
		observability.Engine().ObserveOrderExecution(a.Kind.String(), outcome, time.Since(start))
	}()

	if a.State != types.OrderStatePending {
		return nil, coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "action is not pending")
	}

	switch a.Kind {
	case types.ActionDeposit:
		return executeDeposit(manager, a, params)
	case types.ActionWithdrawal:
		return executeWithdrawal(manager, a, params)
	case types.ActionShift:
		return executeShift(manager, a, params)
	default:
		return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "unknown action kind")
	}
}

func executeDeposit(manager *state.Manager, a *types.Action, params ExecuteParams) (*ExecuteReport, error) {
	overlay, err := revertible.Load(manager, a.StoreID, []string{a.MarketID})
	if err != nil {
		return nil, err
	}
	m, ok := overlay.Market(a.MarketID)
	if !ok {
		return nil, coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "market not staged").WithAccount(a.MarketID)
	}

	longPrice, shortPrice, _, err := market.Prices(m, params.Prices)
	if err != nil {
		return nil, err
	}

	longAmount := a.LongAmount
	if longAmount == nil {
		longAmount = big.NewInt(0)
	}
	shortAmount := a.ShortAmount
	if shortAmount == nil {
		shortAmount = big.NewInt(0)
	}

	if len(a.LongSwapPath) > 0 && longAmount.Sign() > 0 {
		path := append([]string{a.MarketID}, a.LongSwapPath...)
		res, err := swappath.Execute(overlay.Markets(), params.Prices, path, &swappath.Stream{
			TokenIn:  m.LongToken,
			AmountIn: longAmount,
		}, nil)
		if err != nil {
			return nil, err
		}
		longAmount = res.AmountOutPrimary
	}
	if len(a.ShortSwapPath) > 0 && shortAmount.Sign() > 0 {
		path := append([]string{a.MarketID}, a.ShortSwapPath...)
		res, err := swappath.Execute(overlay.Markets(), params.Prices, path, &swappath.Stream{
			TokenIn:  m.ShortToken,
			AmountIn: shortAmount,
		}, nil)
		if err != nil {
			return nil, err
		}
		shortAmount = res.AmountOutPrimary
	}

	longValueUsd := new(big.Int).Mul(longAmount, longPrice.Mid())
	shortValueUsd := new(big.Int).Mul(shortAmount, shortPrice.Mid())
	mintValueUsd := new(big.Int).Add(longValueUsd, shortValueUsd)
	if mintValueUsd.Sign() <= 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "deposit produced no value to mint against")
	}

	poolValue := new(big.Int).Add(
		market.PoolUsdValue(m, true, longPrice.Mid()),
		market.PoolUsdValue(m, false, shortPrice.Mid()),
	)

	supply := supplyOrZero(m)
	var marketTokensOut *big.Int
	if supply.IsZero() || poolValue.Sign() == 0 {
		marketTokensOut = new(big.Int).Set(mintValueUsd)
	} else {
		marketTokensOut = new(big.Int).Mul(mintValueUsd, supply.ToBig())
		marketTokensOut.Div(marketTokensOut, poolValue)
	}
	if a.MinMarketTokens != nil && marketTokensOut.Cmp(a.MinMarketTokens) < 0 {
		return nil, coreerrors.New(coreerrors.CodeInsufficientOutputAmount, "minted market tokens below minimum")
	}

	if longAmount.Sign() > 0 {
		if err := manager.MarketTransferIn(m, true, longAmount); err != nil {
			return nil, err
		}
	}
	if shortAmount.Sign() > 0 {
		if err := manager.MarketTransferIn(m, false, shortAmount); err != nil {
			return nil, err
		}
	}
	out256, overflow := uint256.FromBig(marketTokensOut)
	if overflow {
		return nil, coreerrors.New(coreerrors.CodeTokenAmountOverflow, "minted market token amount exceeds uint256 range")
	}
	supply.Add(supply, out256)
	if err := manager.MarketPut(m); err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, err
	}

	a.State = types.OrderStateCompleted
	a.UpdatedAt = params.Now
	a.UpdatedAtSlot = params.Slot
	if err := manager.ActionPut(a); err != nil {
		return nil, err
	}
	return &ExecuteReport{Action: a, MarketTokensOut: marketTokensOut}, nil
}

func executeWithdrawal(manager *state.Manager, a *types.Action, params ExecuteParams) (*ExecuteReport, error) {
	overlay, err := revertible.Load(manager, a.StoreID, []string{a.MarketID})
	if err != nil {
		return nil, err
	}
	m, ok := overlay.Market(a.MarketID)
	if !ok {
		return nil, coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "market not staged").WithAccount(a.MarketID)
	}

	longPrice, shortPrice, _, err := market.Prices(m, params.Prices)
	if err != nil {
		return nil, err
	}

	supply := supplyOrZero(m)
	if supply.IsZero() || supply.ToBig().Cmp(a.MarketTokenAmount) < 0 {
		return nil, coreerrors.New(coreerrors.CodeNotEnoughTokenAmount, "withdrawal amount exceeds market token supply")
	}

	longPoolValue := market.PoolUsdValue(m, true, longPrice.Mid())
	shortPoolValue := market.PoolUsdValue(m, false, shortPrice.Mid())
	totalPoolValue := new(big.Int).Add(longPoolValue, shortPoolValue)
	if totalPoolValue.Sign() == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "market has no pool value to redeem")
	}

	redeemValue := new(big.Int).Mul(a.MarketTokenAmount, totalPoolValue)
	redeemValue.Div(redeemValue, supply.ToBig())

	longShareValue := new(big.Int).Mul(redeemValue, longPoolValue)
	longShareValue.Div(longShareValue, totalPoolValue)
	shortShareValue := new(big.Int).Sub(redeemValue, longShareValue)

	longOut := big.NewInt(0)
	if longPrice.Mid().Sign() > 0 {
		longOut = new(big.Int).Div(longShareValue, longPrice.Mid())
	}
	shortOut := big.NewInt(0)
	if shortPrice.Mid().Sign() > 0 {
		shortOut = new(big.Int).Div(shortShareValue, shortPrice.Mid())
	}

	if a.MinLongOutput != nil && longOut.Cmp(a.MinLongOutput) < 0 {
		return nil, coreerrors.New(coreerrors.CodeInsufficientOutputAmount, "long output below minimum")
	}
	if a.MinShortOutput != nil && shortOut.Cmp(a.MinShortOutput) < 0 {
		return nil, coreerrors.New(coreerrors.CodeInsufficientOutputAmount, "short output below minimum")
	}

	if longOut.Sign() > 0 {
		if err := manager.MarketTransferOut(m, true, longOut); err != nil {
			return nil, err
		}
	}
	if shortOut.Sign() > 0 {
		if err := manager.MarketTransferOut(m, false, shortOut); err != nil {
			return nil, err
		}
	}
	burn256, overflow := uint256.FromBig(a.MarketTokenAmount)
	if overflow {
		return nil, coreerrors.New(coreerrors.CodeTokenAmountOverflow, "burn amount exceeds uint256 range")
	}
	supply.Sub(supply, burn256)
	if err := manager.MarketPut(m); err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, err
	}

	a.State = types.OrderStateCompleted
	a.UpdatedAt = params.Now
	a.UpdatedAtSlot = params.Slot
	if err := manager.ActionPut(a); err != nil {
		return nil, err
	}
	return &ExecuteReport{Action: a, LongOut: longOut, ShortOut: shortOut}, nil
}

func executeShift(manager *state.Manager, a *types.Action, params ExecuteParams) (*ExecuteReport, error) {
	overlay, err := revertible.Load(manager, a.StoreID, []string{a.FromMarketID, a.ToMarketID})
	if err != nil {
		return nil, err
	}
	from, ok := overlay.Market(a.FromMarketID)
	if !ok {
		return nil, coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "source market not staged").WithAccount(a.FromMarketID)
	}
	to, ok := overlay.Market(a.ToMarketID)
	if !ok {
		return nil, coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "destination market not staged").WithAccount(a.ToMarketID)
	}
	if !types.ShiftCompatible(from, to) {
		return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "markets are not shiftable peers")
	}

	longPrice, shortPrice, _, err := market.Prices(from, params.Prices)
	if err != nil {
		return nil, err
	}

	fromSupply := supplyOrZero(from)
	if fromSupply.IsZero() || fromSupply.ToBig().Cmp(a.MarketTokenAmount) < 0 {
		return nil, coreerrors.New(coreerrors.CodeNotEnoughTokenAmount, "shift amount exceeds source market token supply")
	}

	fromLongValue := market.PoolUsdValue(from, true, longPrice.Mid())
	fromShortValue := market.PoolUsdValue(from, false, shortPrice.Mid())
	fromTotalValue := new(big.Int).Add(fromLongValue, fromShortValue)
	if fromTotalValue.Sign() == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "source market has no pool value to shift")
	}

	redeemValue := new(big.Int).Mul(a.MarketTokenAmount, fromTotalValue)
	redeemValue.Div(redeemValue, fromSupply.ToBig())

	longShareValue := new(big.Int).Mul(redeemValue, fromLongValue)
	longShareValue.Div(longShareValue, fromTotalValue)
	shortShareValue := new(big.Int).Sub(redeemValue, longShareValue)

	longAmount := big.NewInt(0)
	if longPrice.Mid().Sign() > 0 {
		longAmount = new(big.Int).Div(longShareValue, longPrice.Mid())
	}
	shortAmount := big.NewInt(0)
	if shortPrice.Mid().Sign() > 0 {
		shortAmount = new(big.Int).Div(shortShareValue, shortPrice.Mid())
	}

	if longAmount.Sign() > 0 {
		if err := manager.MarketTransferOut(from, true, longAmount); err != nil {
			return nil, err
		}
		if err := manager.MarketTransferIn(to, true, longAmount); err != nil {
			return nil, err
		}
	}
	if shortAmount.Sign() > 0 {
		if err := manager.MarketTransferOut(from, false, shortAmount); err != nil {
			return nil, err
		}
		if err := manager.MarketTransferIn(to, false, shortAmount); err != nil {
			return nil, err
		}
	}

	burn256, overflow := uint256.FromBig(a.MarketTokenAmount)
	if overflow {
		return nil, coreerrors.New(coreerrors.CodeTokenAmountOverflow, "shift amount exceeds uint256 range")
	}
	fromSupply.Sub(fromSupply, burn256)

	toSupply := supplyOrZero(to)
	toLongPrice, toShortPrice, _, err := market.Prices(to, params.Prices)
	if err != nil {
		return nil, err
	}
	toPoolValue := new(big.Int).Add(
		market.PoolUsdValue(to, true, toLongPrice.Mid()),
		market.PoolUsdValue(to, false, toShortPrice.Mid()),
	)
	var destTokensOut *big.Int
	if toSupply.IsZero() || toPoolValue.Sign() == 0 {
		destTokensOut = new(big.Int).Set(redeemValue)
	} else {
		destTokensOut = new(big.Int).Mul(redeemValue, toSupply.ToBig())
		destTokensOut.Div(destTokensOut, toPoolValue)
	}
	if a.MinMarketTokens != nil && destTokensOut.Cmp(a.MinMarketTokens) < 0 {
		return nil, coreerrors.New(coreerrors.CodeInsufficientOutputAmount, "minted destination market tokens below minimum")
	}
	dest256, overflow := uint256.FromBig(destTokensOut)
	if overflow {
		return nil, coreerrors.New(coreerrors.CodeTokenAmountOverflow, "destination market token amount exceeds uint256 range")
	}
	toSupply.Add(toSupply, dest256)

	if err := manager.MarketPut(from); err != nil {
		return nil, err
	}
	if err := manager.MarketPut(to); err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, err
	}

	a.State = types.OrderStateCompleted
	a.UpdatedAt = params.Now
	a.UpdatedAtSlot = params.Slot
	if err := manager.ActionPut(a); err != nil {
		return nil, err
	}
	return &ExecuteReport{Action: a, LongOut: longAmount, ShortOut: shortAmount, DestMarketTokens: destTokensOut}, nil
}

// Close releases a terminal action's escrow/rent record, mirroring
// native/order.Close.
func Close(manager *state.Manager, a *types.Action) error {
	if a.State == types.OrderStatePending {
		return coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "action must be completed or cancelled before close")
	}
	return manager.ActionDelete(a.StoreID, a.Owner, a.Nonce)
}
