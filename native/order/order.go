// Package order implements the Order Lifecycle: Create,
// Update, Execute, and Close over core/state's Order CRUD, dispatching a
// pending order's execution to native/position, native/swappath, and
// native/revertible per its kind, under the market-kind-silently-cancels /
// limit-and-cut-kinds-throw propagation policy.
package order

import (
	"math/big"
	"time"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/state"
	"gmsolcore/core/types"
	"gmsolcore/native/claimablesched"
	"gmsolcore/native/common"
	"gmsolcore/native/market"
	"gmsolcore/native/position"
	"gmsolcore/native/positioncut"
	"gmsolcore/native/revertible"
	"gmsolcore/native/swappath"
	"gmsolcore/native/tradeevent"
	"gmsolcore/observability"
	"gmsolcore/oracle"

	"gmsolcore/core/events"
)

// CreateParams bundles the inputs to Create.
type CreateParams struct {
	Kind types.OrderKind
	Side types.Side

	MarketID string

	InitialCollateralDeltaAmount *big.Int
	SizeDeltaValue               *big.Int
	TriggerPrice                 *big.Int
	AcceptablePrice              *big.Int
	MinOutput                    *big.Int
	ValidFromTs                  int64

	DecreasePositionSwapType types.DecreasePositionSwapType
	ShouldUnwrapNative       bool

	ExecutionFeeAmount    *big.Int
	PositionCutRentAmount *big.Int

	FromToken string
	ToToken   string
	SwapPath  []string

	InitialCollateralEscrowAccount string
	FinalOutputEscrowAccount       string
	SecondaryOutputEscrowAccount   string

	RentReceiver string

	// PauseView backs the store/feature pause check Create runs against the
	// order kind before anything else; nil leaves every kind unpaused.
	PauseView common.PauseView

	Now  int64
	Slot uint64
}

// Create validates and persists a new Pending order. The market and
// every swap-path hop must be enabled; the order kind's feature flag must
// not be paused; increase
// and swap kinds require a positive initial collateral delta; decrease
// kinds require a positive size or collateral delta unless the kind is
// MarketDecrease, which may be entirely empty to claim a funding rebate
// (see types.Order.IsDecreaseWithoutDelta).
func Create(manager *state.Manager, storeID, owner string, params CreateParams) (*types.Order, error) {
	if err := common.Guard(params.PauseView, "order:"+params.Kind.String()); err != nil {
		return nil, err
	}

	m, err := manager.MarketRequire(storeID, params.MarketID)
	if err != nil {
		return nil, err
	}
	if !m.Enabled {
		return nil, coreerrors.New(coreerrors.CodeDisabledMarket, "market is disabled").WithAccount(params.MarketID)
	}

	for _, hop := range params.SwapPath {
		hopMarket, err := manager.MarketRequire(storeID, hop)
		if err != nil {
			return nil, err
		}
		if !hopMarket.Enabled {
			return nil, coreerrors.New(coreerrors.CodeDisabledMarket, "swap path market is disabled").WithAccount(hop)
		}
	}

	if params.Kind.IsIncrease() || params.Kind.IsSwap() {
		if params.InitialCollateralDeltaAmount == nil || params.InitialCollateralDeltaAmount.Sign() <= 0 {
			return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "initial collateral delta amount must be positive")
		}
	}
	if params.Kind.IsDecrease() && params.Kind != types.OrderKindMarketDecrease {
		hasSize := params.SizeDeltaValue != nil && params.SizeDeltaValue.Sign() > 0
		hasCollateral := params.InitialCollateralDeltaAmount != nil && params.InitialCollateralDeltaAmount.Sign() > 0
		if !hasSize && !hasCollateral {
			return nil, coreerrors.New(coreerrors.CodeEmptyOrder, "decrease order has no size or collateral delta")
		}
	}

	nonce, err := manager.NextOrderNonce(storeID, owner)
	if err != nil {
		return nil, err
	}
	id, err := manager.NextOrderID(storeID, params.MarketID)
	if err != nil {
		return nil, err
	}

	o := &types.Order{
		StoreID: storeID,
		Owner:   owner,
		Nonce:   nonce,
		ID:      id,

		Kind:     params.Kind,
		Side:     params.Side,
		MarketID: params.MarketID,

		InitialCollateralDeltaAmount: params.InitialCollateralDeltaAmount,
		SizeDeltaValue:               params.SizeDeltaValue,
		TriggerPrice:                 params.TriggerPrice,
		AcceptablePrice:              params.AcceptablePrice,
		MinOutput:                    params.MinOutput,
		ValidFromTs:                  params.ValidFromTs,

		DecreasePositionSwapType: params.DecreasePositionSwapType,
		ShouldUnwrapNative:       params.ShouldUnwrapNative,

		ExecutionFeeAmount:    params.ExecutionFeeAmount,
		PositionCutRentAmount: params.PositionCutRentAmount,

		FromToken: params.FromToken,
		ToToken:   params.ToToken,
		SwapPath:  params.SwapPath,

		InitialCollateralEscrowAccount: params.InitialCollateralEscrowAccount,
		FinalOutputEscrowAccount:       params.FinalOutputEscrowAccount,
		SecondaryOutputEscrowAccount:   params.SecondaryOutputEscrowAccount,

		RentReceiver: params.RentReceiver,

		State: types.OrderStatePending,

		UpdatedAt:     params.Now,
		UpdatedAtSlot: params.Slot,
	}
	if err := manager.OrderPut(o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateParams carries the fields Update is permitted to change (design.md
// E "Update"): nil leaves the corresponding field untouched.
type UpdateParams struct {
	TriggerPrice    *big.Int
	AcceptablePrice *big.Int
	SizeDeltaValue  *big.Int
	MinOutput       *big.Int
	ValidFromTs     *int64
}

// Update applies an owner-initiated change to a limit/stop order still
// Pending. MarketSwap, MarketIncrease, MarketDecrease, Liquidation, and
// AutoDeleveraging orders reject Update outright (types.OrderKind.Updatable).
func Update(manager *state.Manager, o *types.Order, params UpdateParams, now int64, slot uint64) error {
	if !o.Kind.Updatable() {
		return coreerrors.New(coreerrors.CodeInvalidArgument, "order kind does not support update").WithAccount(o.Owner)
	}
	if o.State != types.OrderStatePending {
		return coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "order is not pending")
	}
	if params.TriggerPrice != nil {
		o.TriggerPrice = params.TriggerPrice
	}
	if params.AcceptablePrice != nil {
		o.AcceptablePrice = params.AcceptablePrice
	}
	if params.SizeDeltaValue != nil {
		o.SizeDeltaValue = params.SizeDeltaValue
	}
	if params.MinOutput != nil {
		o.MinOutput = params.MinOutput
	}
	if params.ValidFromTs != nil {
		o.ValidFromTs = *params.ValidFromTs
	}
	o.UpdatedAt = now
	o.UpdatedAtSlot = slot
	return manager.OrderPut(o)
}

// ExecuteParams bundles the per-call inputs to Execute.
type ExecuteParams struct {
	Owner                    string
	Prices                   oracle.Prices
	Now                      int64
	Slot                     uint64
	RequestExpirationSeconds int64
	KeeperID                 string

	// QuotaStore, ClaimableWindowSeconds, and HoldingBeneficiary back the
	// per-user-per-window claimable payout cap a decrease applies. QuotaStore
	// nil or ClaimableWindowSeconds zero leaves decrease payouts uncapped;
	// HoldingBeneficiary empty skips the holding-account fee mirror.
	QuotaStore             common.Store
	ClaimableWindowSeconds uint32
	HoldingBeneficiary     string

	// AdlMaxStalenessSeconds bounds how far behind params.Now the oracle
	// snapshot may be for an auto-deleveraging execution; zero disables the
	// check.
	AdlMaxStalenessSeconds int64
}

// ExecuteReport is Execute's outcome: the updated order, the position it
// touched (nil for swap orders), and the TradeEvent recorded for position
// orders (nil for swaps and for a silently-cancelled market order).
type ExecuteReport struct {
	Order      *types.Order
	Position   *types.Position
	TradeEvent *types.TradeEvent
	Cancelled  bool
}

// Execute runs the keeper-invoked execution path: oracle staleness and
// trigger-price gating, the pre-execute ritual, kind dispatch, output
// validation, and commit, following the error-propagation policy
// (market-kind swallows failure into Cancelled; limit/liquidation/ADL
// propagate).
func Execute(manager *state.Manager, tradeBuf *tradeevent.Buffer, emitter events.Emitter, o *types.Order, params ExecuteParams) (report *ExecuteReport, err error) {
	start := time.Now()
	defer func() {
		outcome := "completed"
		switch {
		case err != nil:
			outcome = "error"
		case report != nil && report.Cancelled:
			outcome = "cancelled"
		}
		observability.Engine().ObserveOrderExecution(o.Kind.String(), outcome, time.Since(start))
	}()

	if o.State != types.OrderStatePending {
		return nil, coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "order is not pending")
	}

	oracleTs := params.Prices.OldestTimestamp()

	if o.Kind.IsMarketKind() {
		if oracleTs < o.UpdatedAt || oracleTs > o.UpdatedAt+params.RequestExpirationSeconds {
			return cancelSilently(manager, o, params)
		}
	} else if o.Kind.IsLimitKind() {
		validFrom := o.UpdatedAt
		if o.ValidFromTs > validFrom {
			validFrom = o.ValidFromTs
		}
		if oracleTs < validFrom {
			return nil, coreerrors.New(coreerrors.CodeOracleTimestampsAreSmallerThanRequired, "oracle snapshot older than order's valid-from bound")
		}
	}

	if params.Now < o.ValidFromTs {
		return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "order not yet valid")
	}

	marketIDs := append([]string{o.MarketID}, o.SwapPath...)
	overlay, err := revertible.Load(manager, o.StoreID, marketIDs)
	if err != nil {
		return nil, err
	}
	primaryMarket, ok := overlay.Market(o.MarketID)
	if !ok {
		return nil, coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "primary market not staged").WithAccount(o.MarketID)
	}

	market.PreExecuteRitual(primaryMarket, params.Now, emitter)

	if err := checkTriggerPrice(o, params.Prices, primaryMarket); err != nil {
		observability.Engine().RecordRevertDiscarded()
		return failOrThrow(manager, o, err, params)
	}

	var pos *types.Position
	var tradeEv *types.TradeEvent

	switch {
	case o.Kind.IsSwap():
		err = executeSwap(overlay, o, params)
	case o.Kind.IsIncrease():
		pos, tradeEv, err = executeIncrease(manager, overlay, o, params)
	case o.Kind.IsDecrease():
		pos, tradeEv, err = executeDecrease(manager, overlay, o, params)
	default:
		err = coreerrors.New(coreerrors.CodeInvalidArgument, "order kind not dispatchable from a plain execute call")
	}
	if err != nil {
		observability.Engine().RecordRevertDiscarded()
		return failOrThrow(manager, o, err, params)
	}

	if err := overlay.Commit(); err != nil {
		return nil, err
	}

	o.State = types.OrderStateCompleted
	o.UpdatedAt = params.Now
	o.UpdatedAtSlot = params.Slot
	if err := manager.OrderPut(o); err != nil {
		return nil, err
	}

	if tradeEv != nil && tradeBuf != nil {
		idx, err := tradeBuf.NextIndex(params.KeeperID)
		if err != nil {
			return nil, err
		}
		tradeEv.KeeperID = params.KeeperID
		tradeEv.Index = idx
		if err := tradeBuf.Append(*tradeEv); err != nil {
			return nil, err
		}
		observability.Engine().RecordTradeEvent(o.Kind.String())
	}

	return &ExecuteReport{Order: o, Position: pos, TradeEvent: tradeEv}, nil
}

func cancelSilently(manager *state.Manager, o *types.Order, params ExecuteParams) (*ExecuteReport, error) {
	o.State = types.OrderStateCancelled
	o.UpdatedAt = params.Now
	o.UpdatedAtSlot = params.Slot
	if err := manager.OrderPut(o); err != nil {
		return nil, err
	}
	return &ExecuteReport{Order: o, Cancelled: true}, nil
}

// failOrThrow implements the propagation policy: a market-kind order
// swallows the failure and becomes Cancelled; every other kind propagates.
func failOrThrow(manager *state.Manager, o *types.Order, cause error, params ExecuteParams) (*ExecuteReport, error) {
	if o.Kind.IsMarketKind() {
		return cancelSilently(manager, o, params)
	}
	return nil, cause
}

// checkTriggerPrice gates limit/stop orders against their trigger price,
// using the position's side to pick the comparison direction: a limit
// increase executes once price reaches at least as favorable as the
// trigger for a new entry; a stop-loss decrease executes once price moves
// past the trigger against the position; a limit decrease (take-profit)
// executes once price moves past the trigger in the position's favor.
func checkTriggerPrice(o *types.Order, prices oracle.Prices, m *types.Market) error {
	if o.TriggerPrice == nil {
		return nil
	}
	indexPrice, err := prices.For(m.IndexToken)
	if err != nil {
		return err
	}
	mid := indexPrice.Mid()
	isLong := o.Side.IsLong()

	notReached := coreerrors.New(coreerrors.CodeInvalidArgument, "trigger price not yet reached")

	switch o.Kind {
	case types.OrderKindLimitIncrease, types.OrderKindLimitSwap:
		if isLong {
			if mid.Cmp(o.TriggerPrice) > 0 {
				return notReached
			}
		} else if mid.Cmp(o.TriggerPrice) < 0 {
			return notReached
		}
	case types.OrderKindStopLossDecrease:
		if isLong {
			if mid.Cmp(o.TriggerPrice) > 0 {
				return notReached
			}
		} else if mid.Cmp(o.TriggerPrice) < 0 {
			return notReached
		}
	case types.OrderKindLimitDecrease:
		if isLong {
			if mid.Cmp(o.TriggerPrice) < 0 {
				return notReached
			}
		} else if mid.Cmp(o.TriggerPrice) > 0 {
			return notReached
		}
	}
	return nil
}

// checkPositionCutOracleFreshness gates Liquidation and AutoDeleveraging
// against a stale oracle snapshot. Neither kind is a market or limit order,
// so Execute's top-level gate never runs for them.
func checkPositionCutOracleFreshness(kind types.OrderKind, pos *types.Position, params ExecuteParams) error {
	oracleTs := params.Prices.OldestTimestamp()
	switch kind {
	case types.OrderKindLiquidation:
		return CheckLiquidationOracleFreshness(pos, oracleTs)
	case types.OrderKindAutoDeleveraging:
		return CheckAdlOracleFreshness(oracleTs, params.Now, params.AdlMaxStalenessSeconds)
	}
	return nil
}

// CheckLiquidationOracleFreshness requires the oracle snapshot to be no
// older than the position's last increase or decrease, so a liquidation
// never runs against a price the position has already moved past.
func CheckLiquidationOracleFreshness(pos *types.Position, oracleTs int64) error {
	lastTouch := pos.IncreasedAt
	if pos.DecreasedAt > lastTouch {
		lastTouch = pos.DecreasedAt
	}
	if oracleTs < lastTouch {
		return coreerrors.New(coreerrors.CodeOracleTimestampsAreSmallerThanRequired, "oracle snapshot older than position's last touch")
	}
	return nil
}

// CheckAdlOracleFreshness requires the oracle snapshot to be within
// maxStalenessSeconds of now; maxStalenessSeconds <= 0 disables the check.
func CheckAdlOracleFreshness(oracleTs, now, maxStalenessSeconds int64) error {
	if maxStalenessSeconds > 0 && oracleTs < now-maxStalenessSeconds {
		return coreerrors.New(coreerrors.CodeOracleTimestampsAreSmallerThanRequired, "oracle snapshot older than ADL max staleness bound")
	}
	return nil
}

func executeSwap(overlay *revertible.Overlay, o *types.Order, params ExecuteParams) error {
	path := append([]string{o.MarketID}, o.SwapPath...)
	_, err := swappath.Execute(overlay.Markets(), params.Prices, path, &swappath.Stream{
		TokenIn:     o.FromToken,
		AmountIn:    o.InitialCollateralDeltaAmount,
		ExpectedOut: o.MinOutput,
	}, nil)
	return err
}

func executeIncrease(manager *state.Manager, overlay *revertible.Overlay, o *types.Order, params ExecuteParams) (*types.Position, *types.TradeEvent, error) {
	m, ok := overlay.Market(o.MarketID)
	if !ok {
		return nil, nil, coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "primary market not staged").WithAccount(o.MarketID)
	}
	collateralToken := m.SettlementToken(o.Side.IsLong())
	pos, err := manager.PositionGetOrEmpty(o.StoreID, params.Owner, o.MarketID, collateralToken, o.Side)
	if err != nil {
		return nil, nil, err
	}
	before := types.SnapshotOf(pos)

	rep, err := position.Increase(pos, m, position.IncreaseParams{
		Prices:          params.Prices,
		CollateralDelta: o.InitialCollateralDeltaAmount,
		SizeDeltaUsd:    o.SizeDeltaValue,
		AcceptablePrice: o.AcceptablePrice,
		Now:             params.Now,
		Slot:            params.Slot,
	})
	if err != nil {
		return nil, nil, err
	}

	if o.MinOutput != nil && pos.CollateralAmount.Cmp(o.MinOutput) < 0 {
		return nil, nil, coreerrors.New(coreerrors.CodeInsufficientOutputAmount, "resulting collateral amount below min output")
	}

	if err := manager.PositionPut(pos); err != nil {
		return nil, nil, err
	}

	ev := &types.TradeEvent{
		StoreID:               o.StoreID,
		OrderID:               o.ID,
		OrderKind:             o.Kind,
		PositionID:            pos.MarketToken + ":" + pos.CollateralToken,
		Before:                before,
		After:                 types.SnapshotOf(pos),
		SizeDeltaUsd:          rep.SizeDeltaUsd,
		SizeDeltaInTokens:     rep.SizeDeltaTokens,
		CollateralDeltaAmount: o.InitialCollateralDeltaAmount,
		OrderFeeAmount:        rep.PaidOrderFeeValue,
		ClaimableFundingLong:  rep.ClaimableFundingLong,
		ClaimableFundingShort: rep.ClaimableFundingShort,
		ShouldRemovePosition:  false,
		ExecutedAt:            params.Now,
		ExecutedAtSlot:        params.Slot,
	}
	return pos, ev, nil
}

func executeDecrease(manager *state.Manager, overlay *revertible.Overlay, o *types.Order, params ExecuteParams) (*types.Position, *types.TradeEvent, error) {
	m, ok := overlay.Market(o.MarketID)
	if !ok {
		return nil, nil, coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "primary market not staged").WithAccount(o.MarketID)
	}
	collateralToken := m.SettlementToken(o.Side.IsLong())
	pos, err := manager.PositionRequireMatch(o.StoreID, params.Owner, o.MarketID, collateralToken, o.Side)
	if err != nil {
		return nil, nil, err
	}
	before := types.SnapshotOf(pos)

	sizeDelta := o.SizeDeltaValue
	if sizeDelta == nil {
		sizeDelta = big.NewInt(0)
	}

	if err := checkPositionCutOracleFreshness(o.Kind, pos, params); err != nil {
		return nil, nil, err
	}

	var rep *position.DecreaseReport
	switch o.Kind {
	case types.OrderKindLiquidation:
		lrep, err := positioncut.Liquidate(pos, m, params.Prices, params.Now, params.Slot)
		if err != nil {
			return nil, nil, err
		}
		rep = lrep.Decrease
		o.RentReceiver = positioncut.RentReceiver(params.KeeperID, o.Owner, rep.ShouldRemove)
	case types.OrderKindAutoDeleveraging:
		arep, err := positioncut.AutoDeleverage(pos, m, params.Prices, sizeDelta, params.Now, params.Slot)
		if err != nil {
			return nil, nil, err
		}
		rep = arep.Decrease
		o.RentReceiver = positioncut.RentReceiver(params.KeeperID, o.Owner, rep.ShouldRemove)
	default:
		rep, err = position.Decrease(pos, m, position.DecreaseParams{
			Prices:                   params.Prices,
			SizeDeltaUsd:             sizeDelta,
			CollateralDelta:          o.InitialCollateralDeltaAmount,
			AcceptablePrice:          o.AcceptablePrice,
			IsCapSizeDeltaUsdAllowed: o.Kind != types.OrderKindLimitDecrease,
			SwapType:                 o.DecreasePositionSwapType,
			Now:                      params.Now,
			Slot:                     params.Slot,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	if o.MinOutput != nil && rep.OutputAmount.Cmp(o.MinOutput) < 0 {
		return nil, nil, coreerrors.New(coreerrors.CodeInsufficientOutputAmount, "decrease output below min output")
	}

	if rep.ShouldRemove {
		if err := manager.PositionDelete(pos); err != nil {
			return nil, nil, err
		}
	} else if err := manager.PositionPut(pos); err != nil {
		return nil, nil, err
	}

	if _, err := applyClaimableCap(manager, m, o, rep, params); err != nil {
		return nil, nil, err
	}

	ev := &types.TradeEvent{
		StoreID:               o.StoreID,
		OrderID:               o.ID,
		OrderKind:             o.Kind,
		PositionID:            pos.MarketToken + ":" + pos.CollateralToken,
		Before:                before,
		After:                 types.SnapshotOf(pos),
		SizeDeltaUsd:          rep.SizeDeltaUsd,
		SizeDeltaInTokens:     rep.SizeDeltaTokens,
		CollateralDeltaAmount: o.InitialCollateralDeltaAmount,
		PnlUsd:                rep.RealizedPnl,
		OrderFeeAmount:        rep.PaidOrderFeeValue,
		ClaimableFundingLong:  rep.ClaimableFundingLong,
		ClaimableFundingShort: rep.ClaimableFundingShort,
		IsOutputTokenLong:     o.Side.IsLong(),
		OutputAmount:          rep.OutputAmount,
		ShouldRemovePosition:  rep.ShouldRemove,
		ExecutedAt:            params.Now,
		ExecutedAtSlot:        params.Slot,
	}
	return pos, ev, nil
}

// applyClaimableCap enforces the market's per-user-per-window claimable
// payout cap: once the owner's usage within
// the current window would exceed m.Config.ClaimablePayoutCapBps of the
// paying side's pool, the excess is deferred into the owner's claimable
// account instead of leaving the vault, and rep.OutputAmount is reduced to
// the immediate share so the caller only transfers that much out. The
// order's already-collected fee is mirrored into the holding account's
// claimable bucket for the same window, keeping it out of the output
// token's claimable balance. Returns the amount deferred.
func applyClaimableCap(manager *state.Manager, m *types.Market, o *types.Order, rep *position.DecreaseReport, params ExecuteParams) (*big.Int, error) {
	deferred := big.NewInt(0)
	if m.Config.ClaimablePayoutCapBps == 0 || params.QuotaStore == nil || params.ClaimableWindowSeconds == 0 {
		return deferred, nil
	}
	if rep.OutputAmount == nil || rep.OutputAmount.Sign() <= 0 || !rep.OutputAmount.IsUint64() {
		return deferred, nil
	}

	poolAmount := m.Pool(o.Side.IsLong()).PrimaryPool
	if poolAmount == nil || poolAmount.IsZero() {
		return deferred, nil
	}
	capAmount := new(big.Int).Mul(poolAmount.ToBig(), big.NewInt(int64(m.Config.ClaimablePayoutCapBps)))
	capAmount.Div(capAmount, big.NewInt(10_000))
	if !capAmount.IsUint64() {
		return deferred, nil
	}

	mint := m.SettlementToken(o.Side.IsLong())
	epoch := claimablesched.WindowKey(params.Now, params.ClaimableWindowSeconds)

	quota, _, err := params.QuotaStore.Load("claimable", epoch, []byte(o.Owner))
	if err != nil {
		return nil, err
	}

	split := claimablesched.SplitPayout(quota.AmountUsed, capAmount.Uint64(), rep.OutputAmount)

	if err := params.QuotaStore.Save("claimable", epoch, []byte(o.Owner), common.QuotaNow{
		ReqCount:   quota.ReqCount,
		AmountUsed: quota.AmountUsed + split.Immediate.Uint64(),
		EpochID:    epoch,
	}); err != nil {
		return nil, err
	}

	if split.Deferred.Sign() == 0 {
		return deferred, nil
	}

	if _, err := claimablesched.DeferToClaimable(manager, o.StoreID, mint, o.Owner, params.Now, params.ClaimableWindowSeconds, split.Deferred, "user"); err != nil {
		return nil, err
	}

	if params.HoldingBeneficiary != "" && rep.PaidOrderFeeValue != nil && rep.PaidOrderFeeValue.Sign() > 0 {
		if _, err := claimablesched.DeferToClaimable(manager, o.StoreID, mint, params.HoldingBeneficiary, params.Now, params.ClaimableWindowSeconds, rep.PaidOrderFeeValue, "holding"); err != nil {
			return nil, err
		}
	}

	rep.OutputAmount = split.Immediate
	return split.Deferred, nil
}

// Close releases an order's escrow/rent once it has reached a terminal
// state. The caller performs the actual token
// transfers against the escrow accounts named on the order; Close itself
// only enforces the state precondition and clears the order's record.
func Close(manager *state.Manager, o *types.Order) error {
	if o.State == types.OrderStatePending {
		return coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "order must be completed or cancelled before close")
	}
	return manager.OrderDelete(o.StoreID, o.Owner, o.Nonce)
}
