package types

import "math/big"

// OrderKind enumerates the nine kinds of order. This is modeled as a
// closed Go sum type: a kind value
// plus the kind-specific validity helpers below, rather than one struct per
// kind.
type OrderKind uint8

const (
	OrderKindMarketSwap OrderKind = iota
	OrderKindLimitSwap
	OrderKindMarketIncrease
	OrderKindLimitIncrease
	OrderKindMarketDecrease
	OrderKindLimitDecrease
	OrderKindStopLossDecrease
	OrderKindLiquidation
	OrderKindAutoDeleveraging
)

// IsMarketKind reports whether oracle expiry auto-cancels this order kind
// silently rather than propagating a throw (E Execute step 1, resolved
// per the documented rule to apply uniformly to every market-kind
// order including MarketSwap).
func (k OrderKind) IsMarketKind() bool {
	switch k {
	case OrderKindMarketSwap, OrderKindMarketIncrease, OrderKindMarketDecrease:
		return true
	default:
		return false
	}
}

// IsLimitKind reports whether this order kind throws (rather than silently
// cancels) on a failed execute, so the keeper retries with a fresh oracle.
func (k OrderKind) IsLimitKind() bool {
	switch k {
	case OrderKindLimitSwap, OrderKindLimitIncrease, OrderKindLimitDecrease, OrderKindStopLossDecrease:
		return true
	default:
		return false
	}
}

// IsPositionCut reports whether this order kind is synthesized by the
// Position-Cut Driver rather than created by an owner.
func (k OrderKind) IsPositionCut() bool {
	return k == OrderKindLiquidation || k == OrderKindAutoDeleveraging
}

// IsIncrease reports whether this order kind increases a position.
func (k OrderKind) IsIncrease() bool {
	return k == OrderKindMarketIncrease || k == OrderKindLimitIncrease
}

// IsDecrease reports whether this order kind decreases a position.
func (k OrderKind) IsDecrease() bool {
	switch k {
	case OrderKindMarketDecrease, OrderKindLimitDecrease, OrderKindStopLossDecrease,
		OrderKindLiquidation, OrderKindAutoDeleveraging:
		return true
	default:
		return false
	}
}

// IsSwap reports whether this order kind routes a swap path with no
// position attached.
func (k OrderKind) IsSwap() bool {
	return k == OrderKindMarketSwap || k == OrderKindLimitSwap
}

// Updatable reports whether Update is permitted for this kind: limit
// and stop orders only.
func (k OrderKind) Updatable() bool {
	switch k {
	case OrderKindLimitSwap, OrderKindLimitIncrease, OrderKindLimitDecrease, OrderKindStopLossDecrease:
		return true
	default:
		return false
	}
}

func (k OrderKind) String() string {
	switch k {
	case OrderKindMarketSwap:
		return "MarketSwap"
	case OrderKindLimitSwap:
		return "LimitSwap"
	case OrderKindMarketIncrease:
		return "MarketIncrease"
	case OrderKindLimitIncrease:
		return "LimitIncrease"
	case OrderKindMarketDecrease:
		return "MarketDecrease"
	case OrderKindLimitDecrease:
		return "LimitDecrease"
	case OrderKindStopLossDecrease:
		return "StopLossDecrease"
	case OrderKindLiquidation:
		return "Liquidation"
	case OrderKindAutoDeleveraging:
		return "AutoDeleveraging"
	default:
		return "Unknown"
	}
}

// DecreasePositionSwapType governs whether the decrease path's two outputs
// (PnL token, collateral token) are internally collapsed to one token.
type DecreasePositionSwapType uint8

const (
	DecreaseSwapNone DecreasePositionSwapType = iota
	DecreaseSwapCollateralToPnl
	DecreaseSwapPnlToCollateral
)

// OrderState is the Pending/Completed/Cancelled machine from E.
type OrderState uint8

const (
	OrderStatePending OrderState = iota
	OrderStateCompleted
	OrderStateCancelled
)

func (s OrderState) String() string {
	switch s {
	case OrderStatePending:
		return "Pending"
	case OrderStateCompleted:
		return "Completed"
	case OrderStateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Order is identified by (Store, Owner, Nonce).
type Order struct {
	StoreID string
	Owner   string
	Nonce   uint64
	ID      uint64

	Kind       OrderKind
	Side       Side
	MarketID   string
	PositionID string // empty when not yet created

	InitialCollateralDeltaAmount *big.Int
	SizeDeltaValue               *big.Int
	TriggerPrice                 *big.Int // nil when not set
	AcceptablePrice              *big.Int // nil when not set
	MinOutput                    *big.Int // nil when not set
	ValidFromTs                  int64

	DecreasePositionSwapType DecreasePositionSwapType
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

	State OrderState

	UpdatedAt     int64
	UpdatedAtSlot uint64
}

// IsDecreaseWithoutDelta reports the zero-delta MarketDecrease case resolved
// valid purely to claim a funding rebate.
func (o *Order) IsDecreaseWithoutDelta() bool {
	if o.Kind != OrderKindMarketDecrease {
		return false
	}
	hasSize := o.SizeDeltaValue != nil && o.SizeDeltaValue.Sign() > 0
	hasCollateral := o.InitialCollateralDeltaAmount != nil && o.InitialCollateralDeltaAmount.Sign() > 0
	return !hasSize && !hasCollateral
}
