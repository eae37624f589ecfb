// Package errors defines the stable, numbered error catalog the exchange core
// returns. Each Code is wire-stable: tooling on the other side of
// the ledger maps the numeric code back to its name and category, so codes
// are append-only and never renumbered.
package errors

import (
	"errors"
	"fmt"
)

// Category groups related error codes by concern.
type Category string

const (
	CategoryAuthorization  Category = "authorization"
	CategoryShape          Category = "shape"
	CategoryIdentity       Category = "identity"
	CategoryState          Category = "state"
	CategoryInvariant      Category = "invariant"
	CategoryOracle         Category = "oracle"
	CategoryOrder          Category = "order"
	CategoryADL            Category = "adl"
	CategoryClaimableOrFee Category = "claimable_or_fee"
)

// Code is the stable numeric identifier returned over the wire.
type Code uint32

const (
	// Authorization
	CodeNotAnAdmin Code = 1000 + iota
	CodePermissionDenied
	CodeFeatureDisabled
)

const (
	// Arity / Shape
	CodeInvalidArgument Code = 2000 + iota
	CodeNotFound
	CodeTokenAccountNotProvided
	CodeMarketAccountIsNotProvided
	CodeNotAnATA
)

const (
	// Identity mismatch
	CodeStoreMismatched Code = 3000 + iota
	CodeOwnerMismatched
	CodeMarketMismatched
	CodeMarketTokenMintMismatched
	CodeTokenMintMismatched
	CodeTokenAccountMismatched
	CodeReceiverMismatched
	CodeRentReceiverMismatched
	CodePositionMismatched
)

const (
	// State
	CodeUnknownActionState Code = 4000 + iota
	CodePreconditionsAreNotMet
	CodeReferrerHasBeenSet
	CodeReferralCodeHasBeenSet
	CodeDisabledMarket
)

const (
	// Numeric / Invariant
	CodeTokenAmountOverflow Code = 5000 + iota
	CodeValueOverflow
	CodeNotEnoughTokenAmount
	CodeInsufficientOutputAmount
	CodeInvalidSwapPath
	CodeNotEnoughSwapMarkets
	CodeInvalidSwapPathLength
	CodeSameOutputTokensNotMerged
	CodeAcceptablePriceViolated
	CodeInsufficientCollateral
)

const (
	// Oracle
	CodeOracleTimestampsAreLargerThanRequired Code = 6000 + iota
	CodeOracleTimestampsAreSmallerThanRequired
	CodeInvalidOracleTimestampsRange
	CodeMaxOracleTimestampsRangeExceeded
	CodeOracleNotUpdated
	CodeMaxPriceAgeExceeded
	CodeInvalidOracleSlot
	CodeMissingOraclePrice
	CodeInvalidPriceFeedPrice
	CodePriceOverflow
)

const (
	// Order
	CodeEmptyOrder Code = 7000 + iota
	CodeInvalidMinOutputAmount
	CodeInvalidTriggerPrice
	CodeInvalidPosition
	CodeOrderKindNotAllowed
	CodeUnknownOrderKind
)

const (
	// ADL
	CodeAdlNotEnabled Code = 8000 + iota
	CodeAdlNotRequired
	CodeInvalidAdl
)

const (
	// Claimable / Fee
	CodeClaimableCollateralForHoldingCannotBeInOutputTokens Code = 9000 + iota
)

var categoryByCode = map[Code]Category{
	CodeNotAnAdmin:       CategoryAuthorization,
	CodePermissionDenied: CategoryAuthorization,
	CodeFeatureDisabled:  CategoryAuthorization,

	CodeInvalidArgument:            CategoryShape,
	CodeNotFound:                   CategoryShape,
	CodeTokenAccountNotProvided:    CategoryShape,
	CodeMarketAccountIsNotProvided: CategoryShape,
	CodeNotAnATA:                   CategoryShape,

	CodeStoreMismatched:           CategoryIdentity,
	CodeOwnerMismatched:           CategoryIdentity,
	CodeMarketMismatched:          CategoryIdentity,
	CodeMarketTokenMintMismatched: CategoryIdentity,
	CodeTokenMintMismatched:       CategoryIdentity,
	CodeTokenAccountMismatched:    CategoryIdentity,
	CodeReceiverMismatched:        CategoryIdentity,
	CodeRentReceiverMismatched:    CategoryIdentity,
	CodePositionMismatched:        CategoryIdentity,

	CodeUnknownActionState:     CategoryState,
	CodePreconditionsAreNotMet: CategoryState,
	CodeReferrerHasBeenSet:     CategoryState,
	CodeReferralCodeHasBeenSet: CategoryState,
	CodeDisabledMarket:         CategoryState,

	CodeTokenAmountOverflow:       CategoryInvariant,
	CodeValueOverflow:             CategoryInvariant,
	CodeNotEnoughTokenAmount:      CategoryInvariant,
	CodeInsufficientOutputAmount:  CategoryInvariant,
	CodeInvalidSwapPath:           CategoryInvariant,
	CodeNotEnoughSwapMarkets:      CategoryInvariant,
	CodeInvalidSwapPathLength:     CategoryInvariant,
	CodeSameOutputTokensNotMerged: CategoryInvariant,
	CodeAcceptablePriceViolated:   CategoryInvariant,
	CodeInsufficientCollateral:    CategoryInvariant,

	CodeOracleTimestampsAreLargerThanRequired:  CategoryOracle,
	CodeOracleTimestampsAreSmallerThanRequired: CategoryOracle,
	CodeInvalidOracleTimestampsRange:           CategoryOracle,
	CodeMaxOracleTimestampsRangeExceeded:       CategoryOracle,
	CodeOracleNotUpdated:                       CategoryOracle,
	CodeMaxPriceAgeExceeded:                    CategoryOracle,
	CodeInvalidOracleSlot:                      CategoryOracle,
	CodeMissingOraclePrice:                     CategoryOracle,
	CodeInvalidPriceFeedPrice:                  CategoryOracle,
	CodePriceOverflow:                          CategoryOracle,

	CodeEmptyOrder:             CategoryOrder,
	CodeInvalidMinOutputAmount: CategoryOrder,
	CodeInvalidTriggerPrice:    CategoryOrder,
	CodeInvalidPosition:        CategoryOrder,
	CodeOrderKindNotAllowed:    CategoryOrder,
	CodeUnknownOrderKind:       CategoryOrder,

	CodeAdlNotEnabled:  CategoryADL,
	CodeAdlNotRequired: CategoryADL,
	CodeInvalidAdl:     CategoryADL,

	CodeClaimableCollateralForHoldingCannotBeInOutputTokens: CategoryClaimableOrFee,
}

var nameByCode = map[Code]string{
	CodeNotAnAdmin:       "NotAnAdmin",
	CodePermissionDenied: "PermissionDenied",
	CodeFeatureDisabled:  "FeatureDisabled",

	CodeInvalidArgument:            "InvalidArgument",
	CodeNotFound:                   "NotFound",
	CodeTokenAccountNotProvided:    "TokenAccountNotProvided",
	CodeMarketAccountIsNotProvided: "MarketAccountIsNotProvided",
	CodeNotAnATA:                   "NotAnATA",

	CodeStoreMismatched:           "StoreMismatched",
	CodeOwnerMismatched:           "OwnerMismatched",
	CodeMarketMismatched:          "MarketMismatched",
	CodeMarketTokenMintMismatched: "MarketTokenMintMismatched",
	CodeTokenMintMismatched:       "TokenMintMismatched",
	CodeTokenAccountMismatched:    "TokenAccountMismatched",
	CodeReceiverMismatched:        "ReceiverMismatched",
	CodeRentReceiverMismatched:    "RentReceiverMismatched",
	CodePositionMismatched:        "PositionMismatched",

	CodeUnknownActionState:     "UnknownActionState",
	CodePreconditionsAreNotMet: "PreconditionsAreNotMet",
	CodeReferrerHasBeenSet:     "ReferrerHasBeenSet",
	CodeReferralCodeHasBeenSet: "ReferralCodeHasBeenSet",
	CodeDisabledMarket:         "DisabledMarket",

	CodeTokenAmountOverflow:       "TokenAmountOverflow",
	CodeValueOverflow:             "ValueOverflow",
	CodeNotEnoughTokenAmount:      "NotEnoughTokenAmount",
	CodeInsufficientOutputAmount:  "InsufficientOutputAmount",
	CodeInvalidSwapPath:           "InvalidSwapPath",
	CodeNotEnoughSwapMarkets:      "NotEnoughSwapMarkets",
	CodeInvalidSwapPathLength:     "InvalidSwapPathLength",
	CodeSameOutputTokensNotMerged: "SameOutputTokensNotMerged",
	CodeAcceptablePriceViolated:   "AcceptablePriceViolated",
	CodeInsufficientCollateral:    "InsufficientCollateral",

	CodeOracleTimestampsAreLargerThanRequired:  "OracleTimestampsAreLargerThanRequired",
	CodeOracleTimestampsAreSmallerThanRequired: "OracleTimestampsAreSmallerThanRequired",
	CodeInvalidOracleTimestampsRange:           "InvalidOracleTimestampsRange",
	CodeMaxOracleTimestampsRangeExceeded:       "MaxOracleTimestampsRangeExceeded",
	CodeOracleNotUpdated:                       "OracleNotUpdated",
	CodeMaxPriceAgeExceeded:                    "MaxPriceAgeExceeded",
	CodeInvalidOracleSlot:                      "InvalidOracleSlot",
	CodeMissingOraclePrice:                     "MissingOraclePrice",
	CodeInvalidPriceFeedPrice:                  "InvalidPriceFeedPrice",
	CodePriceOverflow:                          "PriceOverflow",

	CodeEmptyOrder:             "EmptyOrder",
	CodeInvalidMinOutputAmount: "InvalidMinOutputAmount",
	CodeInvalidTriggerPrice:    "InvalidTriggerPrice",
	CodeInvalidPosition:        "InvalidPosition",
	CodeOrderKindNotAllowed:    "OrderKindNotAllowed",
	CodeUnknownOrderKind:       "UnknownOrderKind",

	CodeAdlNotEnabled:  "AdlNotEnabled",
	CodeAdlNotRequired: "AdlNotRequired",
	CodeInvalidAdl:     "InvalidAdl",

	CodeClaimableCollateralForHoldingCannotBeInOutputTokens: "ClaimableCollateralForHoldingCannotBeInOutputTokens",
}

// Name returns the stable short name tooling prints alongside the code.
func (c Code) Name() string {
	if name, ok := nameByCode[c]; ok {
		return name
	}
	return "Unknown"
}

// Category returns the grouping for the code.
func (c Code) Category() Category {
	if cat, ok := categoryByCode[c]; ok {
		return cat
	}
	return ""
}

// Error is the structured error returned by every CORE operation: a stable
// code, its category, a human message, and (optionally) the offending
// account or value for structured JSON tooling output.
type Error struct {
	Code    Code
	Message string
	Account string
}

func (e *Error) Error() string {
	if e.Account != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code.Name(), e.Message, e.Account)
	}
	return fmt.Sprintf("%s: %s", e.Code.Name(), e.Message)
}

// Is makes errors.Is(err, New(code, "")) match on Code alone, so callers can
// test for a specific failure without comparing messages.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// New constructs a catalog error with no offending account attached.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithAccount attaches the offending account/value for structured output.
func (e *Error) WithAccount(account string) *Error {
	return &Error{Code: e.Code, Message: e.Message, Account: account}
}

// IsMarketKindOrder reports whether a failure in market-kind execution
// should be swallowed (cancel, don't propagate) per the
// propagation policy. Limit/liquidation/ADL callers never call this; they
// always propagate.
func IsMarketKindOrder(isMarketKind bool) bool { return isMarketKind }
