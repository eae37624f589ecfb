// Package rpc exposes the "Ledger program surface" entry-point catalog
// as an HTTP API over the CORE engine: one chi route per create_*/update_*/
// execute_*/close_*/liquidate/auto_deleverage/claimable entry point, each a
// thin JSON-in/JSON-out wrapper around native/order, native/action, and
// native/positioncut. The keeper-facing daemon (cmd/exchanged) owns the
// listener; this package owns routing, authentication, and request/response
// shapes only.
package rpc

import (
	"math/big"

	"gmsolcore/core/types"
)

// bigOrZero parses a decimal string into *big.Int, treating "" as nil (the
// field was omitted) rather than zero, so optional fields like
// TriggerPrice round-trip correctly through native/order's nil-means-unset
// convention.
func bigOrZero(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errInvalidDecimal(s)
	}
	return v, nil
}

type errInvalidDecimal string

func (e errInvalidDecimal) Error() string { return "rpc: invalid decimal amount: " + string(e) }

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// createOrderRequest is the JSON body for POST /v1/orders.
type createOrderRequest struct {
	Owner    string `json:"owner"`
	Kind     string `json:"kind"`
	Side     string `json:"side"`
	MarketID string `json:"market_id"`

	InitialCollateralDeltaAmount string `json:"initial_collateral_delta_amount"`
	SizeDeltaValue               string `json:"size_delta_value"`
	TriggerPrice                 string `json:"trigger_price"`
	AcceptablePrice              string `json:"acceptable_price"`
	MinOutput                    string `json:"min_output"`
	ValidFromTs                  int64  `json:"valid_from_ts"`

	DecreasePositionSwapType string `json:"decrease_position_swap_type"`
	ShouldUnwrapNative       bool   `json:"should_unwrap_native"`

	ExecutionFeeAmount    string `json:"execution_fee_amount"`
	PositionCutRentAmount string `json:"position_cut_rent_amount"`

	FromToken string   `json:"from_token"`
	ToToken   string   `json:"to_token"`
	SwapPath  []string `json:"swap_path"`

	InitialCollateralEscrowAccount string `json:"initial_collateral_escrow_account"`
	FinalOutputEscrowAccount       string `json:"final_output_escrow_account"`
	SecondaryOutputEscrowAccount   string `json:"secondary_output_escrow_account"`

	RentReceiver string `json:"rent_receiver"`
}

func parseOrderKind(s string) (types.OrderKind, error) {
	switch s {
	case "MarketSwap":
		return types.OrderKindMarketSwap, nil
	case "LimitSwap":
		return types.OrderKindLimitSwap, nil
	case "MarketIncrease":
		return types.OrderKindMarketIncrease, nil
	case "LimitIncrease":
		return types.OrderKindLimitIncrease, nil
	case "MarketDecrease":
		return types.OrderKindMarketDecrease, nil
	case "LimitDecrease":
		return types.OrderKindLimitDecrease, nil
	case "StopLossDecrease":
		return types.OrderKindStopLossDecrease, nil
	default:
		return 0, errUnknownOrderKind(s)
	}
}

type errUnknownOrderKind string

func (e errUnknownOrderKind) Error() string { return "rpc: unknown order kind: " + string(e) }

func parseSide(s string) (types.Side, error) {
	switch s {
	case "long", "Long", "LONG":
		return types.SideLong, nil
	case "short", "Short", "SHORT":
		return types.SideShort, nil
	default:
		return 0, errUnknownSide(s)
	}
}

type errUnknownSide string

func (e errUnknownSide) Error() string { return "rpc: unknown side: " + string(e) }

func parseSwapType(s string) types.DecreasePositionSwapType {
	switch s {
	case "CollateralToPnl":
		return types.DecreaseSwapCollateralToPnl
	case "PnlToCollateral":
		return types.DecreaseSwapPnlToCollateral
	default:
		return types.DecreaseSwapNone
	}
}

// orderResponse is the JSON projection of types.Order returned by every
// order entry point, mirroring the read-model shape the out-of-scope CLI's
// `exchange actions` table would print.
type orderResponse struct {
	Owner    string `json:"owner"`
	Nonce    uint64 `json:"nonce"`
	ID       uint64 `json:"id"`
	Kind     string `json:"kind"`
	Side     string `json:"side"`
	MarketID string `json:"market_id"`
	State    string `json:"state"`

	SizeDeltaValue               string `json:"size_delta_value"`
	InitialCollateralDeltaAmount string `json:"initial_collateral_delta_amount"`

	UpdatedAt     int64  `json:"updated_at"`
	UpdatedAtSlot uint64 `json:"updated_at_slot"`
}

func sideString(s types.Side) string {
	if s.IsLong() {
		return "long"
	}
	return "short"
}

func toOrderResponse(o *types.Order) orderResponse {
	return orderResponse{
		Owner:                        o.Owner,
		Nonce:                        o.Nonce,
		ID:                           o.ID,
		Kind:                         o.Kind.String(),
		Side:                         sideString(o.Side),
		MarketID:                     o.MarketID,
		State:                        o.State.String(),
		SizeDeltaValue:               bigString(o.SizeDeltaValue),
		InitialCollateralDeltaAmount: bigString(o.InitialCollateralDeltaAmount),
		UpdatedAt:                    o.UpdatedAt,
		UpdatedAtSlot:                o.UpdatedAtSlot,
	}
}

// positionResponse is the JSON projection of types.Position.
type positionResponse struct {
	Owner           string `json:"owner"`
	MarketToken     string `json:"market_token"`
	CollateralToken string `json:"collateral_token"`
	Side            string `json:"side"`

	SizeInUsd        string `json:"size_in_usd"`
	SizeInTokens     string `json:"size_in_tokens"`
	CollateralAmount string `json:"collateral_amount"`
	TradeID          uint64 `json:"trade_id"`

	IncreasedAt int64 `json:"increased_at"`
	DecreasedAt int64 `json:"decreased_at"`
}

func toPositionResponse(p *types.Position) positionResponse {
	return positionResponse{
		Owner:            p.Owner,
		MarketToken:      p.MarketToken,
		CollateralToken:  p.CollateralToken,
		Side:             sideString(p.Side),
		SizeInUsd:        bigString(p.SizeInUsd),
		SizeInTokens:     bigString(p.SizeInTokens),
		CollateralAmount: bigString(p.CollateralAmount),
		TradeID:          p.TradeID,
		IncreasedAt:      p.IncreasedAt,
		DecreasedAt:      p.DecreasedAt,
	}
}

// marketResponse is the JSON projection of types.Market.
type marketResponse struct {
	MarketTokenID string `json:"market_token_id"`
	LongToken     string `json:"long_token"`
	ShortToken    string `json:"short_token"`
	IndexToken    string `json:"index_token"`
	Enabled       bool   `json:"enabled"`

	LongPrimaryPool  string `json:"long_primary_pool"`
	ShortPrimaryPool string `json:"short_primary_pool"`

	MarketTokenSupply string `json:"market_token_supply"`
	Revision          uint64 `json:"revision"`
}

func toMarketResponse(m *types.Market) marketResponse {
	r := marketResponse{
		MarketTokenID: m.MarketTokenID,
		LongToken:     m.LongToken,
		ShortToken:    m.ShortToken,
		IndexToken:    m.IndexToken,
		Enabled:       m.Enabled,
		Revision:      m.Revision,
	}
	if m.Long.PrimaryPool != nil {
		r.LongPrimaryPool = m.Long.PrimaryPool.ToBig().String()
	}
	if m.Short.PrimaryPool != nil {
		r.ShortPrimaryPool = m.Short.PrimaryPool.ToBig().String()
	}
	if m.MarketTokenSupply != nil {
		r.MarketTokenSupply = m.MarketTokenSupply.ToBig().String()
	}
	return r
}

// claimableResponse is the JSON projection of types.Claimable.
type claimableResponse struct {
	Mint          string `json:"mint"`
	Beneficiary   string `json:"beneficiary"`
	TimeWindowKey uint64 `json:"time_window_key"`
	Amount        string `json:"amount"`
	Closed        bool   `json:"closed"`
}

func toClaimableResponse(c *types.Claimable) claimableResponse {
	return claimableResponse{
		Mint:          c.Mint,
		Beneficiary:   c.Beneficiary,
		TimeWindowKey: c.TimeWindowKey,
		Amount:        bigString(c.Amount),
		Closed:        c.Closed,
	}
}

// errorResponse is the structured error body "user-visible behavior"
// describes: numeric code, short name, category, and the offending account
// when available.
type errorResponse struct {
	Code     uint32 `json:"code,omitempty"`
	Name     string `json:"name"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
	Account  string `json:"account,omitempty"`
}
