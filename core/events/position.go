package events

import (
	"strconv"

	"gmsolcore/core/types"
)

const (
	TypePositionIncreased = "position.increased"
	TypePositionDecreased = "position.decreased"
)

// PositionIncreased mirrors the increase() report.
type PositionIncreased struct {
	StoreID               string
	Owner                 string
	MarketID              string
	TradeID               uint64
	ClaimableFundingLong  string
	ClaimableFundingShort string
	PaidOrderFeeValue     string
	ExecutionPrice        string
	SizeDeltaUsd          string
}

func (PositionIncreased) EventType() string { return TypePositionIncreased }

func (e PositionIncreased) Event() *types.Event {
	attrs := map[string]string{
		"storeId":  e.StoreID,
		"owner":    e.Owner,
		"marketId": e.MarketID,
		"tradeId":  strconv.FormatUint(e.TradeID, 10),
	}
	setIfNonEmpty(attrs, "claimableFundingLong", e.ClaimableFundingLong)
	setIfNonEmpty(attrs, "claimableFundingShort", e.ClaimableFundingShort)
	setIfNonEmpty(attrs, "paidOrderFeeValue", e.PaidOrderFeeValue)
	setIfNonEmpty(attrs, "executionPrice", e.ExecutionPrice)
	setIfNonEmpty(attrs, "sizeDeltaUsd", e.SizeDeltaUsd)
	return &types.Event{Type: TypePositionIncreased, Attributes: attrs}
}

// PositionDecreased mirrors the decrease() report.
type PositionDecreased struct {
	StoreID               string
	Owner                 string
	MarketID              string
	TradeID               uint64
	IsOutputTokenLong     bool
	OutputAmount          string
	SecondaryOutputAmount string
	ClaimableFundingLong  string
	ClaimableFundingShort string
	PaidOrderFeeValue     string
	ShouldRemove          bool
}

func (PositionDecreased) EventType() string { return TypePositionDecreased }

func (e PositionDecreased) Event() *types.Event {
	attrs := map[string]string{
		"storeId":           e.StoreID,
		"owner":             e.Owner,
		"marketId":          e.MarketID,
		"tradeId":           strconv.FormatUint(e.TradeID, 10),
		"isOutputTokenLong": strconv.FormatBool(e.IsOutputTokenLong),
		"shouldRemove":      strconv.FormatBool(e.ShouldRemove),
	}
	setIfNonEmpty(attrs, "outputAmount", e.OutputAmount)
	setIfNonEmpty(attrs, "secondaryOutputAmount", e.SecondaryOutputAmount)
	setIfNonEmpty(attrs, "claimableFundingLong", e.ClaimableFundingLong)
	setIfNonEmpty(attrs, "claimableFundingShort", e.ClaimableFundingShort)
	setIfNonEmpty(attrs, "paidOrderFeeValue", e.PaidOrderFeeValue)
	return &types.Event{Type: TypePositionDecreased, Attributes: attrs}
}

func setIfNonEmpty(attrs map[string]string, key, value string) {
	if value != "" {
		attrs[key] = value
	}
}
