package events

import (
	"strconv"

	"gmsolcore/core/types"
)

const (
	// TypeMarketFeesUpdated is emitted once per pre-execute ritual,
	// summarizing the three reports from impact distribution, borrowing
	// update, and funding update.
	TypeMarketFeesUpdated = "market.fees_updated"
)

// MarketFeesUpdated is the record the pre-execute ritual emits exactly once
// per execution.
type MarketFeesUpdated struct {
	StoreID       string
	MarketTokenID string
	Revision      uint64

	PositionImpactDistributedLong  string
	PositionImpactDistributedShort string
	BorrowingFactorLong            string
	BorrowingFactorShort           string
	FundingPerSizeLong             string
	FundingPerSizeShort            string
}

func (MarketFeesUpdated) EventType() string { return TypeMarketFeesUpdated }

func (e MarketFeesUpdated) Event() *types.Event {
	attrs := map[string]string{
		"storeId":       e.StoreID,
		"marketTokenId": e.MarketTokenID,
		"revision":      strconv.FormatUint(e.Revision, 10),
	}
	if e.PositionImpactDistributedLong != "" {
		attrs["positionImpactDistributedLong"] = e.PositionImpactDistributedLong
	}
	if e.PositionImpactDistributedShort != "" {
		attrs["positionImpactDistributedShort"] = e.PositionImpactDistributedShort
	}
	if e.BorrowingFactorLong != "" {
		attrs["borrowingFactorLong"] = e.BorrowingFactorLong
	}
	if e.BorrowingFactorShort != "" {
		attrs["borrowingFactorShort"] = e.BorrowingFactorShort
	}
	if e.FundingPerSizeLong != "" {
		attrs["fundingPerSizeLong"] = e.FundingPerSizeLong
	}
	if e.FundingPerSizeShort != "" {
		attrs["fundingPerSizeShort"] = e.FundingPerSizeShort
	}
	return &types.Event{Type: TypeMarketFeesUpdated, Attributes: attrs}
}
