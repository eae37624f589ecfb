package types

import "math/big"

// TradeEvent records everything needed to reconstruct a single execute call,
// before/after position snapshot, prices, deltas, fee
// breakdown, transfer-out breakdown, order kind, and the responsible order.
type TradeEvent struct {
	KeeperID string
	Index    uint64 // monotone within KeeperID

	StoreID    string
	OrderID    uint64
	OrderKind  OrderKind
	PositionID string

	Before PositionSnapshot
	After  PositionSnapshot

	IndexTokenPrice      *big.Int
	CollateralTokenPrice *big.Int

	SizeDeltaUsd          *big.Int
	SizeDeltaInTokens     *big.Int
	CollateralDeltaAmount *big.Int
	PnlUsd                *big.Int

	PriceImpactUsd     *big.Int
	PriceImpactDiffUsd *big.Int

	OrderFeeAmount        *big.Int
	FundingFeeAmount      *big.Int
	BorrowingFeeAmount    *big.Int
	ClaimableFundingLong  *big.Int
	ClaimableFundingShort *big.Int

	IsOutputTokenLong     bool
	OutputAmount          *big.Int
	SecondaryOutputAmount *big.Int

	ClaimableForUserAmount    *big.Int
	ClaimableForHoldingAmount *big.Int

	ShouldRemovePosition bool

	ExecutedAt     int64
	ExecutedAtSlot uint64
}

// PositionSnapshot is the before/after position capture embedded in a
// TradeEvent.
type PositionSnapshot struct {
	SizeInUsd        *big.Int
	SizeInTokens     *big.Int
	CollateralAmount *big.Int
	TradeID          uint64
}

// SnapshotOf captures a position's accounted fields at a point in time.
func SnapshotOf(p *Position) PositionSnapshot {
	if p == nil {
		return PositionSnapshot{SizeInUsd: big.NewInt(0), SizeInTokens: big.NewInt(0), CollateralAmount: big.NewInt(0)}
	}
	copyBig := func(v *big.Int) *big.Int {
		if v == nil {
			return big.NewInt(0)
		}
		return new(big.Int).Set(v)
	}
	return PositionSnapshot{
		SizeInUsd:        copyBig(p.SizeInUsd),
		SizeInTokens:     copyBig(p.SizeInTokens),
		CollateralAmount: copyBig(p.CollateralAmount),
		TradeID:          p.TradeID,
	}
}
