package tradeevent

import (
	"time"

	"gorm.io/gorm"

	"gmsolcore/core/types"
)

// ProjectedTrade mirrors one committed TradeEvent into a relational row,
// a downstream-consumers projection alongside the append-only buffer
// itself: a keeper's bolt ring is fast to append and
// range over by index, but analytics/reporting tooling wants to query
// across keepers, stores, and owners, which a relational table is built
// for. Big-integer fields are stored as their decimal string form since
// Postgres has no native 256-bit integer type.
type ProjectedTrade struct {
	KeeperID string `gorm:"primaryKey;column:keeper_id"`
	Index    uint64 `gorm:"primaryKey;column:trade_index"`

	StoreID    string `gorm:"index"`
	OrderID    uint64
	OrderKind  string `gorm:"index"`
	PositionID string `gorm:"index"`

	SizeInUsdBefore        string
	SizeInTokensBefore     string
	CollateralAmountBefore string
	TradeIDBefore          uint64

	SizeInUsdAfter        string
	SizeInTokensAfter     string
	CollateralAmountAfter string
	TradeIDAfter          uint64

	SizeDeltaUsd          string
	SizeDeltaInTokens     string
	CollateralDeltaAmount string
	PnlUsd                string

	OrderFeeAmount        string
	ClaimableFundingLong  string
	ClaimableFundingShort string

	IsOutputTokenLong bool
	OutputAmount      string

	ShouldRemovePosition bool

	ExecutedAt     int64 `gorm:"index"`
	ExecutedAtSlot uint64

	ProjectedAt time.Time
}

func (ProjectedTrade) TableName() string { return "gmsol_projected_trades" }

func fromTradeEvent(ev types.TradeEvent, now time.Time) ProjectedTrade {
	zero := func(s string) string {
		if s == "" {
			return "0"
		}
		return s
	}

	row := ProjectedTrade{
		KeeperID:   ev.KeeperID,
		Index:      ev.Index,
		StoreID:    ev.StoreID,
		OrderID:    ev.OrderID,
		OrderKind:  ev.OrderKind.String(),
		PositionID: ev.PositionID,

		TradeIDBefore: ev.Before.TradeID,
		TradeIDAfter:  ev.After.TradeID,

		IsOutputTokenLong:    ev.IsOutputTokenLong,
		ShouldRemovePosition: ev.ShouldRemovePosition,

		ExecutedAt:     ev.ExecutedAt,
		ExecutedAtSlot: ev.ExecutedAtSlot,
		ProjectedAt:    now,
	}

	if ev.Before.SizeInUsd != nil {
		row.SizeInUsdBefore = ev.Before.SizeInUsd.String()
	}
	if ev.Before.SizeInTokens != nil {
		row.SizeInTokensBefore = ev.Before.SizeInTokens.String()
	}
	if ev.Before.CollateralAmount != nil {
		row.CollateralAmountBefore = ev.Before.CollateralAmount.String()
	}
	if ev.After.SizeInUsd != nil {
		row.SizeInUsdAfter = ev.After.SizeInUsd.String()
	}
	if ev.After.SizeInTokens != nil {
		row.SizeInTokensAfter = ev.After.SizeInTokens.String()
	}
	if ev.After.CollateralAmount != nil {
		row.CollateralAmountAfter = ev.After.CollateralAmount.String()
	}
	if ev.SizeDeltaUsd != nil {
		row.SizeDeltaUsd = ev.SizeDeltaUsd.String()
	}
	if ev.SizeDeltaInTokens != nil {
		row.SizeDeltaInTokens = ev.SizeDeltaInTokens.String()
	}
	if ev.CollateralDeltaAmount != nil {
		row.CollateralDeltaAmount = ev.CollateralDeltaAmount.String()
	}
	if ev.PnlUsd != nil {
		row.PnlUsd = ev.PnlUsd.String()
	}
	if ev.OrderFeeAmount != nil {
		row.OrderFeeAmount = ev.OrderFeeAmount.String()
	}
	if ev.ClaimableFundingLong != nil {
		row.ClaimableFundingLong = ev.ClaimableFundingLong.String()
	}
	if ev.ClaimableFundingShort != nil {
		row.ClaimableFundingShort = ev.ClaimableFundingShort.String()
	}
	if ev.OutputAmount != nil {
		row.OutputAmount = ev.OutputAmount.String()
	}

	row.SizeInUsdBefore = zero(row.SizeInUsdBefore)
	row.SizeInTokensBefore = zero(row.SizeInTokensBefore)
	row.CollateralAmountBefore = zero(row.CollateralAmountBefore)
	row.SizeInUsdAfter = zero(row.SizeInUsdAfter)
	row.SizeInTokensAfter = zero(row.SizeInTokensAfter)
	row.CollateralAmountAfter = zero(row.CollateralAmountAfter)
	row.SizeDeltaUsd = zero(row.SizeDeltaUsd)
	row.SizeDeltaInTokens = zero(row.SizeDeltaInTokens)
	row.CollateralDeltaAmount = zero(row.CollateralDeltaAmount)
	row.PnlUsd = zero(row.PnlUsd)
	row.OrderFeeAmount = zero(row.OrderFeeAmount)
	row.ClaimableFundingLong = zero(row.ClaimableFundingLong)
	row.ClaimableFundingShort = zero(row.ClaimableFundingShort)
	row.OutputAmount = zero(row.OutputAmount)

	return row
}

// Projector mirrors committed TradeEvents into a Postgres table via gorm,
// for downstream SQL-based reporting consumers that don't want to range
// over the bolt ring directly.
type Projector struct {
	db  *gorm.DB
	now func() time.Time
}

// NewProjector wires a Projector over an already-connected *gorm.DB and
// migrates its table.
func NewProjector(db *gorm.DB) (*Projector, error) {
	if err := db.AutoMigrate(&ProjectedTrade{}); err != nil {
		return nil, err
	}
	return &Projector{db: db, now: time.Now}, nil
}

// Project upserts ev into the relational table, keyed by (keeper_id,
// trade_index), the same identity the bolt ring uses, so a re-projection
// after a crash is idempotent.
func (p *Projector) Project(ev types.TradeEvent) error {
	row := fromTradeEvent(ev, p.now())
	return p.db.Save(&row).Error
}

// Subscribe starts a goroutine that drains b's live subscriber channel for
// keeperID and projects every event it sees until the channel closes, and
// returns at once with the unsubscribe func that closes the channel.
func (p *Projector) Subscribe(b *Buffer, keeperID string) func() {
	ch, unsubscribe := b.Subscribe(keeperID)
	go func() {
		for ev := range ch {
			_ = p.Project(ev)
		}
	}()
	return unsubscribe
}
