package events

import (
	"strconv"

	"gmsolcore/core/types"
)

const TypeTradeRecorded = "tradeevent.recorded"

// TradeRecorded is emitted synchronously with every committed TradeEvent
//: success of the execute call implies the event was recorded.
type TradeRecorded struct {
	KeeperID string
	Index    uint64
	StoreID  string
	OrderID  uint64
	Kind     types.OrderKind
}

func (TradeRecorded) EventType() string { return TypeTradeRecorded }

func (e TradeRecorded) Event() *types.Event {
	return &types.Event{Type: TypeTradeRecorded, Attributes: map[string]string{
		"keeperId": e.KeeperID,
		"index":    strconv.FormatUint(e.Index, 10),
		"storeId":  e.StoreID,
		"orderId":  strconv.FormatUint(e.OrderID, 10),
		"kind":     e.Kind.String(),
	}}
}
