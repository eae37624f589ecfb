package events

import (
	"strconv"

	"gmsolcore/core/types"
)

const (
	TypeOrderCreated   = "order.created"
	TypeOrderExecuted  = "order.executed"
	TypeOrderCancelled = "order.cancelled"
	TypeOrderClosed    = "order.closed"
)

// OrderCreated is emitted by native/order.Create.
type OrderCreated struct {
	StoreID  string
	Owner    string
	Nonce    uint64
	OrderID  uint64
	Kind     types.OrderKind
	MarketID string
}

func (OrderCreated) EventType() string { return TypeOrderCreated }

func (e OrderCreated) Event() *types.Event {
	return &types.Event{Type: TypeOrderCreated, Attributes: map[string]string{
		"storeId":  e.StoreID,
		"owner":    e.Owner,
		"nonce":    strconv.FormatUint(e.Nonce, 10),
		"orderId":  strconv.FormatUint(e.OrderID, 10),
		"kind":     e.Kind.String(),
		"marketId": e.MarketID,
	}}
}

// OrderExecuted is emitted by native/order.Execute on success.
type OrderExecuted struct {
	StoreID string
	OrderID uint64
	Kind    types.OrderKind
}

func (OrderExecuted) EventType() string { return TypeOrderExecuted }

func (e OrderExecuted) Event() *types.Event {
	return &types.Event{Type: TypeOrderExecuted, Attributes: map[string]string{
		"storeId": e.StoreID,
		"orderId": strconv.FormatUint(e.OrderID, 10),
		"kind":    e.Kind.String(),
	}}
}

// OrderCancelled is emitted on market-kind auto-cancel or explicit cancel.
type OrderCancelled struct {
	StoreID string
	OrderID uint64
	Kind    types.OrderKind
	Reason  string
}

func (OrderCancelled) EventType() string { return TypeOrderCancelled }

func (e OrderCancelled) Event() *types.Event {
	attrs := map[string]string{
		"storeId": e.StoreID,
		"orderId": strconv.FormatUint(e.OrderID, 10),
		"kind":    e.Kind.String(),
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	return &types.Event{Type: TypeOrderCancelled, Attributes: attrs}
}

// OrderClosed is emitted once an order's rent is released.
type OrderClosed struct {
	StoreID      string
	OrderID      uint64
	RentReceiver string
}

func (OrderClosed) EventType() string { return TypeOrderClosed }

func (e OrderClosed) Event() *types.Event {
	return &types.Event{Type: TypeOrderClosed, Attributes: map[string]string{
		"storeId":      e.StoreID,
		"orderId":      strconv.FormatUint(e.OrderID, 10),
		"rentReceiver": e.RentReceiver,
	}}
}
