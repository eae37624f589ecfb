package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"gmsolcore/core/types"
)

const wsWriteTimeout = 10 * time.Second

// handleTradeStream implements GET /v1/stream/trades/{keeperID}: a live
// feed of every TradeEvent appended to that keeper's buffer, using an
// accept-then-stream-until-closed shape over nhooyr.io/websocket,
// subscribing via native/tradeevent.Buffer's channel fan-out.
func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	keeperID := chi.URLParam(r, "keeperID")
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	if err := s.streamTrades(r.Context(), conn, keeperID); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamTrades(ctx context.Context, conn *websocket.Conn, keeperID string) error {
	ch, unsubscribe := s.Trades.Subscribe(keeperID)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeTradeEvent(ctx, conn, ev); err != nil {
				return err
			}
		}
	}
}

func writeTradeEvent(ctx context.Context, conn *websocket.Conn, ev types.TradeEvent) error {
	data, err := json.Marshal(toTradeEventPayload(ev))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// tradeEventPayload is the websocket wire shape for one TradeEvent, a JSON
// projection mirroring orderResponse's big.Int-as-decimal-string convention.
type tradeEventPayload struct {
	Index          uint64 `json:"index"`
	StoreID        string `json:"store_id"`
	OrderID        uint64 `json:"order_id"`
	OrderKind      string `json:"order_kind"`
	PositionID     string `json:"position_id"`
	SizeDeltaUsd   string `json:"size_delta_usd"`
	PnlUsd         string `json:"pnl_usd"`
	ExecutedAt     int64  `json:"executed_at"`
	ExecutedAtSlot uint64 `json:"executed_at_slot"`
}

func toTradeEventPayload(ev types.TradeEvent) tradeEventPayload {
	return tradeEventPayload{
		Index:          ev.Index,
		StoreID:        ev.StoreID,
		OrderID:        ev.OrderID,
		OrderKind:      ev.OrderKind.String(),
		PositionID:     ev.PositionID,
		SizeDeltaUsd:   bigString(ev.SizeDeltaUsd),
		PnlUsd:         bigString(ev.PnlUsd),
		ExecutedAt:     ev.ExecutedAt,
		ExecutedAtSlot: ev.ExecutedAtSlot,
	}
}
