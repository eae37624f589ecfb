package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/state"
	"gmsolcore/core/types"
	"gmsolcore/native/order"
)

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func nowSlot(r *http.Request) (int64, uint64) {
	return time.Now().Unix(), 0
}

// handleCreateOrder implements POST /v1/orders, order creation.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/orders"
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	kind, err := parseOrderKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}

	initColl, err := bigOrZero(req.InitialCollateralDeltaAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	sizeDelta, err := bigOrZero(req.SizeDeltaValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	trigger, err := bigOrZero(req.TriggerPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	acceptable, err := bigOrZero(req.AcceptablePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	minOutput, err := bigOrZero(req.MinOutput)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	execFee, err := bigOrZero(req.ExecutionFeeAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	cutRent, err := bigOrZero(req.PositionCutRentAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}

	now, slot := nowSlot(r)
	o, err := order.Create(s.Manager, s.StoreID, req.Owner, order.CreateParams{
		Kind:                           kind,
		Side:                           side,
		MarketID:                       req.MarketID,
		InitialCollateralDeltaAmount:   initColl,
		SizeDeltaValue:                 sizeDelta,
		TriggerPrice:                   trigger,
		AcceptablePrice:                acceptable,
		MinOutput:                      minOutput,
		ValidFromTs:                    req.ValidFromTs,
		DecreasePositionSwapType:       parseSwapType(req.DecreasePositionSwapType),
		ShouldUnwrapNative:             req.ShouldUnwrapNative,
		ExecutionFeeAmount:             execFee,
		PositionCutRentAmount:          cutRent,
		FromToken:                      req.FromToken,
		ToToken:                        req.ToToken,
		SwapPath:                       req.SwapPath,
		InitialCollateralEscrowAccount: req.InitialCollateralEscrowAccount,
		FinalOutputEscrowAccount:       req.FinalOutputEscrowAccount,
		SecondaryOutputEscrowAccount:   req.SecondaryOutputEscrowAccount,
		RentReceiver:                   req.RentReceiver,
		PauseView:                      state.PauseStore{Manager: s.Manager, StoreID: s.StoreID},
		Now:                            now,
		Slot:                           slot,
	})
	if err != nil {
		writeError(w, statusForError(err), "CREATE_ORDER_FAILED", err, route)
		return
	}
	writeJSON(w, route, http.StatusCreated, toOrderResponse(o))
}

// collectOrderTokens gathers every token symbol order.Execute may price:
// the primary market's long/short/index tokens, every swap-path hop
// market's long/short/index tokens, and the order's own from/to tokens for
// swap kinds.
func (s *Server) collectOrderTokens(o *types.Order) ([]string, error) {
	seen := map[string]struct{}{}
	var tokens []string
	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	addMarket := func(marketID string) error {
		m, err := s.Manager.MarketRequire(s.StoreID, marketID)
		if err != nil {
			return err
		}
		add(m.LongToken)
		add(m.ShortToken)
		add(m.IndexToken)
		return nil
	}
	if err := addMarket(o.MarketID); err != nil {
		return nil, err
	}
	for _, hop := range o.SwapPath {
		if err := addMarket(hop); err != nil {
			return nil, err
		}
	}
	add(o.FromToken)
	add(o.ToToken)
	return tokens, nil
}

func orderParams(r *http.Request) (owner string, nonce uint64, err error) {
	owner = chi.URLParam(r, "owner")
	nonce, err = strconv.ParseUint(chi.URLParam(r, "nonce"), 10, 64)
	return owner, nonce, err
}

// handleGetOrder implements GET /v1/orders/{owner}/{nonce}, the read-model
// shape the RPC GET surface provides in place of
// the out-of-scope CLI's table printer.
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	const route = "GET /v1/orders/{owner}/{nonce}"
	owner, nonce, err := orderParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	o, err := s.Manager.OrderRequire(s.StoreID, owner, nonce)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	writeJSON(w, route, http.StatusOK, toOrderResponse(o))
}

type updateOrderRequest struct {
	TriggerPrice    string `json:"trigger_price"`
	AcceptablePrice string `json:"acceptable_price"`
	SizeDeltaValue  string `json:"size_delta_value"`
	MinOutput       string `json:"min_output"`
	ValidFromTs     *int64 `json:"valid_from_ts"`
}

// handleUpdateOrder implements PATCH /v1/orders/{owner}/{nonce}, order
// update.
func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	const route = "PATCH /v1/orders/{owner}/{nonce}"
	owner, nonce, err := orderParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	var req updateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	o, err := s.Manager.OrderRequire(s.StoreID, owner, nonce)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	trigger, err := bigOrZero(req.TriggerPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	acceptable, err := bigOrZero(req.AcceptablePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	sizeDelta, err := bigOrZero(req.SizeDeltaValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	minOutput, err := bigOrZero(req.MinOutput)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	now, slot := nowSlot(r)
	if err := order.Update(s.Manager, o, order.UpdateParams{
		TriggerPrice:    trigger,
		AcceptablePrice: acceptable,
		SizeDeltaValue:  sizeDelta,
		MinOutput:       minOutput,
		ValidFromTs:     req.ValidFromTs,
	}, now, slot); err != nil {
		writeError(w, statusForError(err), "UPDATE_ORDER_FAILED", err, route)
		return
	}
	writeJSON(w, route, http.StatusOK, toOrderResponse(o))
}

type executeOrderRequest struct {
	KeeperID           string `json:"keeper_id"`
	HoldingBeneficiary string `json:"holding_beneficiary"`
}

// handleExecuteOrder implements POST /v1/orders/{owner}/{nonce}/execute,
// order execution. Prices are sourced from the server's configured
// oracle.Source rather than the request body, so a keeper cannot smuggle
// an attacker-chosen price through the RPC layer.
func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/orders/{owner}/{nonce}/execute"
	owner, nonce, err := orderParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	var req executeOrderRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
			return
		}
	}
	o, err := s.Manager.OrderRequire(s.StoreID, owner, nonce)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}

	tokens, err := s.collectOrderTokens(o)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	prices, err := s.Prices.Prices(r.Context(), tokens)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "ORACLE_UNAVAILABLE", err, route)
		return
	}
	now, slot := nowSlot(r)
	report, err := order.Execute(s.Manager, s.Trades, s.Emitter, o, order.ExecuteParams{
		Owner:                    owner,
		Prices:                   prices,
		Now:                      now,
		Slot:                     slot,
		RequestExpirationSeconds: int64(s.RequestExpirationSeconds),
		KeeperID:                 req.KeeperID,
		QuotaStore:               s.Quota,
		ClaimableWindowSeconds:   s.ClaimableWindowSeconds,
		HoldingBeneficiary:       req.HoldingBeneficiary,
		AdlMaxStalenessSeconds:   s.AdlMaxStalenessSeconds,
	})
	if err != nil {
		writeError(w, statusForError(err), "EXECUTE_ORDER_FAILED", err, route)
		return
	}
	resp := struct {
		Order     orderResponse     `json:"order"`
		Position  *positionResponse `json:"position,omitempty"`
		Cancelled bool              `json:"cancelled"`
	}{Order: toOrderResponse(report.Order), Cancelled: report.Cancelled}
	if report.Position != nil {
		pr := toPositionResponse(report.Position)
		resp.Position = &pr
	}
	writeJSON(w, route, http.StatusOK, resp)
}

// handleCloseOrder implements POST /v1/orders/{owner}/{nonce}/close,
// order close.
func (s *Server) handleCloseOrder(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/orders/{owner}/{nonce}/close"
	owner, nonce, err := orderParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	o, err := s.Manager.OrderRequire(s.StoreID, owner, nonce)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	if err := order.Close(s.Manager, o); err != nil {
		writeError(w, statusForError(err), "CLOSE_ORDER_FAILED", err, route)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	recordOutcome(route, "ok")
}

// handleCancelIfNoPosition implements POST
// /v1/orders/{owner}/{nonce}/cancel-if-no-position, the decrease-order
// guard described for an order whose target position has
// already been fully closed by a liquidation or another decrease: the
// order is cancelled rather than executed against a position that no
// longer exists.
func (s *Server) handleCancelIfNoPosition(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/orders/{owner}/{nonce}/cancel-if-no-position"
	owner, nonce, err := orderParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	o, err := s.Manager.OrderRequire(s.StoreID, owner, nonce)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	if !o.Kind.IsDecrease() {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", coreerrors.New(coreerrors.CodeInvalidArgument, "only decrease orders can be cancelled for a missing position"), route)
		return
	}
	m, err := s.Manager.MarketRequire(s.StoreID, o.MarketID)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	collateralToken := o.ToToken
	if collateralToken == "" {
		collateralToken = m.SettlementToken(o.Side.IsLong())
	}
	p, err := s.Manager.PositionGetOrEmpty(s.StoreID, owner, o.MarketID, collateralToken, o.Side)
	if err != nil {
		writeError(w, statusForError(err), "LOOKUP_FAILED", err, route)
		return
	}
	if !p.IsEmpty() {
		writeError(w, http.StatusConflict, "POSITION_STILL_OPEN", coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "position still exists"), route)
		return
	}
	o.State = types.OrderStateCancelled
	now, slot := nowSlot(r)
	o.UpdatedAt, o.UpdatedAtSlot = now, slot
	if err := s.Manager.OrderPut(o); err != nil {
		writeError(w, statusForError(err), "CANCEL_FAILED", err, route)
		return
	}
	writeJSON(w, route, http.StatusOK, toOrderResponse(o))
}
