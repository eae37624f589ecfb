package rpc

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
	"gmsolcore/native/market"
	"gmsolcore/native/order"
	"gmsolcore/native/positioncut"
)

type updateAdlStateRequest struct {
	MarketTokenID string `json:"market_token_id"`
}

// handleUpdateAdlState implements POST /v1/markets/update-adl-state, the
// update_adl_state entry point, wrapping the pre-execute
// ritual's position-impact-distribution/borrowing/funding clock advance
// so a GT_CONTROLLER keeper can force a market's clocks
// forward between trades rather than waiting on the next order execution
// to do it implicitly.
func (s *Server) handleUpdateAdlState(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/markets/update-adl-state"
	var req updateAdlStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	m, err := s.Manager.MarketRequire(s.StoreID, req.MarketTokenID)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	now, _ := nowSlot(r)
	report := market.PreExecuteRitual(m, now, s.Emitter)
	if err := s.Manager.MarketPut(m); err != nil {
		writeError(w, statusForError(err), "UPDATE_ADL_STATE_FAILED", err, route)
		return
	}
	resp := struct {
		ImpactDistributed   string `json:"impact_distributed"`
		BorrowingDeltaLong  string `json:"borrowing_delta_long"`
		BorrowingDeltaShort string `json:"borrowing_delta_short"`
		FundingDeltaLong    string `json:"funding_delta_long"`
		FundingDeltaShort   string `json:"funding_delta_short"`
	}{
		ImpactDistributed:   bigString(report.ImpactDistributed),
		BorrowingDeltaLong:  bigString(report.BorrowingDeltaLong),
		BorrowingDeltaShort: bigString(report.BorrowingDeltaShort),
		FundingDeltaLong:    bigString(report.FundingDeltaLong),
		FundingDeltaShort:   bigString(report.FundingDeltaShort),
	}
	writeJSON(w, route, http.StatusOK, resp)
}

type liquidateRequest struct {
	Executor        string `json:"executor"`
	Owner           string `json:"owner"`
	MarketToken     string `json:"market_token"`
	CollateralToken string `json:"collateral_token"`
	Side            string `json:"side"`
}

// handleLiquidate implements POST /v1/positions/liquidate, forcing a
// liquidation cut. Like order execution, prices come from the server's
// oracle.Source, never the request body.
func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/positions/liquidate"
	var req liquidateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	p, err := s.Manager.PositionRequireMatch(s.StoreID, req.Owner, req.MarketToken, req.CollateralToken, side)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	m, err := s.Manager.MarketRequire(s.StoreID, req.MarketToken)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	prices, err := s.Prices.Prices(r.Context(), []string{m.LongToken, m.ShortToken, m.IndexToken})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "ORACLE_UNAVAILABLE", err, route)
		return
	}
	if err := order.CheckLiquidationOracleFreshness(p, prices.OldestTimestamp()); err != nil {
		writeError(w, statusForError(err), "ORACLE_STALE", err, route)
		return
	}
	now, slot := nowSlot(r)
	report, err := positioncut.Liquidate(p, m, prices, now, slot)
	if err != nil {
		writeError(w, statusForError(err), "LIQUIDATE_FAILED", err, route)
		return
	}
	if err := persistCutResult(s, p, m, report.Decrease.ShouldRemove); err != nil {
		writeError(w, statusForError(err), "PERSIST_FAILED", err, route)
		return
	}
	rentReceiver := positioncut.RentReceiver(req.Executor, req.Owner, report.Decrease.ShouldRemove)
	resp := struct {
		Position     positionResponse `json:"position"`
		Reason       string           `json:"reason"`
		OutputAmount string           `json:"output_amount"`
		RealizedPnl  string           `json:"realized_pnl"`
		RentReceiver string           `json:"rent_receiver"`
		ShouldRemove bool             `json:"should_remove"`
	}{
		Position:     toPositionResponse(p),
		Reason:       report.Reason,
		OutputAmount: bigString(report.Decrease.OutputAmount),
		RealizedPnl:  bigString(report.Decrease.RealizedPnl),
		RentReceiver: rentReceiver,
		ShouldRemove: report.Decrease.ShouldRemove,
	}
	writeJSON(w, route, http.StatusOK, resp)
}

type autoDeleverageRequest struct {
	Executor        string `json:"executor"`
	Owner           string `json:"owner"`
	MarketToken     string `json:"market_token"`
	CollateralToken string `json:"collateral_token"`
	Side            string `json:"side"`
	SizeDelta       string `json:"size_delta"`
}

// handleAutoDeleverage implements POST /v1/positions/auto-deleverage, an
// auto-deleveraging cut.
func (s *Server) handleAutoDeleverage(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/positions/auto-deleverage"
	var req autoDeleverageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	sizeDelta, ok := new(big.Int).SetString(req.SizeDelta, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", coreerrors.New(coreerrors.CodeInvalidArgument, "size_delta must be a decimal integer"), route)
		return
	}
	p, err := s.Manager.PositionRequireMatch(s.StoreID, req.Owner, req.MarketToken, req.CollateralToken, side)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	m, err := s.Manager.MarketRequire(s.StoreID, req.MarketToken)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	prices, err := s.Prices.Prices(r.Context(), []string{m.LongToken, m.ShortToken, m.IndexToken})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "ORACLE_UNAVAILABLE", err, route)
		return
	}
	now, slot := nowSlot(r)
	if err := order.CheckAdlOracleFreshness(prices.OldestTimestamp(), now, s.AdlMaxStalenessSeconds); err != nil {
		writeError(w, statusForError(err), "ORACLE_STALE", err, route)
		return
	}
	report, err := positioncut.AutoDeleverage(p, m, prices, sizeDelta, now, slot)
	if err != nil {
		writeError(w, statusForError(err), "ADL_FAILED", err, route)
		return
	}
	if err := persistCutResult(s, p, m, report.Decrease.ShouldRemove); err != nil {
		writeError(w, statusForError(err), "PERSIST_FAILED", err, route)
		return
	}
	rentReceiver := positioncut.RentReceiver(req.Executor, req.Owner, report.Decrease.ShouldRemove)
	resp := struct {
		Position        positionResponse `json:"position"`
		PnlFactorBefore string           `json:"pnl_factor_before"`
		PnlFactorAfter  string           `json:"pnl_factor_after"`
		OutputAmount    string           `json:"output_amount"`
		RentReceiver    string           `json:"rent_receiver"`
		ShouldRemove    bool             `json:"should_remove"`
	}{
		Position:        toPositionResponse(p),
		PnlFactorBefore: bigString(report.PnlFactorBefore),
		PnlFactorAfter:  bigString(report.PnlFactorAfter),
		OutputAmount:    bigString(report.Decrease.OutputAmount),
		RentReceiver:    rentReceiver,
		ShouldRemove:    report.Decrease.ShouldRemove,
	}
	writeJSON(w, route, http.StatusOK, resp)
}

// persistCutResult writes back the position and market mutated in place by
// position.Decrease (invoked inside positioncut.Liquidate/AutoDeleverage),
// deleting the position once its size and collateral are fully drained.
func persistCutResult(s *Server, p *types.Position, m *types.Market, shouldRemove bool) error {
	if err := s.Manager.MarketPut(m); err != nil {
		return err
	}
	if shouldRemove || p.IsEmpty() {
		return s.Manager.PositionDelete(p)
	}
	return s.Manager.PositionPut(p)
}

// handleGetPosition implements GET
// /v1/positions/{owner}/{marketToken}/{collateralToken}/{side}.
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	const route = "GET /v1/positions/{owner}/{marketToken}/{collateralToken}/{side}"
	side, err := parseSide(chi.URLParam(r, "side"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	p, found, err := s.Manager.PositionGet(s.StoreID, chi.URLParam(r, "owner"), chi.URLParam(r, "marketToken"), chi.URLParam(r, "collateralToken"), side)
	if err != nil {
		writeError(w, statusForError(err), "LOOKUP_FAILED", err, route)
		return
	}
	if !found || p.IsEmpty() {
		writeError(w, http.StatusNotFound, "NOT_FOUND", coreerrors.New(coreerrors.CodeNotFound, "position not found"), route)
		return
	}
	writeJSON(w, route, http.StatusOK, toPositionResponse(p))
}
