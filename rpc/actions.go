package rpc

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gmsolcore/core/state"
	"gmsolcore/core/types"
	"gmsolcore/native/action"
)

// createActionRequest is the JSON body for POST /v1/actions, covering all
// three ActionKind variants.
type createActionRequest struct {
	Owner string `json:"owner"`
	Kind  string `json:"kind"`

	MarketID     string `json:"market_id"`
	FromMarketID string `json:"from_market_id"`
	ToMarketID   string `json:"to_market_id"`

	LongAmount  string `json:"long_amount"`
	ShortAmount string `json:"short_amount"`

	LongSwapPath  []string `json:"long_swap_path"`
	ShortSwapPath []string `json:"short_swap_path"`

	MarketTokenAmount string `json:"market_token_amount"`
	MinLongOutput     string `json:"min_long_output"`
	MinShortOutput    string `json:"min_short_output"`
	MinMarketTokens   string `json:"min_market_tokens"`

	ShouldUnwrapNative bool   `json:"should_unwrap_native"`
	ExecutionFeeAmount string `json:"execution_fee_amount"`
	RentReceiver       string `json:"rent_receiver"`
}

func parseActionKind(s string) (types.ActionKind, error) {
	switch s {
	case "Deposit":
		return types.ActionDeposit, nil
	case "Withdrawal":
		return types.ActionWithdrawal, nil
	case "Shift":
		return types.ActionShift, nil
	default:
		return 0, errUnknownActionKind(s)
	}
}

type errUnknownActionKind string

func (e errUnknownActionKind) Error() string { return "rpc: unknown action kind: " + string(e) }

// actionResponse is the JSON projection of types.Action.
type actionResponse struct {
	Owner    string `json:"owner"`
	Nonce    uint64 `json:"nonce"`
	ID       uint64 `json:"id"`
	Kind     string `json:"kind"`
	MarketID string `json:"market_id"`
	State    string `json:"state"`

	MarketTokenAmount string `json:"market_token_amount"`
	UpdatedAt         int64  `json:"updated_at"`
}

func toActionResponse(a *types.Action) actionResponse {
	return actionResponse{
		Owner:             a.Owner,
		Nonce:             a.Nonce,
		ID:                a.ID,
		Kind:              a.Kind.String(),
		MarketID:          a.MarketID,
		State:             a.State.String(),
		MarketTokenAmount: bigString(a.MarketTokenAmount),
		UpdatedAt:         a.UpdatedAt,
	}
}

// handleCreateAction implements POST /v1/actions, action creation.
func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/actions"
	var req createActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	kind, err := parseActionKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}

	longAmount, err := bigOrZero(req.LongAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	shortAmount, err := bigOrZero(req.ShortAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	marketTokenAmount, err := bigOrZero(req.MarketTokenAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	minLong, err := bigOrZero(req.MinLongOutput)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	minShort, err := bigOrZero(req.MinShortOutput)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	minMarketTokens, err := bigOrZero(req.MinMarketTokens)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	execFee, err := bigOrZero(req.ExecutionFeeAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}

	now, slot := nowSlot(r)
	a, err := action.Create(s.Manager, s.StoreID, req.Owner, action.CreateParams{
		Kind:               kind,
		MarketID:           req.MarketID,
		FromMarketID:       req.FromMarketID,
		ToMarketID:         req.ToMarketID,
		LongAmount:         longAmount,
		ShortAmount:        shortAmount,
		LongSwapPath:       req.LongSwapPath,
		ShortSwapPath:      req.ShortSwapPath,
		MarketTokenAmount:  marketTokenAmount,
		MinLongOutput:      minLong,
		MinShortOutput:     minShort,
		MinMarketTokens:    minMarketTokens,
		ShouldUnwrapNative: req.ShouldUnwrapNative,
		ExecutionFeeAmount: execFee,
		RentReceiver:       req.RentReceiver,
		PauseView:          state.PauseStore{Manager: s.Manager, StoreID: s.StoreID},
		Now:                now,
		Slot:               slot,
	})
	if err != nil {
		writeError(w, statusForError(err), "CREATE_ACTION_FAILED", err, route)
		return
	}
	writeJSON(w, route, http.StatusCreated, toActionResponse(a))
}

func actionParams(r *http.Request) (owner string, nonce uint64, err error) {
	owner = chi.URLParam(r, "owner")
	nonce, err = strconv.ParseUint(chi.URLParam(r, "nonce"), 10, 64)
	return owner, nonce, err
}

// handleExecuteAction implements POST /v1/actions/{owner}/{nonce}/execute,
// action execution.
func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/actions/{owner}/{nonce}/execute"
	owner, nonce, err := actionParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	a, err := s.Manager.ActionRequire(s.StoreID, owner, nonce)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}

	tokens, err := s.collectActionTokens(a)
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
	report, err := action.Execute(s.Manager, a, action.ExecuteParams{Prices: prices, Now: now, Slot: slot})
	if err != nil {
		writeError(w, statusForError(err), "EXECUTE_ACTION_FAILED", err, route)
		return
	}
	resp := struct {
		Action           actionResponse `json:"action"`
		MarketTokensOut  string         `json:"market_tokens_out,omitempty"`
		LongOut          string         `json:"long_out,omitempty"`
		ShortOut         string         `json:"short_out,omitempty"`
		DestMarketTokens string         `json:"dest_market_tokens,omitempty"`
	}{
		Action:           toActionResponse(report.Action),
		MarketTokensOut:  bigString(report.MarketTokensOut),
		LongOut:          bigString(report.LongOut),
		ShortOut:         bigString(report.ShortOut),
		DestMarketTokens: bigString(report.DestMarketTokens),
	}
	writeJSON(w, route, http.StatusOK, resp)
}

// collectActionTokens gathers every token symbol whose price action.Execute
// needs: the long/short/index tokens of every market the action touches
// (its own market, or both legs of a shift), plus any swap-path hops.
func (s *Server) collectActionTokens(a *types.Action) ([]string, error) {
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
		if marketID == "" {
			return nil
		}
		m, err := s.Manager.MarketRequire(s.StoreID, marketID)
		if err != nil {
			return err
		}
		add(m.LongToken)
		add(m.ShortToken)
		add(m.IndexToken)
		return nil
	}
	if err := addMarket(a.MarketID); err != nil {
		return nil, err
	}
	if err := addMarket(a.FromMarketID); err != nil {
		return nil, err
	}
	if err := addMarket(a.ToMarketID); err != nil {
		return nil, err
	}
	for _, hop := range a.LongSwapPath {
		if err := addMarket(hop); err != nil {
			return nil, err
		}
	}
	for _, hop := range a.ShortSwapPath {
		if err := addMarket(hop); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

// handleCloseAction implements POST /v1/actions/{owner}/{nonce}/close,
// action close.
func (s *Server) handleCloseAction(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/actions/{owner}/{nonce}/close"
	owner, nonce, err := actionParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	a, err := s.Manager.ActionRequire(s.StoreID, owner, nonce)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	if err := action.Close(s.Manager, a); err != nil {
		writeError(w, statusForError(err), "CLOSE_ACTION_FAILED", err, route)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	recordOutcome(route, "ok")
}
