package rpc

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/native/claimablesched"
)

type claimFeesFromMarketRequest struct {
	MarketTokenID string `json:"market_token_id"`
	Receiver      string `json:"receiver"`
}

// handleClaimFeesFromMarket implements POST /v1/claimable/claim-fees, the
// CONFIG_KEEPER-gated sweep of a market's accumulated ClaimableFeePool
// to a configured fee receiver. No native package owns this directly:
// fee accrual lives inside native/position and native/swappath, which
// only add to the pool, so the sweep itself is a direct, audited Market
// mutation at the RPC layer, the same granularity core/state.Manager
// already exposes for every other admin-level field.
func (s *Server) handleClaimFeesFromMarket(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/claimable/claim-fees"
	var req claimFeesFromMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	m, err := s.Manager.MarketRequire(s.StoreID, req.MarketTokenID)
	if err != nil {
		writeError(w, statusForError(err), "NOT_FOUND", err, route)
		return
	}
	if m.ClaimableFeePool == nil || m.ClaimableFeePool.IsZero() {
		writeJSON(w, route, http.StatusOK, struct {
			Amount string `json:"amount"`
		}{Amount: "0"})
		return
	}
	claimed := new(uint256.Int).Set(m.ClaimableFeePool)
	m.ClaimableFeePool = uint256.NewInt(0)
	if err := s.Manager.MarketPut(m); err != nil {
		writeError(w, statusForError(err), "CLAIM_FEES_FAILED", err, route)
		return
	}
	writeJSON(w, route, http.StatusOK, struct {
		Amount string `json:"amount"`
	}{Amount: claimed.ToBig().String()})
}

type useClaimableRequest struct {
	Mint        string `json:"mint"`
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
}

// handleUseClaimableAccount implements POST /v1/claimable/use, the
// beneficiary-initiated withdrawal from a window's claimable balance
// from the claimable-collateral scheduler.
func (s *Server) handleUseClaimableAccount(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/claimable/use"
	var req useClaimableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", coreerrors.New(coreerrors.CodeInvalidArgument, "amount must be a positive decimal integer"), route)
		return
	}
	now, _ := nowSlot(r)
	c, err := claimablesched.UseClaimableAccount(s.Manager, s.StoreID, req.Mint, req.Beneficiary, now, s.ClaimableWindowSeconds, amount)
	if err != nil {
		writeError(w, statusForError(err), "USE_CLAIMABLE_FAILED", err, route)
		return
	}
	writeJSON(w, route, http.StatusOK, toClaimableResponse(c))
}

type closeEmptyClaimableRequest struct {
	Mint        string `json:"mint"`
	Beneficiary string `json:"beneficiary"`
}

// handleCloseEmptyClaimableAccount implements POST
// /v1/claimable/close-empty, reporting whether the caller's claimable bucket
// for the current window is closed or empty. It writes nothing; a bucket is
// closed by the debit that drains it.
func (s *Server) handleCloseEmptyClaimableAccount(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/claimable/close-empty"
	var req closeEmptyClaimableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	now, _ := nowSlot(r)
	closed, err := claimablesched.CloseEmptyClaimableAccount(s.Manager, s.StoreID, req.Mint, req.Beneficiary, now, s.ClaimableWindowSeconds)
	if err != nil {
		writeError(w, statusForError(err), "CLOSE_CLAIMABLE_FAILED", err, route)
		return
	}
	writeJSON(w, route, http.StatusOK, struct {
		Closed bool `json:"closed"`
	}{Closed: closed})
}

// handleGetClaimable implements GET
// /v1/claimable/{mint}/{beneficiary}/{windowKey}.
func (s *Server) handleGetClaimable(w http.ResponseWriter, r *http.Request) {
	const route = "GET /v1/claimable/{mint}/{beneficiary}/{windowKey}"
	windowKey, err := strconv.ParseUint(chi.URLParam(r, "windowKey"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	now, _ := nowSlot(r)
	c, err := s.Manager.ClaimableGet(s.StoreID, chi.URLParam(r, "mint"), chi.URLParam(r, "beneficiary"), windowKey, now)
	if err != nil {
		writeError(w, statusForError(err), "LOOKUP_FAILED", err, route)
		return
	}
	writeJSON(w, route, http.StatusOK, toClaimableResponse(c))
}
