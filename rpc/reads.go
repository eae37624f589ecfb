package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	coreerrors "gmsolcore/core/errors"
)

// handleGetMarket implements GET /v1/markets/{marketTokenID}, satisfying
// the read-model need the RPC GET surface covers in place of the
// out-of-scope CLI's market table printer.
func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	const route = "GET /v1/markets/{marketTokenID}"
	m, found, err := s.Manager.MarketGet(s.StoreID, chi.URLParam(r, "marketTokenID"))
	if err != nil {
		writeError(w, statusForError(err), "LOOKUP_FAILED", err, route)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", coreerrors.New(coreerrors.CodeNotFound, "market not found"), route)
		return
	}
	writeJSON(w, route, http.StatusOK, toMarketResponse(m))
}
