package rpc

import (
	"math/big"
	"net/http"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/oracle"
)

type priceEntry struct {
	Token     string `json:"token"`
	Min       string `json:"min"`
	Max       string `json:"max"`
	Timestamp int64  `json:"timestamp"`
	Slot      uint64 `json:"slot"`
}

type setPricesRequest struct {
	Prices []priceEntry `json:"prices"`
}

// handleSetPrices implements POST /v1/oracle/prices, the
// set_prices_from_price_feed entry point: an
// ORACLE_CONTROLLER-signed atomic replacement of the cleared Oracle
// account every order/action/position-cut execute call reads from. Only
// available when the server was wired with an oracle.MemorySource (the
// in-scope account); an external Source implementation has no write side
// exposed here.
func (s *Server) handleSetPrices(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/oracle/prices"
	mem, ok := s.Prices.(*oracle.MemorySource)
	if !ok {
		writeError(w, http.StatusNotImplemented, "UNSUPPORTED_SOURCE", coreerrors.New(coreerrors.CodeInvalidArgument, "server's oracle source does not accept pushed prices"), route)
		return
	}
	var req setPricesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	byToken := make(map[string]oracle.Price, len(req.Prices))
	for _, entry := range req.Prices {
		min, ok := new(big.Int).SetString(entry.Min, 10)
		if !ok {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", coreerrors.New(coreerrors.CodeInvalidArgument, "min must be a decimal integer"), route)
			return
		}
		max, ok := new(big.Int).SetString(entry.Max, 10)
		if !ok {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", coreerrors.New(coreerrors.CodeInvalidArgument, "max must be a decimal integer"), route)
			return
		}
		price := oracle.Price{Min: min, Max: max, Timestamp: entry.Timestamp, Slot: entry.Slot}
		if !price.Valid() {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", coreerrors.New(coreerrors.CodeInvalidArgument, "price bounds are out of order or negative").WithAccount(entry.Token), route)
			return
		}
		byToken[entry.Token] = price
	}
	mem.SetPrices(byToken)
	w.WriteHeader(http.StatusNoContent)
	recordOutcome(route, "ok")
}
