package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gmsolcore/core/state"
)

type setFeaturePausedRequest struct {
	Paused bool `json:"paused"`
}

// handleSetFeaturePaused implements POST /v1/features/{module}, the
// toggle_feature_flag entry point: a FEATURE_KEEPER-signed write to the
// store's module pause registry that native/order.Create and
// native/action.Create guard against before anything else. module is the
// same "order:<kind>" / "action:<kind>" string Create builds from the
// caller's requested kind.
func (s *Server) handleSetFeaturePaused(w http.ResponseWriter, r *http.Request) {
	const route = "POST /v1/features/{module}"
	module := chi.URLParam(r, "module")
	var req setFeaturePausedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err, route)
		return
	}
	if err := s.Manager.SetModulePaused(s.StoreID, module, req.Paused); err != nil {
		writeError(w, statusForError(err), "SET_FEATURE_PAUSED_FAILED", err, route)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	recordOutcome(route, "ok")
}

// handleGetFeaturePaused implements GET /v1/features/{module}, reading back
// the pause flag handleSetFeaturePaused writes.
func (s *Server) handleGetFeaturePaused(w http.ResponseWriter, r *http.Request) {
	const route = "GET /v1/features/{module}"
	module := chi.URLParam(r, "module")
	paused := state.PauseStore{Manager: s.Manager, StoreID: s.StoreID}.IsPaused(module)
	writeJSON(w, route, http.StatusOK, struct {
		Module string `json:"module"`
		Paused bool   `json:"paused"`
	}{Module: module, Paused: paused})
}
