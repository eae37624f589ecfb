package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/events"
	"gmsolcore/core/state"
	"gmsolcore/native/common"
	"gmsolcore/native/tradeevent"
	"gmsolcore/observability"
	"gmsolcore/oracle"
)

// Server bundles the dependencies every entry-point handler needs: the
// trie-backed state manager, the trade event buffer, an oracle price
// source, the keeper quota store, and an event emitter: one struct
// holding every collaborator, one constructor, one Handler.
type Server struct {
	Manager   *state.Manager
	StoreID   string
	Trades    *tradeevent.Buffer
	Prices    oracle.Source
	Quota     common.Store
	Emitter   events.Emitter
	Auth      *Authenticator
	RateLimit *RateLimiter
	Idempo    *IdempotencyStore

	RequestExpirationSeconds uint32
	ClaimableWindowSeconds   uint32
	AdlMaxStalenessSeconds   int64
}

// NewServer wires a Server from its collaborators. Callers (cmd/exchanged)
// are responsible for constructing each dependency first.
func NewServer(
	manager *state.Manager,
	storeID string,
	trades *tradeevent.Buffer,
	prices oracle.Source,
	quota common.Store,
	emitter events.Emitter,
	auth *Authenticator,
	rl *RateLimiter,
	idempo *IdempotencyStore,
	requestExpirationSeconds, claimableWindowSeconds uint32,
	adlMaxStalenessSeconds int64,
) *Server {
	return &Server{
		Manager:                  manager,
		StoreID:                  storeID,
		Trades:                   trades,
		Prices:                   prices,
		Quota:                    quota,
		Emitter:                  emitter,
		Auth:                     auth,
		RateLimit:                rl,
		Idempo:                   idempo,
		RequestExpirationSeconds: requestExpirationSeconds,
		ClaimableWindowSeconds:   claimableWindowSeconds,
		AdlMaxStalenessSeconds:   adlMaxStalenessSeconds,
	}
}

// Handler builds the full chi router over the "Ledger program surface"
// entry-point catalog: orders, actions (deposit/withdrawal/shift),
// position-cut (liquidate/auto-deleverage), claimable routing, read-model
// GETs, and the live trade-event websocket stream.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.Auth.Middleware)

	r.Route("/v1/orders", func(r chi.Router) {
		r.With(s.Idempo.Idempotent, RequireRole(RoleOrderKeeper)).Post("/", s.handleCreateOrder)
		r.With(RequireRole(RoleOrderKeeper)).Patch("/{owner}/{nonce}", s.handleUpdateOrder)
		r.With(RequireRole(RoleOrderKeeper)).Post("/{owner}/{nonce}/execute", s.handleExecuteOrder)
		r.With(RequireRole(RoleOrderKeeper)).Post("/{owner}/{nonce}/close", s.handleCloseOrder)
		r.With(RequireRole(RoleOrderKeeper)).Post("/{owner}/{nonce}/cancel-if-no-position", s.handleCancelIfNoPosition)
		r.With(RequireRole(RoleOrderKeeper)).Get("/{owner}/{nonce}", s.handleGetOrder)
	})

	r.Route("/v1/positions", func(r chi.Router) {
		r.With(RequireRole(RoleOrderKeeper)).Post("/liquidate", s.handleLiquidate)
		r.With(RequireRole(RoleOrderKeeper)).Post("/auto-deleverage", s.handleAutoDeleverage)
		r.With(RequireRole(RoleOrderKeeper)).Get("/{owner}/{marketToken}/{collateralToken}/{side}", s.handleGetPosition)
	})

	r.Route("/v1/actions", func(r chi.Router) {
		r.With(s.Idempo.Idempotent, RequireRole(RoleOrderKeeper)).Post("/", s.handleCreateAction)
		r.With(RequireRole(RoleOrderKeeper)).Post("/{owner}/{nonce}/execute", s.handleExecuteAction)
		r.With(RequireRole(RoleOrderKeeper)).Post("/{owner}/{nonce}/close", s.handleCloseAction)
	})

	r.Route("/v1/claimable", func(r chi.Router) {
		r.With(RequireRole(RoleOrderKeeper)).Post("/use", s.handleUseClaimableAccount)
		r.With(RequireRole(RoleOrderKeeper)).Post("/close-empty", s.handleCloseEmptyClaimableAccount)
		r.With(RequireRole(RoleConfigKeeper)).Post("/claim-fees", s.handleClaimFeesFromMarket)
		r.With(RequireRole(RoleOrderKeeper)).Get("/{mint}/{beneficiary}/{windowKey}", s.handleGetClaimable)
	})

	r.Route("/v1/markets", func(r chi.Router) {
		r.With(RequireRole(RoleMarketKeeper)).Get("/{marketTokenID}", s.handleGetMarket)
		r.With(RequireRole(RoleGtController)).Post("/update-adl-state", s.handleUpdateAdlState)
	})

	r.Route("/v1/features/{module}", func(r chi.Router) {
		r.With(RequireRole(RoleFeatureKeeper)).Post("/", s.handleSetFeaturePaused)
		r.With(RequireRole(RoleFeatureKeeper)).Get("/", s.handleGetFeaturePaused)
	})

	r.With(RequireRole(RoleOrderKeeper)).Get("/v1/stream/trades/{keeperID}", s.handleTradeStream)

	r.With(RequireRole(RoleOracleController)).Post("/v1/oracle/prices", s.handleSetPrices)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

func recordOutcome(route, outcome string) {
	observability.Engine().RecordRPCRequest(route, outcome)
}

func writeJSON(w http.ResponseWriter, route string, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	outcome := "ok"
	if status >= 400 {
		outcome = "error"
	}
	recordOutcome(route, outcome)
}

// writeError renders err as the structured error body. A *coreerrors.Error
// carries its stable numeric code/category through to the response; any
// other error (request shape, JSON decode) is reported with status only.
func writeError(w http.ResponseWriter, status int, name string, err error, route string) {
	resp := errorResponse{Name: name, Message: err.Error()}
	var ce *coreerrors.Error
	if errors.As(err, &ce) {
		resp.Code = uint32(ce.Code)
		resp.Name = ce.Code.Name()
		resp.Category = string(ce.Code.Category())
		resp.Account = ce.Account
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
	outcome := "error"
	if status == http.StatusUnauthorized {
		outcome = "unauthorized"
	} else if status == http.StatusTooManyRequests {
		outcome = "rate_limited"
	}
	if route != "" {
		recordOutcome(route, outcome)
	}
}

// statusForError maps a core error's category to the HTTP status a thin
// RPC wrapper should report, per the category table.
func statusForError(err error) int {
	var ce *coreerrors.Error
	if !errors.As(err, &ce) {
		return http.StatusBadRequest
	}
	switch ce.Code.Category() {
	case coreerrors.CategoryAuthorization:
		return http.StatusForbidden
	case coreerrors.CategoryShape, coreerrors.CategoryIdentity:
		return http.StatusBadRequest
	case coreerrors.CategoryState, coreerrors.CategoryInvariant, coreerrors.CategoryOrder,
		coreerrors.CategoryADL, coreerrors.CategoryClaimableOrFee:
		return http.StatusConflict
	case coreerrors.CategoryOracle:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
