// Package dispatch exposes the dispatch manager over HTTP.
package dispatch

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	coredispatch "github.com/kilianp07/carrierchain/core/dispatch"
	"github.com/kilianp07/carrierchain/core/dispatch/logging"
	"github.com/kilianp07/carrierchain/core/logger"
	"github.com/kilianp07/carrierchain/core/store"
)

// API holds the components served by the router. Timeline may be nil.
type API struct {
	Manager   *coredispatch.Manager
	Generator *coredispatch.Generator
	Orders    store.OrderStore
	Sweeper   *coredispatch.Sweeper
	Timeline  logging.LogStore
	Logger    logger.Logger
}

// NewRouter returns the HTTP handler of the dispatch API. Every route but
// /health requires "Authorization: Bearer <token>" when token is non-empty.
func NewRouter(api API, token string) http.Handler {
	if api.Logger == nil {
		api.Logger = logger.NopLogger{}
	}
	h := &handlers{api: api}
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Route("/api/dispatch", func(r chi.Router) {
		r.Use(requireToken(token))
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/chain", h.generate)
		r.Post("/orders/{orderID}/start", h.start)
		r.Post("/orders/{orderID}/next", h.sendNext)
		r.Post("/orders/{orderID}/responses", h.respond)
		r.Post("/orders/{orderID}/cancel", h.cancel)
		r.Post("/orders/{orderID}/escalate", h.escalate)
		r.Post("/sweep", h.sweep)
		if api.Timeline != nil {
			r.Method(http.MethodGet, "/logs", NewLogHandler(api.Timeline, ""))
		}
	})
	return r
}

func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte("Bearer " + token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// response wraps an operation result with its error message.
type response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, coredispatch.ErrMissingID), errors.Is(err, coredispatch.ErrInvalidOutcome):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coredispatch.ErrOfferInFlight),
		errors.Is(err, coredispatch.ErrChainFrozen),
		errors.Is(err, coredispatch.ErrNotAwaitingResponse),
		errors.Is(err, coredispatch.ErrNoChain),
		errors.Is(err, coredispatch.ErrChainStarted),
		errors.Is(err, coredispatch.ErrNotEscalated),
		errors.Is(err, store.ErrPreconditionFailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeResult(w http.ResponseWriter, result any, err error) {
	h.writeJSON(w, statusFor(err), response{Result: result, Error: coredispatch.ErrorString(err)})
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.api.Logger.Errorf("encode response: %v", err)
	}
}
