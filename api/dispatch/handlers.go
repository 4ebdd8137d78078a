package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	coredispatch "github.com/kilianp07/carrierchain/core/dispatch"
	"github.com/kilianp07/carrierchain/core/model"
)

type handlers struct {
	api API
}

type responseRequest struct {
	CarrierID string            `json:"carrier_id"`
	Outcome   model.EntryStatus `json:"outcome"`
	Data      map[string]any    `json:"data,omitempty"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// decode reads an optional JSON body into out. An empty body is accepted.
func decode(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (h *handlers) badRequest(w http.ResponseWriter, err error) {
	h.writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
}

func (h *handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.api.Orders.FindOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeResult(w, nil, err)
		return
	}
	h.writeResult(w, o, nil)
}

// generate previews a chain without persisting it.
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var opts coredispatch.Options
	if err := decode(r, &opts); err != nil {
		h.badRequest(w, err)
		return
	}
	o, err := h.api.Orders.FindOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeResult(w, nil, err)
		return
	}
	res := h.api.Generator.Generate(r.Context(), o, opts)
	h.writeResult(w, res, res.Error)
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	var opts coredispatch.Options
	if err := decode(r, &opts); err != nil {
		h.badRequest(w, err)
		return
	}
	res := h.api.Manager.StartDispatch(r.Context(), chi.URLParam(r, "orderID"), opts)
	h.writeResult(w, res, res.Error)
}

func (h *handlers) sendNext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	res := h.api.Manager.SendToNext(r.Context(), id)
	if res.Success && res.EscalateToFallback {
		esc := h.api.Manager.Escalate(r.Context(), id, res.Reason)
		h.writeResult(w, map[string]any{"send": res, "escalation": esc}, esc.Error)
		return
	}
	h.writeResult(w, res, res.Error)
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	res := h.api.Manager.Respond(r.Context(), chi.URLParam(r, "orderID"), req.CarrierID, req.Outcome, req.Data)
	h.writeResult(w, res, res.Error)
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	res := h.api.Manager.Cancel(r.Context(), chi.URLParam(r, "orderID"), req.Reason)
	h.writeResult(w, res, res.Error)
}

func (h *handlers) escalate(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	res := h.api.Manager.Escalate(r.Context(), chi.URLParam(r, "orderID"), req.Reason)
	h.writeResult(w, res, res.Error)
}

func (h *handlers) sweep(w http.ResponseWriter, r *http.Request) {
	res := h.api.Sweeper.RunOnce(r.Context())
	h.writeResult(w, res, res.Error)
}
