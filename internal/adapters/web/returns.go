package web

import (
	"net/http"
	"strings"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"
)

// listReturns handles GET /api/returns?status=returned|sent_to_supplier.
func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	status := core.ReturnStatus(r.URL.Query().Get("status"))
	switch status {
	case "", core.ReturnReturned, core.ReturnSentToSupplier:
	default:
		writeError(w, r, "status must be returned or sent_to_supplier", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	returns, err := h.svc.ListReturns(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, returns)
}

// sendToSupplier handles POST /api/returns/send-to-supplier.
func (h *Handler) sendToSupplier(w http.ResponseWriter, r *http.Request) {
	var req app.SendToSupplierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SendToSupplier(r.Context(), req.ReturnIDs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeBatch(w, res)
}

// listReplacements handles GET /api/replacements?resolution=PENDING|REPAIRED|REPLACED.
func (h *Handler) listReplacements(w http.ResponseWriter, r *http.Request) {
	resolution := core.Resolution(strings.ToUpper(r.URL.Query().Get("resolution")))
	switch resolution {
	case "", core.ResolutionPending, core.ResolutionRepaired, core.ResolutionReplaced:
	default:
		writeError(w, r, "resolution must be PENDING, REPAIRED or REPLACED", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	requests, err := h.svc.ListReplacements(r.Context(), resolution)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, requests)
}

func (h *Handler) resolveReplacement(w http.ResponseWriter, r *http.Request) {
	var req core.ResolveInput
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ResolveReplacement(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) resolveReplacementBatch(w http.ResponseWriter, r *http.Request) {
	var req app.ResolveBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ResolveReplacementBatch(r.Context(), req.Requests)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeBatch(w, res)
}
