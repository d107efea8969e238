package web

import (
	"net/http"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"
)

// listPurchases handles GET /api/purchases?settlement=&from=&to=.
func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	filter := core.PurchaseFilter{Settlement: core.SettlementKind(r.URL.Query().Get("settlement"))}
	switch filter.Settlement {
	case "", core.SettlementStock, core.SettlementDirectSale:
	default:
		writeError(w, r, "settlement must be stock or direct_sale", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var err error
	if filter.From, filter.To, err = dateRange(r); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	purchases, err := h.svc.ListPurchases(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, purchases)
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var req core.PurchaseInput
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RecordPurchase(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

func (h *Handler) recordDirectSale(w http.ResponseWriter, r *http.Request) {
	var req core.DirectSalePurchaseInput
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RecordDirectSale(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// draftPurchase handles POST /api/purchases/intake. The draft is returned for
// review; the client submits the accepted lines to POST /api/purchases.
func (h *Handler) draftPurchase(w http.ResponseWriter, r *http.Request) {
	var req app.IntakeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.DraftPurchase(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
