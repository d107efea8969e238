package web

import (
	"net/http"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"
)

// listSales handles GET /api/sales?client_id=&status=&from=&to=.
func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	filter := core.SaleFilter{Status: core.PaymentStatus(r.URL.Query().Get("status"))}
	var err error
	if filter.ClientID, err = queryInt(r, "client_id"); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if filter.From, filter.To, err = dateRange(r); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	sales, err := h.svc.ListSales(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sales)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sale, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req core.SaleInput
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sale)
}

// ── Invoices ──────────────────────────────────────────────────────────────────

// listInvoices handles GET /api/invoices?status=&client_id=&from=&to=.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	filter := core.InvoiceFilter{Status: core.InvoiceStatus(r.URL.Query().Get("status"))}
	var err error
	if filter.ClientID, err = queryInt(r, "client_id"); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if filter.From, filter.To, err = dateRange(r); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	invoices, err := h.svc.ListInvoices(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, invoices)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req core.InvoiceInput
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, inv)
}

// recordPayment handles PUT /api/invoices/{id}/payment.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req core.PaymentInput
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.RecordPayment(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// cancelInvoice handles PUT /api/invoices/{id}/cancel.
func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.CancelInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.CancelInvoice(r.Context(), id, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// returnItem handles POST /api/invoices/{id}/return-item.
func (h *Handler) returnItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.ReturnItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ReturnItem(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}
