package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"
)

// listProducts handles GET /api/products?status=&serial=&supplier_id=.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter := core.ProductFilter{
		Status: core.ProductStatus(r.URL.Query().Get("status")),
		Serial: r.URL.Query().Get("serial"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, r, "status must be active or inactive", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	supplierID, err := queryInt(r, "supplier_id")
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	filter.SupplierID = supplierID

	products, err := h.svc.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.ProductUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setProductStatus handles PATCH /api/products/{id}/status.
func (h *Handler) setProductStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.SetProductStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// addSerialBatch handles POST /api/products/batch.
func (h *Handler) addSerialBatch(w http.ResponseWriter, r *http.Request) {
	var req app.SerialBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AddSerialBatch(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeBatch(w, res)
}

// importSerialBatch handles POST /api/products/batch/import: a multipart form with a
// "batch" field holding the shared attributes as JSON and a "file" .xlsx upload.
func (h *Handler) importSerialBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "upload too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, "invalid multipart form: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req app.SerialBatchRequest
	if err := json.NewDecoder(strings.NewReader(r.FormValue("batch"))).Decode(&req); err != nil {
		writeError(w, r, "invalid batch field: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, "file is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		writeError(w, r, "file must be an .xlsx workbook", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	res, err := h.svc.ImportSerialBatch(r.Context(), req, file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeBatch(w, res)
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (h *Handler) stockSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.StockSummary(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, rows)
}

// profitQuery reads day, from, to, paid_only and include_cancelled.
func profitQuery(r *http.Request) (core.ProfitQuery, error) {
	var q core.ProfitQuery
	var err error
	if q.Day, err = queryDate(r, "day"); err != nil {
		return q, err
	}
	if q.From, q.To, err = dateRange(r); err != nil {
		return q, err
	}
	q.PaidOnly = queryBool(r, "paid_only")
	q.IncludeCancelled = queryBool(r, "include_cancelled")
	return q, nil
}

// profitReport handles GET /api/reports/profit.
func (h *Handler) profitReport(w http.ResponseWriter, r *http.Request) {
	q, err := profitQuery(r)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	report, err := h.svc.ProfitReport(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

func (h *Handler) dailyProfit(w http.ResponseWriter, r *http.Request) {
	q, err := profitQuery(r)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	days, err := h.svc.DailyProfit(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, days)
}
