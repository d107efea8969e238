package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.SchemaNames())
}

// getSchema handles GET /api/schemas/{name}, the JSON Schema of a request body.
func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s, ok := h.svc.Schema(name)
	if !ok {
		writeError(w, r, "unknown schema "+name, "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, s)
}
