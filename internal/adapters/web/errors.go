package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusForKind maps domain error kinds to HTTP statuses.
func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindDuplicate, core.KindInvalidState, core.KindConstraintViolation:
		return http.StatusConflict
	case core.KindNegativeStock, core.KindInsufficientStock:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeServiceError translates an error returned by the ApplicationService.
// Unclassified errors are logged and reported without their internals.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *core.DomainError
	switch {
	case errors.As(err, &de):
		// Only the message reaches the client; driver errors stay in the log.
		if de.Err != nil {
			h.logger.Warn("request rejected",
				zap.String("request_id", requestIDFromContext(r.Context())),
				zap.String("path", r.URL.Path),
				zap.String("code", de.ErrorCode()),
				zap.Error(de.Err))
		}
		msg := de.Message
		if msg == "" {
			msg = de.ErrorCode()
		}
		writeError(w, r, msg, de.ErrorCode(), statusForKind(de.Kind))
	case errors.Is(err, app.ErrIntakeDisabled):
		writeError(w, r, err.Error(), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeBatch answers a multi-element operation: 201 when every element succeeded,
// 400 when none did, 207 otherwise.
func writeBatch(w http.ResponseWriter, res *core.BatchResult) {
	status := http.StatusMultiStatus
	switch {
	case res.AllSucceeded():
		status = http.StatusCreated
	case res.NoneSucceeded():
		status = http.StatusBadRequest
	}
	writeJSONStatus(w, status, res)
}
