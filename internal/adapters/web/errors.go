package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"warehouse-admin/internal/core"
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

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps typed domain errors onto HTTP statuses and stable
// codes. Anything unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr  *core.ValidationError
		notFoundErr    *core.NotFoundError
		stockErr       *core.InsufficientStockError
		overReceiptErr *core.OverReceiptError
		receivedErr    *core.AlreadyReceivedError
		transitionErr  *core.InvalidTransitionError
		blockedErr     *core.BlockedByPendingOrdersError
		duplicateErr   *core.DuplicateOperationError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, r, validationErr.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		writeError(w, r, notFoundErr.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &stockErr):
		writeError(w, r, stockErr.Error(), "INSUFFICIENT_STOCK", http.StatusConflict)
	case errors.As(err, &overReceiptErr):
		writeError(w, r, overReceiptErr.Error(), "OVER_RECEIPT", http.StatusConflict)
	case errors.As(err, &receivedErr):
		writeError(w, r, receivedErr.Error(), "ALREADY_RECEIVED", http.StatusConflict)
	case errors.As(err, &transitionErr):
		writeError(w, r, transitionErr.Error(), "INVALID_TRANSITION", http.StatusConflict)
	case errors.As(err, &blockedErr):
		writeError(w, r, blockedErr.Error(), "BLOCKED_BY_PENDING_ORDERS", http.StatusConflict)
	case errors.As(err, &duplicateErr):
		writeError(w, r, duplicateErr.Error(), "DUPLICATE_OPERATION", http.StatusConflict)
	default:
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
