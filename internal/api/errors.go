package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sensorgrid/sensorgrid-core/internal/ledger"
	"github.com/sensorgrid/sensorgrid-core/internal/registry"
	"github.com/sensorgrid/sensorgrid-core/internal/wallet"
)

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // Headers already sent
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "already_registered", err.Error())
	case errors.Is(err, registry.ErrNotRegistered):
		writeError(w, http.StatusNotFound, "not_registered", err.Error())
	case errors.Is(err, registry.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, registry.ErrInvalidDevice),
		errors.Is(err, registry.ErrInvalidTerms),
		errors.Is(err, registry.ErrNoChanges):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ledger.ErrInsufficientPayment):
		writeError(w, http.StatusPaymentRequired, "insufficient_payment", err.Error())
	case errors.Is(err, ledger.ErrForwardingFailed):
		writeError(w, http.StatusPaymentRequired, "forwarding_failed", err.Error())
	case errors.Is(err, ledger.ErrDeviceInactive):
		writeError(w, http.StatusConflict, "device_inactive", err.Error())
	case errors.Is(err, ledger.ErrNoEntry):
		writeError(w, http.StatusNotFound, "no_access_entry", err.Error())
	case errors.Is(err, wallet.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
