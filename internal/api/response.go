package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nucleus/provision-core/internal/identity"
	"github.com/nucleus/provision-core/internal/migration"
	"github.com/nucleus/provision-core/internal/verify"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Existing  any    `json:"existing,omitempty"`
	Record    any    `json:"record,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message, RequestID: requestID(r)})
}

func mapError(err error) (int, string) {
	var conflict *identity.ConflictError
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, verify.ErrNoState):
		return http.StatusNotFound, "no_state"
	case errors.Is(err, identity.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, verify.ErrNotIntrospectable), errors.Is(err, verify.ErrNoRecordBackend):
		return http.StatusUnprocessableEntity, "unsupported_backend"
	case errors.Is(err, migration.ErrUnknownTable), errors.Is(err, errInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	resp := ErrorResponse{Code: code, Message: err.Error(), RequestID: requestID(r)}
	var conflict *identity.ConflictError
	if errors.As(err, &conflict) {
		resp.Existing = conflict.Existing
	}
	writeJSON(w, status, resp)
}
