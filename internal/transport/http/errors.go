package http

import (
	"encoding/json"
	"net/http"

	"github.com/templeobijnr/easy-islanders/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeValidationFailed     = "validation_failed"
	codeInvalidID            = "invalid_id"
	codeInvalidPartySize     = "invalid_party_size"
	codeIdempotencyRequired  = "idempotency_key_required"
	codeIdempotencyConflict  = "idempotency_conflict"
	codeResourceUnavailable  = "resource_unavailable"
	codeHoldExpired          = "hold_expired"
	codeHoldReleased         = "hold_released"
	codeAlreadyConfirmed     = "already_confirmed"
	codeUnauthorized         = "unauthorized"
	codeMaxAttemptsExceeded  = "max_attempts_exceeded"
	codeRetryableSideEffect  = "retryable_side_effect_failure"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps ledger errors shared by several handlers. Errors a
// handler treats specially should be handled before calling this.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case err == domain.ErrIdempotencyKeyRequired:
		writeError(w, http.StatusBadRequest, codeIdempotencyRequired, err.Error())
	case err == domain.ErrInvalidID:
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case err == domain.ErrInvalidPartySize:
		writeError(w, http.StatusBadRequest, codeInvalidPartySize, err.Error())
	case err == domain.ErrHoldNotFound:
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case err == domain.ErrResourceUnavailable:
		writeError(w, http.StatusConflict, codeResourceUnavailable, err.Error())
	case err == domain.ErrHoldExpired:
		writeError(w, http.StatusConflict, codeHoldExpired, err.Error())
	case err == domain.ErrHoldReleased:
		writeError(w, http.StatusConflict, codeHoldReleased, err.Error())
	case err == domain.ErrAlreadyConfirmed:
		writeError(w, http.StatusConflict, codeAlreadyConfirmed, err.Error())
	case err == domain.ErrIdempotencyConflict:
		writeError(w, http.StatusConflict, codeIdempotencyConflict, err.Error())
	case err == domain.ErrMaxAttemptsExceeded:
		writeError(w, http.StatusConflict, codeMaxAttemptsExceeded, err.Error())
	case err == domain.ErrUnauthorized:
		writeError(w, http.StatusForbidden, codeUnauthorized, err.Error())
	case domain.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, codeRetryableSideEffect, "temporary failure, retry with the same idempotency key")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
