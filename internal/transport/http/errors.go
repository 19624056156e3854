package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidIdentity     = "invalid_identity"
	codeSuspiciousActivity  = "suspicious_activity"
	codeRateLimitExceeded   = "rate_limit_exceeded"
	codeInvalidQuantity     = "invalid_quantity"
	codePassengerMismatch   = "passenger_mismatch"
	codeQuotaExceeded       = "quota_exceeded"
	codeInsufficientTickets = "insufficient_tickets"
	codePaymentFailed       = "payment_failed"
	codeTooManyRequests     = "too_many_requests"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
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
