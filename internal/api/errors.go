// Package api implements the JSON HTTP surface: login sessions, the refresh
// endpoints and the admin endpoints.
package api

import (
	"encoding/json"
	"net/http"
)

// Reason codes are stable across versions; clients match on them.
const (
	ReasonUnauthenticated    = "unauthenticated"
	ReasonUnauthorized       = "unauthorized"
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonRateLimited        = "rate_limited"
	ReasonBadRequest         = "bad_request"
	ReasonInvalidField       = "invalid_field"
	ReasonNotFound           = "not_found"
	ReasonNoRegistryIdentity = "no_registry_identity"
	ReasonRegistryError      = "registry_error"
	ReasonInternalError      = "internal_error"
)

// ErrorEnvelope is the error response format.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string `json:"code"`        // HTTP status text
	ReasonCode string `json:"reason_code"` // stable reason code
	Message    string `json:"message"`
}

// WriteError writes a JSON error envelope.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	writeJSON(w, statusCode, ErrorEnvelope{
		Error: ErrorDetail{
			Code:       http.StatusText(statusCode),
			ReasonCode: reasonCode,
			Message:    message,
		},
	})
}

// WriteUnauthorized writes a 401 Unauthorized error.
func WriteUnauthorized(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusUnauthorized, reasonCode, message)
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusBadRequest, reasonCode, message)
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, message)
}

// WriteTooManyRequests writes a 429 Too Many Requests error.
func WriteTooManyRequests(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusTooManyRequests, ReasonRateLimited, "too many requests, please try again later")
}

// WriteInternalError writes a 500 Internal Server Error.
// The message goes to the client; never pass raw error text.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ReasonInternalError, message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
