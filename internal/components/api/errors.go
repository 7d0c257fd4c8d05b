// Package api provides common HTTP API utilities including error handling.
package api

import (
	"encoding/json"
	"net/http"
)

// Deterministic reason codes for stable error classification.
// These codes should remain stable across versions for client compatibility.
const (
	// Rate limiting
	ReasonRateLimited = "rate_limited"

	// Request validation
	ReasonBadRequest      = "bad_request"
	ReasonMissingField    = "missing_field"
	ReasonInvalidField    = "invalid_field"
	ReasonInvalidIdentity = "invalid_identity"
	ReasonNotFound        = "not_found"

	// Discovery
	ReasonDiscoveryFault = "discovery_fault"

	// Server errors
	ReasonInternalError  = "internal_error"
	ReasonNotImplemented = "not_implemented"
)

// ErrorEnvelope is the standard error response format.
// All error responses should use this structure for consistency.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string `json:"code"`        // HTTP status text (e.g., "Bad Request")
	ReasonCode string `json:"reason_code"` // Deterministic reason code
	Message    string `json:"message"`     // Human-readable message
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a standardized JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	WriteJSON(w, statusCode, ErrorEnvelope{
		Error: ErrorDetail{
			Code:       http.StatusText(statusCode),
			ReasonCode: reasonCode,
			Message:    message,
		},
	})
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, message)
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusBadRequest, reasonCode, message)
}

// WriteTooManyRequests writes a 429 Too Many Requests error.
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, ReasonRateLimited, message)
}

// WriteInternalError writes a 500 Internal Server Error.
// Be careful not to leak sensitive information in the message.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ReasonInternalError, message)
}

// WriteNotImplemented writes a 501 Not Implemented error.
func WriteNotImplemented(w http.ResponseWriter, feature string) {
	WriteError(w, http.StatusNotImplemented, ReasonNotImplemented, feature+" not implemented yet")
}
