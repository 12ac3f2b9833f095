package gateway

import (
	"encoding/json"
	"net/http"
)

// apiError is the uniform error document shape:
// {"error":{"message","type","code","details?"}}.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, typ, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Error: apiErrorBody{
		Message: msg,
		Type:    typ,
		Code:    code,
		Details: details,
	}})
}

func writeValidationError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "invalid_request_error", "validation_error", msg, nil)
}

func writeAuthMissing(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication_error", "auth_missing", "no credential supplied in Authorization or x-goog-api-key header", nil)
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "invalid_request_error", "not_found", "unknown path", nil)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method_not_allowed", "method not allowed", nil)
}

func writeNoCredentialAvailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "api_error", "no_credential_available", "every supplied credential is currently unavailable; retry after the cooldown window", nil)
}

// writeUpstreamError emits the uniform error document for an upstream
// failure already mapped to an HTTP status by the caller.
func writeUpstreamError(w http.ResponseWriter, status int, typ, code, msg string) {
	writeError(w, status, typ, code, msg, nil)
}
