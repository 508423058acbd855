// Package httputil writes coded errors as OAuth 2.0 error responses.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "authserver/pkg/domain-errors"
)

// ErrorResponse is the RFC 6749 §5.2 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidRequest, dErrors.CodeInvalidGrant, dErrors.CodeInvalidScope,
		dErrors.CodeUnsupportedGrantType, dErrors.CodeLoginRequired, dErrors.CodeConsentRequired,
		dErrors.CodeUnauthorizedClient, dErrors.CodeUnsupportedResponse,
		dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeInvalidClient, dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeAccessDenied, dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON OAuth error. Internal errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)
	body := ErrorResponse{Error: string(code)}
	if status != http.StatusInternalServerError {
		body.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, status, body)
}

// WriteJSON writes v with the given status and no-store caching, as token responses require.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
