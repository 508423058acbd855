// Package domainerrors defines the coded error type shared by services and the
// transport layer. Codes double as OAuth 2.0 error codes where one exists, so a
// service error can be written to the wire without a translation table.
package domainerrors

import (
	"errors"
)

// Code is a stable, machine readable error identifier.
type Code string

const (
	// OAuth 2.0 / OpenID Connect error codes (RFC 6749 §4.1.2.1, OIDC Core §3.1.2.6).
	CodeInvalidRequest       Code = "invalid_request"
	CodeLoginRequired        Code = "login_required"
	CodeConsentRequired      Code = "consent_required"
	CodeInvalidGrant         Code = "invalid_grant"
	CodeInvalidClient        Code = "invalid_client"
	CodeInvalidScope         Code = "invalid_scope"
	CodeUnsupportedGrantType Code = "unsupported_grant_type"
	CodeAccessDenied         Code = "access_denied"
	CodeUnauthorizedClient   Code = "unauthorized_client"
	CodeUnsupportedResponse  Code = "unsupported_response_type"

	// Generic service codes.
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
)

// Error carries a code, a client-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Is reports whether the outermost coded error in the chain has the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// HasCode reports whether any coded error in the chain has the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of the outermost coded error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
