package validator

import (
	dErrors "authserver/pkg/domain-errors"
)

// Kind tags the outcome of validating an authorization request.
type Kind string

const (
	KindSuccess               Kind = "success"
	KindNeedsLogin            Kind = "needs_login"
	KindNeedsConsent          Kind = "needs_consent"
	KindNeedsAccountSelection Kind = "needs_account_selection"
	KindFailed                Kind = "failed"
)

// ConsentKind distinguishes the generic consent screen from a profile-specific
// user consent view.
type ConsentKind string

const (
	ConsentGeneric      ConsentKind = "generic"
	ConsentUserRedirect ConsentKind = "user_redirect"
)

// Result is the tagged outcome returned by Validate. Only the fields relevant to
// Kind are set. Control signals (login, consent, account selection) are results,
// never errors.
type Result struct {
	Kind Kind

	// AMR is the authentication method hint for KindNeedsLogin.
	AMR string

	// Consent, View and Action describe KindNeedsConsent.
	Consent ConsentKind
	View    string
	Action  string

	// Code and Message describe KindFailed.
	Code    dErrors.Code
	Message string
}

func Success() *Result {
	return &Result{Kind: KindSuccess}
}

func NeedsLogin(amr string) *Result {
	return &Result{Kind: KindNeedsLogin, AMR: amr}
}

// NeedsConsent signals the generic consent screen.
func NeedsConsent() *Result {
	return &Result{Kind: KindNeedsConsent, Consent: ConsentGeneric}
}

// NeedsUserConsent signals a redirect to a specific consent view.
func NeedsUserConsent(view, action string) *Result {
	return &Result{Kind: KindNeedsConsent, Consent: ConsentUserRedirect, View: view, Action: action}
}

func NeedsAccountSelection() *Result {
	return &Result{Kind: KindNeedsAccountSelection}
}

func Failed(code dErrors.Code, message string) *Result {
	return &Result{Kind: KindFailed, Code: code, Message: message}
}

// IsTerminal reports whether the result ends the authorization request without
// issuing a code.
func (r *Result) IsTerminal() bool {
	return r.Kind != KindSuccess
}

// Err converts a failed result into a coded error for callers that propagate errors.
func (r *Result) Err() error {
	if r.Kind != KindFailed {
		return nil
	}
	return dErrors.New(r.Code, r.Message)
}
