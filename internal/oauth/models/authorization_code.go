package models

import (
	"fmt"
	"time"

	"authserver/pkg/platform/sentinel"
)

// AuthorizationCodeTTL bounds how long an issued code may be redeemed.
const AuthorizationCodeTTL = 10 * time.Minute

// AuthorizationCodeRecord binds an issued code to its client, redirect URI, user
// and effective request.
type AuthorizationCodeRecord struct {
	Code        string                `json:"code"`
	ClientID    string                `json:"client_id"`
	RedirectURI string                `json:"redirect_uri"`
	User        *User                 `json:"user"`
	Request     *AuthorizationRequest `json:"request"`
	CreatedAt   time.Time             `json:"created_at"`
	ExpiresAt   time.Time             `json:"expires_at"`
	Used        bool                  `json:"used"`
}

// ValidateForConsume enforces single use, expiry and the client/redirect binding.
func (r *AuthorizationCodeRecord) ValidateForConsume(clientID, redirectURI string, now time.Time) error {
	if r.Used {
		return fmt.Errorf("authorization code already used: %w", sentinel.ErrAlreadyUsed)
	}
	if now.After(r.ExpiresAt) {
		return fmt.Errorf("authorization code expired: %w", sentinel.ErrExpired)
	}
	if r.ClientID != clientID {
		return fmt.Errorf("authorization code issued to another client: %w", sentinel.ErrMismatch)
	}
	// redirect_uri must match when it was part of the authorization request (RFC 6749 §4.1.3).
	if r.RedirectURI != "" && r.RedirectURI != redirectURI {
		return fmt.Errorf("redirect_uri does not match: %w", sentinel.ErrMismatch)
	}
	return nil
}

func (r *AuthorizationCodeRecord) MarkUsed() {
	r.Used = true
}
