package models

import (
	"fmt"
	"time"

	"authserver/pkg/platform/sentinel"
)

// TokenType tags a granted token and selects its builder.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access_token"
	TokenTypeRefresh TokenType = "refresh_token"
	TokenTypeID      TokenType = "id_token"
)

// GrantedToken is the store record for an issued token.
type GrantedToken struct {
	Value             string                `json:"value"`
	Type              TokenType             `json:"type"`
	ClientID          string                `json:"client_id"`
	AuthorizationCode string                `json:"authorization_code,omitempty"`
	Subject           string                `json:"sub,omitempty"`
	Scopes            []string              `json:"scopes,omitempty"`
	IssuedAt          time.Time             `json:"issued_at"`
	ExpiresAt         time.Time             `json:"expires_at"`
	Request           *AuthorizationRequest `json:"request,omitempty"`
}

func (t *GrantedToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// ValidateForRefresh checks that a refresh token may be redeemed by clientID.
func (t *GrantedToken) ValidateForRefresh(clientID string, now time.Time) error {
	if t.Type != TokenTypeRefresh {
		return fmt.Errorf("token is not a refresh token: %w", sentinel.ErrInvalidState)
	}
	if t.ClientID != clientID {
		return fmt.Errorf("refresh token issued to another client: %w", sentinel.ErrMismatch)
	}
	if t.IsExpired(now) {
		return fmt.Errorf("refresh token expired: %w", sentinel.ErrExpired)
	}
	return nil
}
