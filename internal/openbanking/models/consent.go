package models

import (
	"fmt"
	"time"

	dErrors "authserver/pkg/domain-errors"
)

// ConsentStatus is the lifecycle state of an account access consent.
type ConsentStatus string

const (
	StatusAwaitingAuthorisation ConsentStatus = "AwaitingAuthorisation"
	StatusAuthorised            ConsentStatus = "Authorised"
	StatusRejected              ConsentStatus = "Rejected"
	StatusRevoked               ConsentStatus = "Revoked"
)

func (s ConsentStatus) IsValid() bool {
	switch s {
	case StatusAwaitingAuthorisation, StatusAuthorised, StatusRejected, StatusRevoked:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ConsentStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusRevoked
}

// CanTransitionTo encodes the consent state machine:
// AwaitingAuthorisation -> Authorised | Rejected, Authorised -> Revoked.
func (s ConsentStatus) CanTransitionTo(next ConsentStatus) bool {
	switch s {
	case StatusAwaitingAuthorisation:
		return next == StatusAuthorised || next == StatusRejected
	case StatusAuthorised:
		return next == StatusRevoked
	}
	return false
}

// Account access permissions (Open Banking Read/Write API).
const (
	PermissionReadAccountsBasic  = "ReadAccountsBasic"
	PermissionReadAccountsDetail = "ReadAccountsDetail"
	PermissionReadBalances       = "ReadBalances"
	PermissionReadTransactions   = "ReadTransactionsDetail"
)

// AccountAccessConsent is the consent object a third party provider creates
// before sending the user to authorize.
type AccountAccessConsent struct {
	ID          string        `json:"consent_id"`
	Status      ConsentStatus `json:"status"`
	ClientID    string        `json:"client_id"`
	Subject     string        `json:"subject,omitempty"`
	Permissions []string      `json:"permissions"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
}

// NewAccountAccessConsent creates a consent awaiting authorisation.
func NewAccountAccessConsent(id, clientID string, permissions []string, now time.Time) (*AccountAccessConsent, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent id cannot be empty")
	}
	if clientID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client id cannot be empty")
	}
	if len(permissions) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "permissions cannot be empty")
	}
	return &AccountAccessConsent{
		ID:          id,
		Status:      StatusAwaitingAuthorisation,
		ClientID:    clientID,
		Permissions: permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Transition moves the consent to next when the state machine allows it.
func (c *AccountAccessConsent) Transition(next ConsentStatus, now time.Time) error {
	if !c.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("consent cannot move from %s to %s", c.Status, next))
	}
	c.Status = next
	c.UpdatedAt = now
	return nil
}
