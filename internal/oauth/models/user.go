package models

import (
	"time"

	pkgstrings "authserver/pkg/platform/strings"
)

// UserClaim is one asserted claim about the end user.
type UserClaim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ConsentGrant records that the user authorised a client for scopes and claims.
type ConsentGrant struct {
	ClientID  string    `json:"client_id"`
	Scopes    []string  `json:"scopes"`
	Claims    []string  `json:"claims,omitempty"`
	GrantedAt time.Time `json:"granted_at"`
}

// User is the authenticated end user bound to a request. A nil *User means the
// request is not authenticated.
type User struct {
	Subject            string         `json:"sub"`
	AuthenticationTime time.Time      `json:"auth_time"`
	AMR                []string       `json:"amr,omitempty"`
	ACR                string         `json:"acr,omitempty"`
	Claims             []UserClaim    `json:"claims,omitempty"`
	Consents           []ConsentGrant `json:"consents,omitempty"`
}

// HasConsent reports whether a recorded grant covers the client, every scope and
// every requested claim name.
func (u *User) HasConsent(clientID string, scopes []string, claims []RequestedClaim) bool {
	names := make([]string, 0, len(claims))
	for _, c := range claims {
		names = append(names, c.Name)
	}
	for _, grant := range u.Consents {
		if grant.ClientID != clientID {
			continue
		}
		if pkgstrings.ContainsAll(grant.Scopes, scopes) && pkgstrings.ContainsAll(grant.Claims, names) {
			return true
		}
	}
	return false
}

// ClaimValue returns the first value asserted for claim type t.
func (u *User) ClaimValue(t string) (string, bool) {
	for _, c := range u.Claims {
		if c.Type == t {
			return c.Value, true
		}
	}
	return "", false
}

// Satisfies reports whether the user holds a claim matching the requested claim's
// name and, when constrained, one of its allowed values.
func (u *User) Satisfies(requested RequestedClaim) bool {
	for _, c := range u.Claims {
		if c.Type != requested.Name {
			continue
		}
		if len(requested.Values) == 0 || pkgstrings.Contains(requested.Values, c.Value) {
			return true
		}
	}
	return false
}
