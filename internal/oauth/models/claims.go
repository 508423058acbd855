package models

import (
	"encoding/json"
	"sort"

	dErrors "authserver/pkg/domain-errors"
)

// ClaimTarget says where a requested claim should be returned (OIDC Core §5.5).
type ClaimTarget string

const (
	ClaimTargetIDToken  ClaimTarget = "id_token"
	ClaimTargetUserInfo ClaimTarget = "userinfo"
)

// RequestedClaim is one entry of the "claims" request parameter.
type RequestedClaim struct {
	Name      string      `json:"name"`
	Target    ClaimTarget `json:"target"`
	Essential bool        `json:"essential,omitempty"`
	// Values restricts acceptable values; empty means unconstrained.
	Values []string `json:"values,omitempty"`
}

// Standard OIDC user claims (OIDC Core §5.1).
const (
	ClaimSubject             = "sub"
	ClaimName                = "name"
	ClaimGivenName           = "given_name"
	ClaimFamilyName          = "family_name"
	ClaimMiddleName          = "middle_name"
	ClaimNickname            = "nickname"
	ClaimPreferredUsername   = "preferred_username"
	ClaimProfile             = "profile"
	ClaimPicture             = "picture"
	ClaimWebsite             = "website"
	ClaimEmail               = "email"
	ClaimEmailVerified       = "email_verified"
	ClaimGender              = "gender"
	ClaimBirthdate           = "birthdate"
	ClaimZoneinfo            = "zoneinfo"
	ClaimLocale              = "locale"
	ClaimPhoneNumber         = "phone_number"
	ClaimPhoneNumberVerified = "phone_number_verified"
	ClaimAddress             = "address"
	ClaimUpdatedAt           = "updated_at"

	ClaimACR = "acr"
)

var userClaims = map[string]struct{}{
	ClaimSubject: {}, ClaimName: {}, ClaimGivenName: {}, ClaimFamilyName: {}, ClaimMiddleName: {},
	ClaimNickname: {}, ClaimPreferredUsername: {}, ClaimProfile: {}, ClaimPicture: {}, ClaimWebsite: {},
	ClaimEmail: {}, ClaimEmailVerified: {}, ClaimGender: {}, ClaimBirthdate: {}, ClaimZoneinfo: {},
	ClaimLocale: {}, ClaimPhoneNumber: {}, ClaimPhoneNumberVerified: {}, ClaimAddress: {}, ClaimUpdatedAt: {},
}

// IsUserClaim reports whether name is a recognised end-user claim.
func IsUserClaim(name string) bool {
	_, ok := userClaims[name]
	return ok
}

// ScopeOpenID marks an OpenID Connect request.
const ScopeOpenID = "openid"

// scopeClaims maps the standard scopes to the claims they release (OIDC Core §5.4).
var scopeClaims = map[string][]string{
	"profile": {ClaimName, ClaimFamilyName, ClaimGivenName, ClaimMiddleName, ClaimNickname,
		ClaimPreferredUsername, ClaimProfile, ClaimPicture, ClaimWebsite, ClaimGender,
		ClaimBirthdate, ClaimZoneinfo, ClaimLocale, ClaimUpdatedAt},
	"email":   {ClaimEmail, ClaimEmailVerified},
	"address": {ClaimAddress},
	"phone":   {ClaimPhoneNumber, ClaimPhoneNumberVerified},
}

// ClaimsForScopes returns the user claims released by the given scopes.
func ClaimsForScopes(scopes []string) []string {
	var out []string
	for _, s := range scopes {
		out = append(out, scopeClaims[s]...)
	}
	return out
}

type claimSpec struct {
	Essential bool     `json:"essential"`
	Value     *string  `json:"value"`
	Values    []string `json:"values"`
}

// ParseClaimsParameter decodes the JSON "claims" request parameter. Claims are
// returned sorted by target then name so parsing is deterministic.
func ParseClaimsParameter(raw []byte) ([]RequestedClaim, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc map[ClaimTarget]map[string]*claimSpec
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "claims parameter is not valid JSON")
	}
	var out []RequestedClaim
	for _, target := range []ClaimTarget{ClaimTargetIDToken, ClaimTargetUserInfo} {
		specs := doc[target]
		names := make([]string, 0, len(specs))
		for name := range specs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := RequestedClaim{Name: name, Target: target}
			if spec := specs[name]; spec != nil {
				c.Essential = spec.Essential
				if spec.Value != nil {
					c.Values = []string{*spec.Value}
				}
				c.Values = append(c.Values, spec.Values...)
			}
			out = append(out, c)
		}
	}
	return out, nil
}
