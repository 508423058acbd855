package models

import (
	"encoding/json"
	"strings"
	"time"

	dErrors "authserver/pkg/domain-errors"
	pkgstrings "authserver/pkg/platform/strings"
)

// Prompt is the OIDC prompt directive.
type Prompt string

const (
	PromptUnset         Prompt = ""
	PromptNone          Prompt = "none"
	PromptLogin         Prompt = "login"
	PromptConsent       Prompt = "consent"
	PromptSelectAccount Prompt = "select_account"
)

func (p Prompt) IsValid() bool {
	switch p {
	case PromptUnset, PromptNone, PromptLogin, PromptConsent, PromptSelectAccount:
		return true
	}
	return false
}

// ResponseType is one member of the response_type parameter.
type ResponseType string

const (
	ResponseTypeCode    ResponseType = "code"
	ResponseTypeToken   ResponseType = "token"
	ResponseTypeIDToken ResponseType = "id_token"
)

// AuthorizationRequest is the parsed authorization request. After request object
// resolution it holds the effective parameters.
type AuthorizationRequest struct {
	ClientID      string           `json:"client_id"`
	Scopes        []string         `json:"scope"`
	ResponseTypes []ResponseType   `json:"response_type"`
	RedirectURI   string           `json:"redirect_uri"`
	State         string           `json:"state,omitempty"`
	Nonce         string           `json:"nonce,omitempty"`
	Claims        []RequestedClaim `json:"claims,omitempty"`
	ACRValues     []string         `json:"acr_values,omitempty"`
	Prompt        Prompt           `json:"prompt,omitempty"`
	MaxAge        *time.Duration   `json:"max_age,omitempty"`
	IDTokenHint   string           `json:"id_token_hint,omitempty"`
	// Request is an inline request object (by value).
	Request string `json:"request,omitempty"`
	// RequestURI references a request object (by reference).
	RequestURI string `json:"request_uri,omitempty"`
}

// Normalize trims parameters and dedupes list values, keeping first-seen order.
func (r *AuthorizationRequest) Normalize() {
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.RedirectURI = strings.TrimSpace(r.RedirectURI)
	r.Scopes = pkgstrings.DedupeAndTrim(r.Scopes)
	r.ACRValues = pkgstrings.DedupeAndTrim(r.ACRValues)
	seen := make(map[ResponseType]struct{}, len(r.ResponseTypes))
	types := r.ResponseTypes[:0]
	for _, rt := range r.ResponseTypes {
		rt = ResponseType(strings.TrimSpace(string(rt)))
		if rt == "" {
			continue
		}
		if _, ok := seen[rt]; ok {
			continue
		}
		seen[rt] = struct{}{}
		types = append(types, rt)
	}
	r.ResponseTypes = types
}

func (r *AuthorizationRequest) HasResponseType(rt ResponseType) bool {
	for _, t := range r.ResponseTypes {
		if t == rt {
			return true
		}
	}
	return false
}

func (r *AuthorizationRequest) HasScope(scope string) bool {
	return pkgstrings.Contains(r.Scopes, scope)
}

// FindClaim returns the first requested claim with the given name, any target.
func (r *AuthorizationRequest) FindClaim(name string) (RequestedClaim, bool) {
	for _, c := range r.Claims {
		if c.Name == name {
			return c, true
		}
	}
	return RequestedClaim{}, false
}

// ClaimsFor returns the requested claims for one target.
func (r *AuthorizationRequest) ClaimsFor(target ClaimTarget) []RequestedClaim {
	var out []RequestedClaim
	for _, c := range r.Claims {
		if c.Target == target {
			out = append(out, c)
		}
	}
	return out
}

// ClaimNames lists requested claim names, deduplicated.
func (r *AuthorizationRequest) ClaimNames() []string {
	names := make([]string, 0, len(r.Claims))
	for _, c := range r.Claims {
		names = append(names, c.Name)
	}
	return pkgstrings.DedupeAndTrim(names)
}

// Clone returns a deep copy suitable for storing as a grant snapshot.
func (r *AuthorizationRequest) Clone() *AuthorizationRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Scopes = append([]string(nil), r.Scopes...)
	c.ResponseTypes = append([]ResponseType(nil), r.ResponseTypes...)
	c.ACRValues = append([]string(nil), r.ACRValues...)
	c.Claims = make([]RequestedClaim, len(r.Claims))
	for i, cl := range r.Claims {
		cl.Values = append([]string(nil), cl.Values...)
		c.Claims[i] = cl
	}
	if r.MaxAge != nil {
		v := *r.MaxAge
		c.MaxAge = &v
	}
	return &c
}

// MergeRequestObject applies the claims of a verified request object. Parameters
// inside the request object supersede query parameters (OIDC Core §6.3.3).
func (r *AuthorizationRequest) MergeRequestObject(obj map[string]any) error {
	if v, ok := stringClaim(obj, "client_id"); ok && v != r.ClientID {
		return dErrors.New(dErrors.CodeInvalidRequest, "request object client_id does not match the request")
	}
	if v, ok := stringClaim(obj, "scope"); ok {
		r.Scopes = pkgstrings.SplitSpaceDelimited(v)
	}
	if v, ok := stringClaim(obj, "response_type"); ok {
		r.ResponseTypes = nil
		for _, rt := range pkgstrings.SplitSpaceDelimited(v) {
			r.ResponseTypes = append(r.ResponseTypes, ResponseType(rt))
		}
	}
	if v, ok := stringClaim(obj, "redirect_uri"); ok {
		r.RedirectURI = v
	}
	if v, ok := stringClaim(obj, "state"); ok {
		r.State = v
	}
	if v, ok := stringClaim(obj, "nonce"); ok {
		r.Nonce = v
	}
	if v, ok := stringClaim(obj, "prompt"); ok {
		p := Prompt(v)
		if !p.IsValid() {
			return dErrors.New(dErrors.CodeInvalidRequest, "request object prompt is not supported")
		}
		r.Prompt = p
	}
	if v, ok := stringClaim(obj, "acr_values"); ok {
		r.ACRValues = pkgstrings.SplitSpaceDelimited(v)
	}
	if v, ok := stringClaim(obj, "id_token_hint"); ok {
		r.IDTokenHint = v
	}
	if raw, ok := obj["max_age"]; ok {
		seconds, ok := raw.(float64)
		if !ok || seconds < 0 {
			return dErrors.New(dErrors.CodeInvalidRequest, "request object max_age must be a non-negative number")
		}
		d := time.Duration(seconds) * time.Second
		r.MaxAge = &d
	}
	if raw, ok := obj["claims"]; ok {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidRequest, "request object claims are malformed")
		}
		claims, err := ParseClaimsParameter(encoded)
		if err != nil {
			return err
		}
		r.Claims = claims
	}
	r.Normalize()
	return nil
}

func stringClaim(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key].(string)
	return v, ok
}

// TokenRequest is the parsed token endpoint request.
type TokenRequest struct {
	GrantType    GrantType `json:"grant_type"`
	ClientID     string    `json:"client_id"`
	Code         string    `json:"code,omitempty"`
	RedirectURI  string    `json:"redirect_uri,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}

func (r *TokenRequest) Normalize() {
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.Code = strings.TrimSpace(r.Code)
	r.RedirectURI = strings.TrimSpace(r.RedirectURI)
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
}

func (r *TokenRequest) Validate() error {
	switch r.GrantType {
	case GrantAuthorizationCode:
		if r.Code == "" {
			return dErrors.New(dErrors.CodeInvalidRequest, "missing parameter code")
		}
	case GrantRefreshToken:
		if r.RefreshToken == "" {
			return dErrors.New(dErrors.CodeInvalidRequest, "missing parameter refresh_token")
		}
	case "":
		return dErrors.New(dErrors.CodeInvalidRequest, "missing parameter grant_type")
	default:
		return dErrors.New(dErrors.CodeUnsupportedGrantType, "unsupported grant_type")
	}
	return nil
}
