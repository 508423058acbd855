package models

import (
	"time"

	dErrors "authserver/pkg/domain-errors"
	pkgstrings "authserver/pkg/platform/strings"
)

// TokenEndpointAuthMethod is the client authentication method registered for the token endpoint.
type TokenEndpointAuthMethod string

const (
	AuthMethodClientSecretBasic       TokenEndpointAuthMethod = "client_secret_basic"
	AuthMethodClientSecretPost        TokenEndpointAuthMethod = "client_secret_post"
	AuthMethodTLSClientAuth           TokenEndpointAuthMethod = "tls_client_auth"
	AuthMethodSelfSignedTLSClientAuth TokenEndpointAuthMethod = "self_signed_tls_client_auth"
	AuthMethodNone                    TokenEndpointAuthMethod = "none"
)

// IsMutualTLS reports whether the method authenticates with a TLS client certificate (RFC 8705 §2).
func (m TokenEndpointAuthMethod) IsMutualTLS() bool {
	return m == AuthMethodTLSClientAuth || m == AuthMethodSelfSignedTLSClientAuth
}

// GrantType enumerates the token endpoint grants this server understands.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
)

func (g GrantType) IsValid() bool {
	return g == GrantAuthorizationCode || g == GrantRefreshToken
}

const (
	DefaultAccessTokenLifetime  = time.Hour
	DefaultRefreshTokenLifetime = 30 * 24 * time.Hour
)

// Client is an OAuth 2.0 client registration as seen by the authorization core.
// It is read-only for the duration of a request.
//
// Invariants:
//   - ClientID is non-empty
//   - AllowedScopes and RedirectURIs are non-empty
//   - token lifetimes are positive
type Client struct {
	ClientID                string                  `json:"client_id"`
	Name                    string                  `json:"client_name"`
	SecretHash              string                  `json:"-"`
	RedirectURIs            []string                `json:"redirect_uris"`
	AllowedScopes           []string                `json:"allowed_scopes"`
	AllowedGrants           []GrantType             `json:"grant_types"`
	TokenEndpointAuthMethod TokenEndpointAuthMethod `json:"token_endpoint_auth_method"`
	// TLSClientAuthSubjectDN is the expected certificate subject for tls_client_auth.
	TLSClientAuthSubjectDN string `json:"tls_client_auth_subject_dn,omitempty"`
	// CertificateThumbprints are the x5t#S256 values of the certificates a
	// self_signed_tls_client_auth client may present.
	CertificateThumbprints []string       `json:"certificate_thumbprints,omitempty"`
	AccessTokenLifetime    time.Duration  `json:"access_token_lifetime"`
	RefreshTokenLifetime   time.Duration  `json:"refresh_token_lifetime"`
	DefaultMaxAge          *time.Duration `json:"default_max_age,omitempty"`
	DefaultACRValues       []string       `json:"default_acr_values,omitempty"`
	// SigningAlgorithm selects the JWS algorithm for tokens issued to this client.
	// Empty means the issuer default.
	SigningAlgorithm string `json:"id_token_signed_response_alg,omitempty"`
}

// NewClient validates registration invariants and fills lifetime defaults.
func NewClient(
	clientID string,
	redirectURIs []string,
	allowedScopes []string,
	authMethod TokenEndpointAuthMethod,
) (*Client, error) {
	if clientID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client_id cannot be empty")
	}
	if len(redirectURIs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "redirect_uris cannot be empty")
	}
	if len(allowedScopes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "allowed_scopes cannot be empty")
	}
	if authMethod == "" {
		authMethod = AuthMethodClientSecretBasic
	}
	return &Client{
		ClientID:                clientID,
		RedirectURIs:            redirectURIs,
		AllowedScopes:           pkgstrings.DedupeAndTrim(allowedScopes),
		AllowedGrants:           []GrantType{GrantAuthorizationCode, GrantRefreshToken},
		TokenEndpointAuthMethod: authMethod,
		AccessTokenLifetime:     DefaultAccessTokenLifetime,
		RefreshTokenLifetime:    DefaultRefreshTokenLifetime,
	}, nil
}

// UnsupportedScopes returns the requested scopes the client may not use, in request order.
func (c *Client) UnsupportedScopes(requested []string) []string {
	return pkgstrings.Missing(requested, c.AllowedScopes)
}

func (c *Client) AllowsRedirectURI(uri string) bool {
	return pkgstrings.Contains(c.RedirectURIs, uri)
}

func (c *Client) AllowsGrant(grant GrantType) bool {
	for _, g := range c.AllowedGrants {
		if g == grant {
			return true
		}
	}
	return false
}

// UsesMutualTLS reports whether tokens for this client must be certificate-bound.
func (c *Client) UsesMutualTLS() bool {
	return c.TokenEndpointAuthMethod.IsMutualTLS()
}

func (c *Client) IsPublic() bool {
	return c.TokenEndpointAuthMethod == AuthMethodNone
}

// AccessTokenTTL returns the configured lifetime, falling back to the default.
func (c *Client) AccessTokenTTL() time.Duration {
	if c.AccessTokenLifetime <= 0 {
		return DefaultAccessTokenLifetime
	}
	return c.AccessTokenLifetime
}

func (c *Client) RefreshTokenTTL() time.Duration {
	if c.RefreshTokenLifetime <= 0 {
		return DefaultRefreshTokenLifetime
	}
	return c.RefreshTokenLifetime
}
