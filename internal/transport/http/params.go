package httptransport

import (
	"crypto/x509"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"authserver/internal/oauth/clientauth"
	"authserver/internal/oauth/models"
	dErrors "authserver/pkg/domain-errors"
	pkgstrings "authserver/pkg/platform/strings"
)

// parseAuthorizationRequest reads the authorization parameters from the query
// (GET) or the form body (POST).
func parseAuthorizationRequest(form url.Values) (*models.AuthorizationRequest, error) {
	req := &models.AuthorizationRequest{
		ClientID:    form.Get("client_id"),
		Scopes:      pkgstrings.SplitSpaceDelimited(form.Get("scope")),
		RedirectURI: form.Get("redirect_uri"),
		State:       form.Get("state"),
		Nonce:       form.Get("nonce"),
		ACRValues:   pkgstrings.SplitSpaceDelimited(form.Get("acr_values")),
		Prompt:      models.Prompt(form.Get("prompt")),
		IDTokenHint: form.Get("id_token_hint"),
		Request:     form.Get("request"),
		RequestURI:  form.Get("request_uri"),
	}
	for _, rt := range pkgstrings.SplitSpaceDelimited(form.Get("response_type")) {
		req.ResponseTypes = append(req.ResponseTypes, models.ResponseType(rt))
	}
	if !req.Prompt.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "prompt "+string(req.Prompt)+" is not supported")
	}
	if raw := form.Get("max_age"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds < 0 {
			return nil, dErrors.New(dErrors.CodeInvalidRequest, "max_age must be a non-negative integer")
		}
		maxAge := time.Duration(seconds) * time.Second
		req.MaxAge = &maxAge
	}
	if raw := form.Get("claims"); raw != "" {
		claims, err := models.ParseClaimsParameter([]byte(raw))
		if err != nil {
			return nil, err
		}
		req.Claims = claims
	}
	return req, nil
}

func parseTokenRequest(form url.Values) *models.TokenRequest {
	return &models.TokenRequest{
		GrantType:    models.GrantType(form.Get("grant_type")),
		ClientID:     form.Get("client_id"),
		Code:         form.Get("code"),
		RedirectURI:  form.Get("redirect_uri"),
		RefreshToken: form.Get("refresh_token"),
	}
}

// clientCredentials prefers HTTP Basic (RFC 6749 §2.3.1) over form parameters.
func clientCredentials(r *http.Request) (clientauth.Credentials, error) {
	creds := clientauth.Credentials{Certificate: peerCertificate(r)}
	if id, secret, ok := r.BasicAuth(); ok {
		var err error
		if creds.ClientID, err = url.QueryUnescape(id); err != nil {
			return creds, dErrors.New(dErrors.CodeInvalidClient, "malformed client credentials")
		}
		if creds.ClientSecret, err = url.QueryUnescape(secret); err != nil {
			return creds, dErrors.New(dErrors.CodeInvalidClient, "malformed client credentials")
		}
		creds.BasicAuth = true
		return creds, nil
	}
	creds.ClientID = r.PostForm.Get("client_id")
	creds.ClientSecret = r.PostForm.Get("client_secret")
	return creds, nil
}

func peerCertificate(r *http.Request) *x509.Certificate {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return nil
	}
	return r.TLS.PeerCertificates[0]
}
