package models

import (
	"crypto/x509"
)

// HandlerContext is the per-request aggregate handed to validators and token
// builders. It is owned by exactly one request and never shared.
type HandlerContext struct {
	// Request is the effective authorization request. On token requests it is
	// the snapshot stored with the grant.
	Request      *AuthorizationRequest
	TokenRequest *TokenRequest
	Client       *Client
	// User is nil when the request is not authenticated.
	User       *User
	IssuerName string
	// Certificate is the TLS client certificate presented on this connection, if any.
	Certificate *x509.Certificate
	Response    *Response
}

// NewAuthorizationContext builds the context for an authorization request.
func NewAuthorizationContext(issuer string, client *Client, req *AuthorizationRequest, user *User) *HandlerContext {
	return &HandlerContext{
		Request:    req,
		Client:     client,
		User:       user,
		IssuerName: issuer,
		Response:   NewResponse(),
	}
}

// NewTokenContext builds the context for a token request.
func NewTokenContext(issuer string, client *Client, req *TokenRequest, snapshot *AuthorizationRequest, user *User) *HandlerContext {
	return &HandlerContext{
		Request:      snapshot,
		TokenRequest: req,
		Client:       client,
		User:         user,
		IssuerName:   issuer,
		Response:     NewResponse(),
	}
}

// AuthorizationCode prefers the code issued in-flight (code flow) and falls back
// to the one carried by the token request.
func (h *HandlerContext) AuthorizationCode() string {
	if h.Response != nil {
		if code, ok := h.Response.GetString(ResponseKeyCode); ok {
			return code
		}
	}
	if h.TokenRequest != nil {
		return h.TokenRequest.Code
	}
	return ""
}

// Subject returns the bound user's subject or "".
func (h *HandlerContext) Subject() string {
	if h.User == nil {
		return ""
	}
	return h.User.Subject
}
