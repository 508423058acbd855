// Package clientauth authenticates clients at the token endpoint using the
// method each client registered (RFC 6749 §2.3, RFC 8705 §2).
package clientauth

import (
	"context"
	"crypto/subtle"
	"crypto/x509"
	"errors"
	"log/slog"

	"authserver/internal/oauth/models"
	"authserver/internal/oauth/token"
	dErrors "authserver/pkg/domain-errors"
	"authserver/pkg/platform/sentinel"
	"authserver/pkg/requestcontext"
)

const msgAuthenticationFailed = "client authentication failed"

// ClientResolver looks up client registrations.
type ClientResolver interface {
	Resolve(ctx context.Context, clientID string) (*models.Client, error)
}

// Credentials is what the transport extracted from the token request.
type Credentials struct {
	ClientID     string
	ClientSecret string
	// BasicAuth is true when the credentials came from the Authorization header.
	BasicAuth   bool
	Certificate *x509.Certificate
}

type Authenticator struct {
	clients ClientResolver
	logger  *slog.Logger
}

type Option func(*Authenticator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) { a.logger = logger }
}

func New(clients ClientResolver, opts ...Option) *Authenticator {
	a := &Authenticator{clients: clients, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate resolves the client and checks the presented credentials against
// its registered method. Every rejection is invalid_client with the same message
// so callers cannot tell which part failed.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*models.Client, error) {
	if creds.ClientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidClient, msgAuthenticationFailed)
	}
	client, err := a.clients.Resolve(ctx, creds.ClientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, a.reject(ctx, creds.ClientID, "unknown client")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve client")
	}

	switch client.TokenEndpointAuthMethod {
	case models.AuthMethodNone:
		if creds.ClientSecret != "" {
			return nil, a.reject(ctx, client.ClientID, "public client presented a secret")
		}
	case models.AuthMethodClientSecretBasic, models.AuthMethodClientSecretPost:
		wantBasic := client.TokenEndpointAuthMethod == models.AuthMethodClientSecretBasic
		if creds.BasicAuth != wantBasic || creds.ClientSecret == "" {
			return nil, a.reject(ctx, client.ClientID, "secret presented with the wrong method")
		}
		if err := VerifySecret(creds.ClientSecret, client.SecretHash); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvalidClient) {
				return nil, a.reject(ctx, client.ClientID, "secret mismatch")
			}
			return nil, err
		}
	case models.AuthMethodTLSClientAuth:
		if creds.Certificate == nil {
			return nil, a.reject(ctx, client.ClientID, "missing client certificate")
		}
		got := creds.Certificate.Subject.String()
		if subtle.ConstantTimeCompare([]byte(got), []byte(client.TLSClientAuthSubjectDN)) != 1 {
			return nil, a.reject(ctx, client.ClientID, "certificate subject mismatch")
		}
	case models.AuthMethodSelfSignedTLSClientAuth:
		if creds.Certificate == nil {
			return nil, a.reject(ctx, client.ClientID, "missing client certificate")
		}
		if !registeredThumbprint(client, token.Thumbprint(creds.Certificate.Raw)) {
			return nil, a.reject(ctx, client.ClientID, "certificate not registered")
		}
	default:
		return nil, a.reject(ctx, client.ClientID, "unsupported authentication method")
	}
	return client, nil
}

// registeredThumbprint compares against every registered value so the time
// taken does not depend on which one matched.
func registeredThumbprint(client *models.Client, presented string) bool {
	matched := 0
	for _, registered := range client.CertificateThumbprints {
		matched |= subtle.ConstantTimeCompare([]byte(presented), []byte(registered))
	}
	return matched == 1
}

func (a *Authenticator) reject(ctx context.Context, clientID, reason string) error {
	a.logger.InfoContext(ctx, "client authentication rejected",
		"client_id", clientID,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.New(dErrors.CodeInvalidClient, msgAuthenticationFailed)
}
