// Package requestobject resolves signed authorization request objects passed by
// value (request) or by reference (request_uri).
package requestobject

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authserver/internal/oauth/models"
	dErrors "authserver/pkg/domain-errors"
)

const (
	DefaultFetchTimeout = 5 * time.Second
	maxObjectSize       = 64 << 10
)

// Parser verifies a JWT signed by a client.
type Parser interface {
	ParseClientObject(ctx context.Context, clientID, token string) (jwt.MapClaims, error)
}

type Resolver struct {
	parser  Parser
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Resolver)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func New(parser Parser, opts ...Option) *Resolver {
	r := &Resolver{
		parser:  parser,
		client:  http.DefaultClient,
		timeout: DefaultFetchTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the verified claims of the request object. The inline object
// wins when both request and request_uri are present. Nil claims mean the
// request carries no object.
func (r *Resolver) Resolve(ctx context.Context, client *models.Client, req *models.AuthorizationRequest) (map[string]any, error) {
	token := req.Request
	if token == "" {
		if req.RequestURI == "" {
			return nil, nil
		}
		fetched, err := r.fetch(ctx, req.RequestURI)
		if err != nil {
			r.logger.WarnContext(ctx, "request_uri fetch failed",
				"client_id", client.ClientID,
				"request_uri", req.RequestURI,
				"error", err,
			)
			return nil, err
		}
		token = fetched
	}
	claims, err := r.parser.ParseClientObject(ctx, client.ClientID, token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "request object signature is invalid")
	}
	return claims, nil
}

func (r *Resolver) fetch(ctx context.Context, rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil || !u.IsAbs() || (u.Scheme != "https" && u.Scheme != "http") {
		return "", dErrors.New(dErrors.CodeInvalidRequest, "request_uri is not a valid URL")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidRequest, "request_uri is not a valid URL")
	}
	httpReq.Header.Set("Accept", "application/oauth-authz-req+jwt, application/jwt")
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidRequest, "request_uri cannot be fetched")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", dErrors.New(dErrors.CodeInvalidRequest, fmt.Sprintf("request_uri returned status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize+1))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidRequest, "request_uri cannot be fetched")
	}
	if len(body) > maxObjectSize {
		return "", dErrors.New(dErrors.CodeInvalidRequest, "request object is too large")
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", dErrors.New(dErrors.CodeInvalidRequest, "request_uri returned an empty document")
	}
	return token, nil
}
