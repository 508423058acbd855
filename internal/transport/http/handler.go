// Package httptransport exposes the authorization and token endpoints.
package httptransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"authserver/internal/oauth/clientauth"
	"authserver/internal/oauth/models"
	"authserver/internal/oauth/service"
	"authserver/internal/oauth/validator"
	dErrors "authserver/pkg/domain-errors"
	"authserver/pkg/platform/httputil"
	"authserver/pkg/platform/sentinel"
	"authserver/pkg/requestcontext"
)

type AuthorizationService interface {
	Authorize(ctx context.Context, in service.AuthorizeInput) (*service.AuthorizeOutput, error)
	Token(ctx context.Context, in service.TokenInput) (*models.Response, error)
}

type ClientAuthenticator interface {
	Authenticate(ctx context.Context, creds clientauth.Credentials) (*models.Client, error)
}

// SessionProvider returns the user authenticated on this browser session, or
// nil when there is none.
type SessionProvider interface {
	CurrentUser(r *http.Request) (*models.User, error)
}

// Paths are the interaction endpoints the user agent is sent to.
type Paths struct {
	Login         string
	Consent       string
	SelectAccount string
}

func DefaultPaths() Paths {
	return Paths{Login: "/login", Consent: "/consent", SelectAccount: "/select-account"}
}

type Handler struct {
	svc      AuthorizationService
	clients  ClientAuthenticator
	sessions SessionProvider
	paths    Paths
	logger   *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func WithPaths(p Paths) Option {
	return func(h *Handler) { h.paths = p }
}

func NewHandler(svc AuthorizationService, clients ClientAuthenticator, sessions SessionProvider, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		clients:  clients,
		sessions: sessions,
		paths:    DefaultPaths(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/authorize", h.HandleAuthorize)
	r.Post("/authorize", h.HandleAuthorize)
	r.Post("/token", h.HandleToken)
}

// HandleAuthorize handles GET|POST /authorize.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "malformed request"))
		return
	}
	req, err := parseAuthorizationRequest(r.Form)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.sessions.CurrentUser(r)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load session",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "session unavailable"))
		return
	}

	out, err := h.svc.Authorize(ctx, service.AuthorizeInput{Request: req, User: user, Certificate: peerCertificate(r)})
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "authorization failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	result := out.Result
	switch result.Kind {
	case validator.KindSuccess:
		http.Redirect(w, r, successRedirect(out), http.StatusFound)
	case validator.KindNeedsLogin:
		query := url.Values{"return_to": {returnTo(r)}}
		if result.AMR != "" {
			query.Set("amr", result.AMR)
		}
		http.Redirect(w, r, h.paths.Login+"?"+query.Encode(), http.StatusFound)
	case validator.KindNeedsConsent:
		target := h.paths.Consent
		if result.Consent == validator.ConsentUserRedirect {
			target = "/" + url.PathEscape(result.View) + "/" + url.PathEscape(result.Action)
		}
		query := url.Values{"return_to": {returnTo(r)}, "client_id": {out.Client.ClientID}}
		http.Redirect(w, r, target+"?"+query.Encode(), http.StatusFound)
	case validator.KindNeedsAccountSelection:
		query := url.Values{"return_to": {returnTo(r)}}
		http.Redirect(w, r, h.paths.SelectAccount+"?"+query.Encode(), http.StatusFound)
	default:
		httputil.WriteError(w, result.Err())
	}
}

// HandleToken handles POST /token.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, creds, err := h.token(r)
	if err == nil {
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}

	if dErrors.Is(err, dErrors.CodeInvalidClient) && creds.BasicAuth {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "token request failed",
			"error", err,
			"client_id", creds.ClientID,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) token(r *http.Request) (*models.Response, clientauth.Credentials, error) {
	if err := r.ParseForm(); err != nil {
		return nil, clientauth.Credentials{}, dErrors.New(dErrors.CodeInvalidRequest, "malformed request")
	}
	creds, err := clientCredentials(r)
	if err != nil {
		return nil, creds, err
	}
	client, err := h.clients.Authenticate(r.Context(), creds)
	if err != nil {
		return nil, creds, err
	}
	resp, err := h.svc.Token(r.Context(), service.TokenInput{
		Client:      client,
		Request:     parseTokenRequest(r.PostForm),
		Certificate: creds.Certificate,
	})
	return resp, creds, err
}

// successRedirect encodes the response in the query for the code flow and in
// the fragment when tokens are returned from the authorization endpoint.
func successRedirect(out *service.AuthorizeOutput) string {
	values := url.Values{}
	for _, key := range out.Response.Keys() {
		v, _ := out.Response.Get(key)
		values.Set(key, fmt.Sprint(v))
	}
	target, err := url.Parse(out.RedirectURI)
	if err != nil {
		return out.RedirectURI
	}
	if out.Request.HasResponseType(models.ResponseTypeToken) || out.Request.HasResponseType(models.ResponseTypeIDToken) {
		target.Fragment = values.Encode()
		return target.String()
	}
	query := target.Query()
	for k, vs := range values {
		query[k] = vs
	}
	target.RawQuery = query.Encode()
	return target.String()
}

// returnTo rebuilds the authorization URL so the interaction UI can resume it.
func returnTo(r *http.Request) string {
	return r.URL.Path + "?" + r.Form.Encode()
}

// TrustedHeaderSessions reads the authenticated subject from a header set by an
// authenticating reverse proxy. It must only be used behind such a proxy.
//
// AuthTimeHeader, when set, carries the Unix time the proxy authenticated the
// user. Without it a user with no recorded authentication time is treated as
// authenticated on this request.
type TrustedHeaderSessions struct {
	Header         string
	AuthTimeHeader string
	Users          interface {
		FindBySubject(ctx context.Context, subject string) (*models.User, error)
	}
}

func (s TrustedHeaderSessions) CurrentUser(r *http.Request) (*models.User, error) {
	subject := strings.TrimSpace(r.Header.Get(s.Header))
	if subject == "" {
		return nil, nil
	}
	user, err := s.Users.FindBySubject(r.Context(), subject)
	if errors.Is(err, sentinel.ErrNotFound) {
		// An unknown subject is an anonymous request.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(r.Header.Get(s.AuthTimeHeader)); s.AuthTimeHeader != "" && raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s header: %w", s.AuthTimeHeader, err)
		}
		user.AuthenticationTime = time.Unix(seconds, 0).UTC()
	} else if user.AuthenticationTime.IsZero() {
		user.AuthenticationTime = requestcontext.Now(r.Context())
	}
	return user, nil
}
