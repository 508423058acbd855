// Package validator decides whether an authorization request may proceed to
// code issuance, or which interaction (login, consent, account selection) it
// needs first.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"authserver/internal/oauth/models"
	"authserver/internal/platform/metrics"
	dErrors "authserver/pkg/domain-errors"
	pkgstrings "authserver/pkg/platform/strings"
	"authserver/pkg/requestcontext"
)

const (
	msgMissingParameter     = "missing parameter %s"
	msgUnsupportedScopes    = "scopes %s are not supported"
	msgLoginRequired        = "login is required"
	msgInvalidHint          = "id_token_hint is invalid"
	msgInvalidHintSubject   = "subject contained in id_token_hint is invalid"
	msgInvalidHintAudience  = "audience contained in id_token_hint is invalid"
	msgInvalidClaims        = "claims %s are invalid"
	msgInvalidRequestObject = "request object is invalid"
)

// RequestObjectResolver returns the verified claims of the request object
// carried by value (request) or by reference (request_uri). It returns nil claims
// when the request carries neither.
type RequestObjectResolver interface {
	Resolve(ctx context.Context, client *models.Client, req *models.AuthorizationRequest) (map[string]any, error)
}

// IDTokenParser verifies an ID token previously issued by this server.
type IDTokenParser interface {
	ParseAndVerify(ctx context.Context, token string) (jwt.MapClaims, error)
}

// stepFunc returns a non-nil result to stop the pipeline.
type stepFunc func(ctx context.Context, hctx *models.HandlerContext) (*Result, error)

type step struct {
	name string
	run  stepFunc
}

// Validator runs the authorization request checks in a fixed order. A later
// check never runs once an earlier one produced a result.
type Validator struct {
	amr            AMRSelector
	redirector     ConsentRedirector
	requestObjects RequestObjectResolver
	idTokens       IDTokenParser
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	steps          []step
}

type Option func(*Validator)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithConsentRedirector replaces DefaultConsentRedirector, e.g. with a regulated profile.
func WithConsentRedirector(r ConsentRedirector) Option {
	return func(v *Validator) { v.redirector = r }
}

func WithAMRSelector(s AMRSelector) Option {
	return func(v *Validator) { v.amr = s }
}

func WithTracer(t trace.Tracer) Option {
	return func(v *Validator) { v.tracer = t }
}

func New(requestObjects RequestObjectResolver, idTokens IDTokenParser, opts ...Option) *Validator {
	v := &Validator{
		amr:            NewDefaultAMRSelector(nil),
		redirector:     DefaultConsentRedirector{},
		requestObjects: requestObjects,
		idTokens:       idTokens,
		logger:         slog.Default(),
		tracer:         otel.Tracer("authserver/oauth/validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.steps = []step{
		{"scopes", v.checkScopes},
		{"authentication", v.checkAuthentication},
		{"request_object", v.checkRequestObject},
		{"redirect_uri", v.checkRedirectURI},
		{"nonce", v.checkNonce},
		{"max_age", v.checkFreshness},
		{"id_token_hint", v.checkIDTokenHint},
		{"prompt", v.checkPrompt},
		{"consent", v.checkConsent},
		{"essential_claims", v.checkEssentialClaims},
		{"consent_satisfied", v.checkSatisfied},
	}
	return v
}

// Validate runs every check against hctx. The error return is reserved for
// infrastructure failures; request problems and required interactions come back
// as a Result.
func (v *Validator) Validate(ctx context.Context, hctx *models.HandlerContext) (*Result, error) {
	ctx, span := v.tracer.Start(ctx, "validator.Validate")
	defer span.End()
	span.SetAttributes(attribute.String("oauth.client_id", hctx.Client.ClientID))

	for _, s := range v.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.run(ctx, hctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, s.name)
			v.logger.ErrorContext(ctx, "authorization request validation aborted",
				"step", s.name,
				"client_id", hctx.Client.ClientID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			return nil, err
		}
		if result != nil {
			v.record(ctx, span, hctx, s.name, result)
			return result, nil
		}
	}
	result := Success()
	v.record(ctx, span, hctx, "", result)
	return result, nil
}

func (v *Validator) record(ctx context.Context, span trace.Span, hctx *models.HandlerContext, stepName string, r *Result) {
	span.SetAttributes(attribute.String("oauth.validation.kind", string(r.Kind)))
	v.metrics.IncrementValidationOutcome(string(r.Kind))
	attrs := []any{
		"kind", r.Kind,
		"client_id", hctx.Client.ClientID,
		"request_id", requestcontext.RequestID(ctx),
	}
	if stepName != "" {
		attrs = append(attrs, "step", stepName)
	}
	if r.Kind == KindFailed {
		attrs = append(attrs, "code", r.Code, "message", r.Message)
	}
	v.logger.DebugContext(ctx, "authorization request validated", attrs...)
}

func (v *Validator) loginRequired(hctx *models.HandlerContext) *Result {
	req := hctx.Request
	return NeedsLogin(v.amr.Select(req.ACRValues, req.Claims, hctx.Client))
}

func (v *Validator) checkScopes(_ context.Context, hctx *models.HandlerContext) (*Result, error) {
	req := hctx.Request
	if len(req.Scopes) == 0 {
		return Failed(dErrors.CodeInvalidRequest, fmt.Sprintf(msgMissingParameter, "scope")), nil
	}
	if unsupported := hctx.Client.UnsupportedScopes(req.Scopes); len(unsupported) > 0 {
		return Failed(dErrors.CodeInvalidRequest, fmt.Sprintf(msgUnsupportedScopes, strings.Join(unsupported, ","))), nil
	}
	return nil, nil
}

func (v *Validator) checkAuthentication(_ context.Context, hctx *models.HandlerContext) (*Result, error) {
	if hctx.User != nil {
		return nil, nil
	}
	if hctx.Request.Prompt == models.PromptNone {
		return Failed(dErrors.CodeLoginRequired, msgLoginRequired), nil
	}
	return v.loginRequired(hctx), nil
}

// checkRequestObject merges a request object into the effective request. Scopes
// are checked again because the object may replace them.
func (v *Validator) checkRequestObject(ctx context.Context, hctx *models.HandlerContext) (*Result, error) {
	req := hctx.Request
	if v.requestObjects == nil || (req.Request == "" && req.RequestURI == "") {
		return nil, nil
	}
	claims, err := v.requestObjects.Resolve(ctx, hctx.Client, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return Failed(dErrors.CodeInvalidRequest, messageOr(err, msgInvalidRequestObject)), nil
	}
	if claims == nil {
		return nil, nil
	}
	if err := req.MergeRequestObject(claims); err != nil {
		return Failed(dErrors.CodeInvalidRequest, messageOr(err, msgInvalidRequestObject)), nil
	}
	return v.checkScopes(ctx, hctx)
}

func (v *Validator) checkRedirectURI(_ context.Context, hctx *models.HandlerContext) (*Result, error) {
	if strings.TrimSpace(hctx.Request.RedirectURI) == "" {
		return Failed(dErrors.CodeInvalidRequest, fmt.Sprintf(msgMissingParameter, "redirect_uri")), nil
	}
	return nil, nil
}

func (v *Validator) checkNonce(_ context.Context, hctx *models.HandlerContext) (*Result, error) {
	req := hctx.Request
	if req.HasResponseType(models.ResponseTypeIDToken) && strings.TrimSpace(req.Nonce) == "" {
		return Failed(dErrors.CodeInvalidRequest, fmt.Sprintf(msgMissingParameter, "nonce")), nil
	}
	return nil, nil
}

// checkFreshness requires re-authentication once now is strictly after
// auth_time + max_age. The request max_age wins over the client default.
func (v *Validator) checkFreshness(ctx context.Context, hctx *models.HandlerContext) (*Result, error) {
	maxAge := hctx.Request.MaxAge
	if maxAge == nil {
		maxAge = hctx.Client.DefaultMaxAge
	}
	if maxAge == nil {
		return nil, nil
	}
	now := requestcontext.Now(ctx)
	if now.After(hctx.User.AuthenticationTime.Add(*maxAge)) {
		return v.loginRequired(hctx), nil
	}
	return nil, nil
}

func (v *Validator) checkIDTokenHint(ctx context.Context, hctx *models.HandlerContext) (*Result, error) {
	hint := hctx.Request.IDTokenHint
	if hint == "" {
		return nil, nil
	}
	if v.idTokens == nil {
		return Failed(dErrors.CodeInvalidRequest, msgInvalidHint), nil
	}
	claims, err := v.idTokens.ParseAndVerify(ctx, hint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return Failed(dErrors.CodeInvalidRequest, msgInvalidHint), nil
	}
	// Access and refresh tokens carry client_id and no azp; only ID tokens are hints.
	if _, ok := claims["client_id"]; ok || claims["azp"] == nil {
		return Failed(dErrors.CodeInvalidRequest, msgInvalidHint), nil
	}
	sub, _ := claims.GetSubject()
	if sub != hctx.User.Subject {
		return Failed(dErrors.CodeInvalidRequest, msgInvalidHintSubject), nil
	}
	aud, _ := claims.GetAudience()
	if !pkgstrings.Contains(aud, hctx.IssuerName) {
		return Failed(dErrors.CodeInvalidRequest, msgInvalidHintAudience), nil
	}
	return nil, nil
}

func (v *Validator) checkPrompt(ctx context.Context, hctx *models.HandlerContext) (*Result, error) {
	switch hctx.Request.Prompt {
	case models.PromptLogin:
		return v.loginRequired(hctx), nil
	case models.PromptConsent:
		return v.redirector.Redirect(ctx, hctx, CheckpointPrompt)
	case models.PromptSelectAccount:
		return NeedsAccountSelection(), nil
	}
	return nil, nil
}

func (v *Validator) checkConsent(ctx context.Context, hctx *models.HandlerContext) (*Result, error) {
	req := hctx.Request
	if hctx.User.HasConsent(hctx.Client.ClientID, req.Scopes, req.Claims) {
		return nil, nil
	}
	result, err := v.redirector.Redirect(ctx, hctx, CheckpointMissingConsent)
	if err != nil || result != nil {
		return result, err
	}
	// Validation ends here even when the redirector had nothing to ask for.
	return Success(), nil
}

// checkEssentialClaims requires the user to hold every essential id_token claim
// that names a standard user claim.
func (v *Validator) checkEssentialClaims(_ context.Context, hctx *models.HandlerContext) (*Result, error) {
	var invalid []string
	for _, c := range hctx.Request.ClaimsFor(models.ClaimTargetIDToken) {
		if !c.Essential || !models.IsUserClaim(c.Name) {
			continue
		}
		if !hctx.User.Satisfies(c) {
			invalid = append(invalid, c.Name)
		}
	}
	if len(invalid) > 0 {
		return Failed(dErrors.CodeInvalidRequest, fmt.Sprintf(msgInvalidClaims, strings.Join(invalid, ","))), nil
	}
	return nil, nil
}

func (v *Validator) checkSatisfied(ctx context.Context, hctx *models.HandlerContext) (*Result, error) {
	return v.redirector.Redirect(ctx, hctx, CheckpointSatisfied)
}

func messageOr(err error, fallback string) string {
	if msg := dErrors.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}
